package webhook

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sapliy/baas-integration/internal/kyc"
	"github.com/sapliy/baas-integration/pkg/monitoring"
	"github.com/sapliy/baas-integration/pkg/observability"
)

// ReceiveWait bounds how long one poll blocks waiting for a message.
const ReceiveWait = 5 * time.Second

// Delivery is one message pulled from the queue.
type Delivery interface {
	Body() []byte
	MessageID() string
	Ack() error
}

// Source receives at most one message per call, reporting whether one
// arrived before wait elapsed.
type Source interface {
	GetOne(ctx context.Context, queueName string, wait time.Duration) (Delivery, bool, error)
}

// OnboardingReconciler applies onboarding analysis webhooks.
type OnboardingReconciler interface {
	ApplyWebhook(ctx context.Context, id string, status kyc.AnalysisStatus, data json.RawMessage) error
}

// AccountReconciler applies account status webhooks.
type AccountReconciler interface {
	ApplyWebhook(ctx context.Context, accountKey, providerStatus string) error
}

// PixReconciler applies Pix key status webhooks.
type PixReconciler interface {
	ApplyWebhook(ctx context.Context, requestKey, providerStatus, pixKey string) error
}

// Processor consumes the webhook queue one message per tick. The message
// is acknowledged whether or not its handler succeeds; handler failures
// are logged and never requeued.
type Processor struct {
	source     Source
	onboarding OnboardingReconciler
	accounts   AccountReconciler
	pix        PixReconciler
	redis      *redis.Client
	logger     *observability.Logger

	busy atomic.Bool
}

func NewProcessor(source Source, onboarding OnboardingReconciler, accounts AccountReconciler, pix PixReconciler, redisClient *redis.Client, logger *observability.Logger) *Processor {
	return &Processor{
		source:     source,
		onboarding: onboarding,
		accounts:   accounts,
		pix:        pix,
		redis:      redisClient,
		logger:     logger,
	}
}

// Poll receives and processes at most one message. Overlapping calls are
// no-ops: only one poll runs at a time.
func (p *Processor) Poll(ctx context.Context) {
	if !p.busy.CompareAndSwap(false, true) {
		return
	}
	defer p.busy.Store(false)

	delivery, ok, err := p.source.GetOne(ctx, QueueName, ReceiveWait)
	if err != nil {
		p.logger.WithContext(ctx).Error("queue receive failed", "error", err.Error())
		return
	}
	if !ok {
		return
	}

	// Acknowledged regardless of handler outcome: at-most-once processing.
	defer func() {
		if err := delivery.Ack(); err != nil {
			p.logger.WithContext(ctx).Error("failed to ack webhook message", "error", err.Error())
		}
	}()

	p.process(ctx, delivery)
}

func (p *Processor) process(ctx context.Context, delivery Delivery) {
	var msg Message
	if err := json.Unmarshal(delivery.Body(), &msg); err != nil {
		p.logger.WithContext(ctx).Error("dropping malformed webhook message", "error", err.Error())
		monitoring.WebhooksProcessed.WithLabelValues("malformed", "dropped").Inc()
		return
	}

	if p.seen(ctx, msg.ID) {
		p.logger.WithContext(ctx).Info("skipping already processed webhook", "id", msg.ID)
		monitoring.WebhooksProcessed.WithLabelValues(msg.Type, "duplicate").Inc()
		return
	}

	var err error
	switch msg.Type {
	case TypeOnboarding:
		err = p.handleOnboarding(ctx, msg.Data)
	case TypeAccountCreation, TypeBaaS:
		err = p.handleBanking(ctx, msg.Data)
	default:
		p.logger.WithContext(ctx).Warn("dropping webhook of unknown type", "type", msg.Type)
		monitoring.WebhooksProcessed.WithLabelValues(msg.Type, "dropped").Inc()
		return
	}

	if err != nil {
		p.logger.WithContext(ctx).Error("webhook handler failed",
			"type", msg.Type, "id", msg.ID, "error", err.Error())
		monitoring.WebhooksProcessed.WithLabelValues(msg.Type, "error").Inc()
		return
	}
	monitoring.WebhooksProcessed.WithLabelValues(msg.Type, "ok").Inc()
}

func (p *Processor) handleOnboarding(ctx context.Context, data json.RawMessage) error {
	var payload struct {
		ID     string             `json:"id"`
		Status kyc.AnalysisStatus `json:"analysis_status"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	return p.onboarding.ApplyWebhook(ctx, payload.ID, payload.Status, data)
}

// handleBanking routes a banking provider webhook to the account or Pix
// reconciler based on which correlation key the payload carries.
func (p *Processor) handleBanking(ctx context.Context, data json.RawMessage) error {
	var payload struct {
		AccountKey    string `json:"account_key"`
		AccountStatus string `json:"account_status"`
		Status        string `json:"status"`
		PixRequestKey string `json:"pix_key_request_key"`
		PixKeyStatus  string `json:"pix_key_status"`
		PixKey        string `json:"pix_key"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}

	if payload.PixRequestKey != "" {
		status := payload.PixKeyStatus
		if status == "" {
			status = payload.Status
		}
		return p.pix.ApplyWebhook(ctx, payload.PixRequestKey, status, payload.PixKey)
	}

	status := payload.AccountStatus
	if status == "" {
		status = payload.Status
	}
	return p.accounts.ApplyWebhook(ctx, payload.AccountKey, status)
}

// seen records the message id in redis, returning true when it was already
// processed. Without redis every message looks new.
func (p *Processor) seen(ctx context.Context, id string) bool {
	if p.redis == nil || id == "" {
		return false
	}
	set, err := p.redis.SetNX(ctx, "webhook:processed:"+id, "1", 24*time.Hour).Result()
	if err != nil {
		p.logger.WithContext(ctx).Warn("webhook dedupe check failed", "error", err.Error())
		return false
	}
	return !set
}
