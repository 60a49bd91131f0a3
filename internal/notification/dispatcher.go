package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/sapliy/baas-integration/pkg/monitoring"
	"github.com/sapliy/baas-integration/pkg/observability"
)

// Store is the persistence contract the dispatcher needs.
type Store interface {
	Create(ctx context.Context, n *Notification) error
	Update(ctx context.Context, n *Notification) error
	ListDue(ctx context.Context, now time.Time) ([]*Notification, error)
	CountPending(ctx context.Context) (int, error)
}

// Dispatcher delivers pending notifications to customer callback URLs.
// Failed deliveries are retried on a fixed backoff until the attempt cap,
// after which the notification is parked as failed.
type Dispatcher struct {
	store      Store
	httpClient *http.Client
	secret     string
	logger     *observability.Logger
	now        func() time.Time
}

func NewDispatcher(store Store, secret string, logger *observability.Logger) *Dispatcher {
	return &Dispatcher{
		store:      store,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		secret:     secret,
		logger:     logger,
		now:        time.Now,
	}
}

// Enqueue records a notification for delivery on the next sweep.
func (d *Dispatcher) Enqueue(ctx context.Context, n *Notification) error {
	if err := d.store.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// Sweep delivers every due notification once. It is run on a fixed ticker;
// failures surface as retries on later sweeps, never as an error here.
func (d *Dispatcher) Sweep(ctx context.Context) {
	due, err := d.store.ListDue(ctx, d.now())
	if err != nil {
		d.logger.WithContext(ctx).Error("failed to list due notifications", "error", err.Error())
		return
	}

	for _, n := range due {
		d.attempt(ctx, n)
	}

	if pending, err := d.store.CountPending(ctx); err == nil {
		monitoring.NotificationsPending.Set(float64(pending))
	}
}

func (d *Dispatcher) attempt(ctx context.Context, n *Notification) {
	attemptedAt := d.now()
	n.Attempts++
	n.LastAttempt = &attemptedAt

	err := d.deliver(ctx, n)
	if err == nil {
		n.Status = StatusDelivered
		n.LastError = ""
		n.NextAttempt = nil
		d.logger.WithContext(ctx).Info("notification delivered",
			"id", n.ID, "type", n.Type, "attempts", n.Attempts)
	} else {
		n.LastError = err.Error()
		if n.Attempts >= MaxAttempts {
			n.Status = StatusFailed
			n.NextAttempt = nil
			d.logger.WithContext(ctx).Error("notification exhausted retries",
				"id", n.ID, "type", n.Type, "error", err.Error())
		} else {
			next := attemptedAt.Add(RetryDelay)
			n.NextAttempt = &next
			d.logger.WithContext(ctx).Warn("notification delivery failed",
				"id", n.ID, "type", n.Type, "attempt", n.Attempts, "error", err.Error())
		}
	}

	if err := d.store.Update(ctx, n); err != nil {
		d.logger.WithContext(ctx).Error("failed to persist notification attempt",
			"id", n.ID, "error", err.Error())
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n *Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(n.Payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notification-Type", n.Type)
	if d.secret != "" {
		req.Header.Set("X-Signature", "sha256="+sign(n.Payload, d.secret))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("callback returned %d", resp.StatusCode)
	}
	return nil
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
