package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sapliy/baas-integration/internal/kyc"
	"github.com/sapliy/baas-integration/pkg/jsonutil"
	"github.com/sapliy/baas-integration/pkg/observability"
)

// EnvelopeDecoder verifies a signed provider webhook and returns its claims.
type EnvelopeDecoder interface {
	DecodeWebhook(header http.Header, rawBody []byte) (jwt.MapClaims, error)
}

// Queue is the transport the handler enqueues verified webhooks onto.
type Queue interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// Handler exposes the inbound webhook endpoints. Both verify authenticity,
// enqueue the message, and return 202 immediately; processing happens on
// the queue consumer.
type Handler struct {
	verifier  *kyc.WebhookVerifier
	decoder   EnvelopeDecoder
	queue     Queue
	publicURL string
	logger    *observability.Logger
}

func NewHandler(verifier *kyc.WebhookVerifier, decoder EnvelopeDecoder, queue Queue, publicURL string, logger *observability.Logger) *Handler {
	return &Handler{
		verifier:  verifier,
		decoder:   decoder,
		queue:     queue,
		publicURL: publicURL,
		logger:    logger,
	}
}

// HandleOnboarding receives HMAC-signed webhooks from the onboarding
// provider at POST /webhook/onboarding.
func (h *Handler) HandleOnboarding(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "failed to read body")
		return
	}

	signature := r.Header.Get("Signature")
	if err := h.verifier.Verify(h.publicURL+r.URL.Path, r.Method, body, signature); err != nil {
		h.logger.WithContext(r.Context()).Warn("rejected onboarding webhook", "error", err.Error())
		jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "invalid webhook signature")
		return
	}

	h.enqueue(w, r, &Message{
		ID:   uuid.New().String(),
		Type: TypeOnboarding,
		Data: body,
	})
}

// HandleAccount receives signed-envelope webhooks from the banking provider
// at POST /webhook/account.
func (h *Handler) HandleAccount(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusBadRequest, "failed to read body")
		return
	}

	claims, err := h.decoder.DecodeWebhook(r.Header, body)
	if err != nil {
		h.logger.WithContext(r.Context()).Warn("rejected account webhook", "error", err.Error())
		jsonutil.WriteErrorJSON(w, http.StatusUnauthorized, "invalid webhook envelope")
		return
	}

	data, err := json.Marshal(claims)
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "failed to serialize webhook")
		return
	}

	msgType := TypeBaaS
	if wt, _ := claims["webhook_type"].(string); wt == "account_creation" {
		msgType = TypeAccountCreation
	}

	h.enqueue(w, r, &Message{
		ID:   uuid.New().String(),
		Type: msgType,
		Data: data,
	})
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, msg *Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "failed to serialize webhook")
		return
	}
	if err := h.queue.Publish(r.Context(), QueueName, raw); err != nil {
		h.logger.WithContext(r.Context()).Error("failed to enqueue webhook",
			"type", msg.Type, "error", err.Error())
		jsonutil.WriteErrorJSON(w, http.StatusInternalServerError, "failed to enqueue webhook")
		return
	}

	h.logger.WithContext(r.Context()).Info("webhook accepted", "type", msg.Type, "id", msg.ID)
	jsonutil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "id": msg.ID})
}
