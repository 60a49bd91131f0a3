package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sapliy/baas-integration/internal/kyc"
	"github.com/sapliy/baas-integration/pkg/observability"
)

type fakeQueue struct {
	published [][]byte
	err       error
}

func (f *fakeQueue) Publish(_ context.Context, queueName string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	if queueName != QueueName {
		return errors.New("wrong queue " + queueName)
	}
	f.published = append(f.published, body)
	return nil
}

type fakeDecoder struct {
	claims jwt.MapClaims
	err    error
}

func (f *fakeDecoder) DecodeWebhook(_ http.Header, _ []byte) (jwt.MapClaims, error) {
	return f.claims, f.err
}

const testPublicURL = "https://bank.example.com"

func hmacSignature(secret, url, method string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(url))
	mac.Write([]byte(method))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestHandler(queue Queue, decoder EnvelopeDecoder) *Handler {
	verifier := kyc.NewWebhookVerifier("hook-secret")
	return NewHandler(verifier, decoder, queue, testPublicURL, observability.NewLogger("webhook-test"))
}

func TestHandleOnboardingAccepts(t *testing.T) {
	queue := &fakeQueue{}
	h := newTestHandler(queue, &fakeDecoder{})

	body := []byte(`{"id":"rec-1","analysis_status":"manually_approved"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/onboarding", bytes.NewReader(body))
	req.Header.Set("Signature", hmacSignature("hook-secret", testPublicURL+"/webhook/onboarding", http.MethodPost, body))
	rec := httptest.NewRecorder()

	h.HandleOnboarding(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}
	if len(queue.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(queue.published))
	}
	var msg Message
	if err := json.Unmarshal(queue.published[0], &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != TypeOnboarding {
		t.Errorf("type = %q, want %q", msg.Type, TypeOnboarding)
	}
	if string(msg.Data) != string(body) {
		t.Errorf("data = %s, want original body", msg.Data)
	}
}

func TestHandleOnboardingRejectsBadSignature(t *testing.T) {
	queue := &fakeQueue{}
	h := newTestHandler(queue, &fakeDecoder{})

	body := []byte(`{"id":"rec-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/onboarding", bytes.NewReader(body))
	req.Header.Set("Signature", "deadbeef")
	rec := httptest.NewRecorder()

	h.HandleOnboarding(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(queue.published) != 0 {
		t.Error("rejected webhook was still enqueued")
	}
}

func TestHandleAccountAccepts(t *testing.T) {
	queue := &fakeQueue{}
	decoder := &fakeDecoder{claims: jwt.MapClaims{"account_key": "acct-1", "account_status": "opened"}}
	h := newTestHandler(queue, decoder)

	req := httptest.NewRequest(http.MethodPost, "/webhook/account", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	h.HandleAccount(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}
	var msg Message
	if err := json.Unmarshal(queue.published[0], &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != TypeBaaS {
		t.Errorf("type = %q, want %q", msg.Type, TypeBaaS)
	}
}

func TestHandleAccountTypesAccountCreation(t *testing.T) {
	queue := &fakeQueue{}
	decoder := &fakeDecoder{claims: jwt.MapClaims{"webhook_type": "account_creation", "account_key": "acct-1"}}
	h := newTestHandler(queue, decoder)

	req := httptest.NewRequest(http.MethodPost, "/webhook/account", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	h.HandleAccount(rec, req)

	var msg Message
	if err := json.Unmarshal(queue.published[0], &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != TypeAccountCreation {
		t.Errorf("type = %q, want %q", msg.Type, TypeAccountCreation)
	}
}

func TestHandleAccountRejectsTamperedEnvelope(t *testing.T) {
	queue := &fakeQueue{}
	decoder := &fakeDecoder{err: errors.New("api-client-key mismatch")}
	h := newTestHandler(queue, decoder)

	req := httptest.NewRequest(http.MethodPost, "/webhook/account", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	h.HandleAccount(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(queue.published) != 0 {
		t.Error("rejected webhook was still enqueued")
	}
}

func TestHandleEnqueueFailure(t *testing.T) {
	queue := &fakeQueue{err: errors.New("broker down")}
	decoder := &fakeDecoder{claims: jwt.MapClaims{"account_key": "acct-1"}}
	h := newTestHandler(queue, decoder)

	req := httptest.NewRequest(http.MethodPost, "/webhook/account", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()

	h.HandleAccount(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
