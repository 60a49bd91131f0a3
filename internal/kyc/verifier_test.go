package kyc

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"testing"
)

func sign(secret, url, method string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(url + method))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerifier(t *testing.T) {
	const (
		secret = "wh-secret"
		url    = "https://api.example.com/webhook/onboarding"
		method = "POST"
	)
	body := []byte(`{"id":"ob_1","analysis_status":"automatically_approved"}`)
	v := NewWebhookVerifier(secret)

	t.Run("valid signature", func(t *testing.T) {
		if err := v.Verify(url, method, body, sign(secret, url, method, body)); err != nil {
			t.Errorf("Verify: %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := v.Verify(url, method, body, sign("other", url, method, body))
		if !errors.Is(err, ErrBadSignature) {
			t.Errorf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("tampered body", func(t *testing.T) {
		sig := sign(secret, url, method, body)
		tampered := []byte(`{"id":"ob_1","analysis_status":"automatically_reproved"}`)
		if err := v.Verify(url, method, tampered, sig); !errors.Is(err, ErrBadSignature) {
			t.Errorf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("different method", func(t *testing.T) {
		sig := sign(secret, url, method, body)
		if err := v.Verify(url, "PUT", body, sig); !errors.Is(err, ErrBadSignature) {
			t.Errorf("expected ErrBadSignature, got %v", err)
		}
	})

	t.Run("empty signature", func(t *testing.T) {
		if err := v.Verify(url, method, body, ""); !errors.Is(err, ErrBadSignature) {
			t.Errorf("expected ErrBadSignature, got %v", err)
		}
	})
}
