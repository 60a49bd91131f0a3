package kyc

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"errors"
)

// ErrBadSignature indicates the webhook signature did not match.
var ErrBadSignature = errors.New("kyc: webhook signature mismatch")

// WebhookVerifier validates the authenticity of inbound onboarding webhooks.
// The expected signature is hex(HMAC-SHA1(secret, url + method + rawBody)).
type WebhookVerifier struct {
	secret []byte
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

// Verify checks the signature header against the request's url, method and
// raw body. Comparison is constant time.
func (v *WebhookVerifier) Verify(url, method string, rawBody []byte, signature string) error {
	mac := hmac.New(sha1.New, v.secret)
	mac.Write([]byte(url))
	mac.Write([]byte(method))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return ErrBadSignature
	}
	return nil
}
