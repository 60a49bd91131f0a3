package qitech

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// WebhookEndpoint is the fixed path the provider signs its webhook
// deliveries against.
const WebhookEndpoint = "/webhook/account"

// DecodeWebhook verifies an inbound provider webhook using the same signed
// envelope scheme as responses, pinned to POST /webhook/account.
func (c *Client) DecodeWebhook(header http.Header, rawBody []byte) (jwt.MapClaims, error) {
	return c.DecodeMessage(http.MethodPost, WebhookEndpoint, header, rawBody)
}
