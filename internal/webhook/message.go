// Package webhook receives provider callbacks over HTTP, queues them, and
// processes them asynchronously one at a time.
package webhook

import "encoding/json"

// QueueName is the single queue all inbound webhooks flow through.
const QueueName = "webhooks"

// Message types dispatched by the processor. Anything else is logged and
// dropped.
const (
	TypeOnboarding      = "onboarding"
	TypeAccountCreation = "accountCreation"
	TypeBaaS            = "qiTechBaaS"
)

// Message is the queue envelope for an inbound webhook.
type Message struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Data    json.RawMessage   `json:"data"`
	User    string            `json:"user,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}
