package notification

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// MaxAttempts is the delivery cap; after the fifth failed attempt the
// notification is parked as failed and never retried.
const MaxAttempts = 5

// RetryDelay is the fixed backoff between delivery attempts.
const RetryDelay = 5 * time.Minute

// Notification is an outbound callback owed to a customer system. A
// pending notification with a due next_attempt is picked up by the
// dispatcher sweep.
type Notification struct {
	ID          string
	Type        string
	Status      Status
	URL         string
	Payload     json.RawMessage
	LastError   string
	Attempts    int
	LastAttempt *time.Time
	NextAttempt *time.Time
	CreatedAt   time.Time
}
