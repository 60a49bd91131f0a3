// Package events defines the envelope for domain status-transition events
// published to Kafka so downstream consumers can react to reconciliation
// outcomes.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAccountStatusChanged    EventType = "account.status_changed"
	EventOnboardingStatusChanged EventType = "onboarding.status_changed"
	EventPixKeyStatusChanged     EventType = "pix_key.status_changed"
)

// Event is the envelope for all published events.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// StatusChangeData describes one record's status transition.
type StatusChangeData struct {
	RecordID string `json:"record_id"`
	Document string `json:"document"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// Publisher pushes an event onto the event stream, keyed for ordering.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Emit builds and publishes a status-change event. Failures are logged and
// swallowed: event publication is best effort and never fails the
// reconciliation that triggered it.
func Emit(ctx context.Context, p Publisher, eventType EventType, data StatusChangeData) {
	if p == nil {
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", eventType, err)
		return
	}
	evt := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", eventType, err)
		return
	}

	if err := p.Publish(ctx, data.Document, body); err != nil {
		log.Printf("Failed to publish %s event: %v", eventType, err)
	}
}
