package notification

import (
	"context"
	"encoding/json"

	"github.com/sapliy/baas-integration/internal/events"
	"github.com/sapliy/baas-integration/pkg/observability"
)

// Bridge implements events.Publisher by enqueuing a customer callback for
// each status-change event before forwarding it downstream. With no
// callback URL configured it is a plain pass-through.
type Bridge struct {
	next        events.Publisher
	dispatcher  *Dispatcher
	callbackURL string
	logger      *observability.Logger
}

func NewBridge(next events.Publisher, dispatcher *Dispatcher, callbackURL string, logger *observability.Logger) *Bridge {
	return &Bridge{next: next, dispatcher: dispatcher, callbackURL: callbackURL, logger: logger}
}

func (b *Bridge) Publish(ctx context.Context, key string, value []byte) error {
	if b.callbackURL != "" {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(value, &envelope); err != nil {
			envelope.Type = "unknown"
		}
		if err := b.dispatcher.Enqueue(ctx, &Notification{
			Type:    envelope.Type,
			URL:     b.callbackURL,
			Payload: value,
		}); err != nil {
			b.logger.WithContext(ctx).Error("failed to enqueue callback notification",
				"type", envelope.Type, "error", err.Error())
		}
	}

	if b.next == nil {
		return nil
	}
	return b.next.Publish(ctx, key, value)
}
