package pix

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sapliy/baas-integration/internal/qitech"
)

type KeyStatus string

const (
	KeyStatusPending KeyStatus = "pending"
	KeyStatusActive  KeyStatus = "active"
	KeyStatusFailed  KeyStatus = "failed"
)

// ErrStaleRecord is returned when a compare-and-swap update lost against a
// concurrent writer; callers reload and retry.
var ErrStaleRecord = errors.New("pix: record was modified concurrently")

// Key is a locally persisted Pix key registration. Keys are addressed by
// the (document, type) pair; the provider-issued request key correlates
// webhooks back to the record. The document is stored digits-only.
type Key struct {
	ID         string
	AccountID  string
	Document   string
	Key        string
	Type       qitech.PixKeyType
	Status     KeyStatus
	RequestKey string
	Request    json.RawMessage
	Response   json.RawMessage
	Revision   int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LimitRequest is one row in the append-only log of limit-change
// submissions for a document.
type LimitRequest struct {
	ID        string
	Document  string
	Request   json.RawMessage
	Response  json.RawMessage
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MapProviderKeyStatus maps the provider's key status to the local one.
func MapProviderKeyStatus(providerStatus string) KeyStatus {
	switch providerStatus {
	case "active", "success", "created":
		return KeyStatusActive
	case "failed", "rejected", "deleted", "error":
		return KeyStatusFailed
	default:
		return KeyStatusPending
	}
}
