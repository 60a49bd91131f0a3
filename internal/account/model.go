package account

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sapliy/baas-integration/internal/document"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ErrStaleRecord is returned when a compare-and-swap update lost against a
// concurrent writer; callers reload and retry.
var ErrStaleRecord = errors.New("account: record was modified concurrently")

// Account is a locally persisted bank account opened through the provider.
// At most one non-failed account exists per document.
type Account struct {
	ID          string
	Document    string
	Type        document.PersonType
	Status      Status
	ExternalKey string
	Request     json.RawMessage
	Response    json.RawMessage
	Revision    int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MapProviderStatus maps the provider's account status to the local one.
func MapProviderStatus(providerStatus string) Status {
	switch providerStatus {
	case "opened", "success", "active":
		return StatusSuccess
	case "rejected", "failed", "closed":
		return StatusFailed
	default:
		return StatusPending
	}
}
