package billing

import (
	"encoding/json"
	"time"
)

type RequestStatus string

const (
	StatusPending RequestStatus = "pending"
	StatusApplied RequestStatus = "applied"
	StatusFailed  RequestStatus = "failed"
)

// ConfigurationRequest is a billing configuration change submitted to the
// provider. The daily reconcile job confirms the provider actually applied
// it before marking it done.
type ConfigurationRequest struct {
	ID         string
	AccountKey string
	Status     RequestStatus
	Request    json.RawMessage
	Response   json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
