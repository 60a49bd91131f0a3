package onboarding

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sapliy/baas-integration/internal/document"
	"github.com/sapliy/baas-integration/internal/kyc"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusReproved Status = "reproved"
	StatusError    Status = "error"
)

// ErrStaleRecord is returned when a compare-and-swap update lost against a
// concurrent writer.
var ErrStaleRecord = errors.New("onboarding: record was modified concurrently")

// Record is a locally persisted onboarding submission. At most one record
// with status pending or approved exists per document.
type Record struct {
	ID         string
	Document   string
	PersonType document.PersonType
	Status     Status
	Request    json.RawMessage
	Response   json.RawMessage
	Analysis   json.RawMessage
	LastError  string
	Revision   int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MapAnalysisStatus maps the provider's fine-grained analysis status to the
// local coarse status. It is total: unknown values map to error.
func MapAnalysisStatus(s kyc.AnalysisStatus) Status {
	switch s {
	case kyc.StatusAutomaticallyApproved, kyc.StatusManuallyApproved:
		return StatusApproved
	case kyc.StatusInManualAnalysis, kyc.StatusInQueue, kyc.StatusNotAnalysed, kyc.StatusPending:
		return StatusPending
	case kyc.StatusAutomaticallyReproved, kyc.StatusManuallyReproved:
		return StatusReproved
	default:
		return StatusError
	}
}
