package onboarding

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sapliy/baas-integration/internal/apierror"
	"github.com/sapliy/baas-integration/internal/document"
	"github.com/sapliy/baas-integration/internal/events"
	"github.com/sapliy/baas-integration/internal/kyc"
	"github.com/sapliy/baas-integration/pkg/observability"
)

// Analyzer is the subset of the onboarding provider API the service uses.
type Analyzer interface {
	SubmitNaturalPerson(ctx context.Context, req *kyc.SubmissionRequest) (*kyc.SubmissionResponse, error)
	SubmitLegalPerson(ctx context.Context, req *kyc.SubmissionRequest) (*kyc.SubmissionResponse, error)
	GetNaturalPersonAnalysis(ctx context.Context, id string) (*kyc.Analysis, error)
	GetLegalPersonAnalysis(ctx context.Context, id string) (*kyc.Analysis, error)
}

// Store is the persistence contract for onboarding records.
type Store interface {
	Create(ctx context.Context, rec *Record) error
	Update(ctx context.Context, rec *Record) error
	GetByDocument(ctx context.Context, doc string) (*Record, error)
	GetByID(ctx context.Context, id string) (*Record, error)
	ListPending(ctx context.Context) ([]*Record, error)
}

// Service maintains local onboarding state consistent with the provider's
// asynchronous analysis pipeline.
type Service struct {
	store    Store
	analyzer Analyzer
	events   events.Publisher
	logger   *observability.Logger
	now      func() time.Time
}

func NewService(store Store, analyzer Analyzer, publisher events.Publisher, logger *observability.Logger) *Service {
	return &Service{store: store, analyzer: analyzer, events: publisher, logger: logger, now: time.Now}
}

// SubmitInput carries the caller-supplied person data.
type SubmitInput struct {
	Document    string
	Name        string
	CompanyName string
	Email       string
	Phone       string
	BirthDate   string
}

// Submit registers a person for analysis. A document with a pending or
// approved record is rejected with a conflict. A submission failure is
// captured into the record, which is still saved with status error; the
// failure is not fatal to the caller's flow.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Record, error) {
	doc := document.Normalize(in.Document)
	personType, err := document.Classify(doc)
	if err != nil {
		return nil, apierror.Validation(err.Error())
	}

	existing, err := s.store.GetByDocument(ctx, doc)
	if err != nil {
		return nil, apierror.Wrap("failed to look up onboarding record", err)
	}
	if existing != nil && (existing.Status == StatusPending || existing.Status == StatusApproved) {
		return nil, apierror.Conflict("onboarding already in flight or approved for this document")
	}

	req := &kyc.SubmissionRequest{
		ID:               uuid.New().String(),
		RegistrationID:   uuid.New().String(),
		DocumentNumber:   document.Mask(doc),
		Email:            in.Email,
		Phone:            in.Phone,
		RegistrationDate: s.now().UTC().Format(time.RFC3339),
	}
	if personType == document.Natural {
		req.Name = in.Name
		req.BirthDate = in.BirthDate
	} else {
		req.CompanyName = in.CompanyName
	}

	rawReq, err := json.Marshal(req)
	if err != nil {
		return nil, apierror.Wrap("failed to serialize submission", err)
	}

	rec := &Record{
		ID:         req.ID,
		Document:   doc,
		PersonType: personType,
		Status:     StatusPending,
		Request:    rawReq,
	}

	var resp *kyc.SubmissionResponse
	var submitErr error
	if personType == document.Natural {
		resp, submitErr = s.analyzer.SubmitNaturalPerson(ctx, req)
	} else {
		resp, submitErr = s.analyzer.SubmitLegalPerson(ctx, req)
	}

	if submitErr != nil {
		rec.Status = StatusError
		rec.LastError = submitErr.Error()
		s.logger.WithContext(ctx).Error("onboarding submission failed",
			"document", doc, "error", submitErr.Error())
	} else {
		rec.Response, err = json.Marshal(resp)
		if err != nil {
			return nil, apierror.Wrap("failed to serialize response", err)
		}
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, apierror.Wrap("failed to persist onboarding record", err)
	}

	s.logger.WithContext(ctx).Info("onboarding submitted",
		"document", doc, "person_type", string(personType), "status", string(rec.Status))
	return rec, nil
}

// Get returns the locally persisted record for a document.
func (s *Service) Get(ctx context.Context, rawDoc string) (*Record, error) {
	doc := document.Normalize(rawDoc)
	rec, err := s.store.GetByDocument(ctx, doc)
	if err != nil {
		return nil, apierror.Wrap("failed to look up onboarding record", err)
	}
	if rec == nil {
		return nil, apierror.NotFound("no onboarding record for this document")
	}
	return rec, nil
}

// Refresh re-fetches the remote analysis for a record. It only acts when
// the local status is pending and a provider response exists, and only
// persists when the mapped status differs from the stored one.
func (s *Service) Refresh(ctx context.Context, rawDoc string) (*Record, error) {
	doc := document.Normalize(rawDoc)
	rec, err := s.store.GetByDocument(ctx, doc)
	if err != nil {
		return nil, apierror.Wrap("failed to look up onboarding record", err)
	}
	if rec == nil {
		return nil, apierror.NotFound("no onboarding record for this document")
	}

	if rec.Status != StatusPending || len(rec.Response) == 0 {
		return rec, nil
	}

	var analysis *kyc.Analysis
	if rec.PersonType == document.Natural {
		analysis, err = s.analyzer.GetNaturalPersonAnalysis(ctx, rec.ID)
	} else {
		analysis, err = s.analyzer.GetLegalPersonAnalysis(ctx, rec.ID)
	}
	if err != nil {
		return nil, apierror.Wrap("failed to fetch analysis", err)
	}

	return rec, s.apply(ctx, rec, analysis)
}

// ApplyWebhook reconciles an inbound onboarding webhook into local state.
func (s *Service) ApplyWebhook(ctx context.Context, id string, status kyc.AnalysisStatus, data json.RawMessage) error {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return apierror.Wrap("failed to look up onboarding record", err)
	}
	if rec == nil {
		return apierror.NotFound("no onboarding record with id " + id)
	}
	return s.apply(ctx, rec, &kyc.Analysis{ID: id, Status: status, Data: map[string]any{"raw": json.RawMessage(data)}})
}

// RefreshAllPending sweeps every pending record, used by the periodic jobs.
func (s *Service) RefreshAllPending(ctx context.Context) {
	records, err := s.store.ListPending(ctx)
	if err != nil {
		s.logger.WithContext(ctx).Error("failed to list pending onboarding records", "error", err.Error())
		return
	}
	for _, rec := range records {
		if _, err := s.Refresh(ctx, rec.Document); err != nil {
			s.logger.WithContext(ctx).Error("failed to refresh onboarding record",
				"document", rec.Document, "error", err.Error())
		}
	}
}

// apply maps the analysis status and persists only when it changed, with
// one reload-and-retry on a CAS miss.
func (s *Service) apply(ctx context.Context, rec *Record, analysis *kyc.Analysis) error {
	mapped := MapAnalysisStatus(analysis.Status)
	if mapped == rec.Status {
		return nil
	}

	rawAnalysis, err := json.Marshal(analysis)
	if err != nil {
		return apierror.Wrap("failed to serialize analysis", err)
	}

	from := rec.Status
	rec.Status = mapped
	rec.Analysis = rawAnalysis

	err = s.store.Update(ctx, rec)
	if err == ErrStaleRecord {
		reloaded, rerr := s.store.GetByID(ctx, rec.ID)
		if rerr != nil || reloaded == nil {
			return apierror.Wrap("failed to reload onboarding record after concurrent update", rerr)
		}
		if reloaded.Status == mapped {
			return nil
		}
		from = reloaded.Status
		reloaded.Status = mapped
		reloaded.Analysis = rawAnalysis
		if err := s.store.Update(ctx, reloaded); err != nil {
			return apierror.Wrap("failed to persist onboarding transition", err)
		}
		*rec = *reloaded
	} else if err != nil {
		return apierror.Wrap("failed to persist onboarding transition", err)
	}

	s.logger.WithContext(ctx).Info("onboarding status changed",
		"document", rec.Document, "from", string(from), "to", string(mapped))
	events.Emit(ctx, s.events, events.EventOnboardingStatusChanged, events.StatusChangeData{
		RecordID: rec.ID,
		Document: rec.Document,
		From:     string(from),
		To:       string(mapped),
	})
	return nil
}
