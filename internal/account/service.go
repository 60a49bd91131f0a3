package account

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sapliy/baas-integration/internal/apierror"
	"github.com/sapliy/baas-integration/internal/document"
	"github.com/sapliy/baas-integration/internal/events"
	"github.com/sapliy/baas-integration/internal/qitech"
	"github.com/sapliy/baas-integration/pkg/observability"
)

// Provider is the subset of the banking provider API the account service
// depends on.
type Provider interface {
	CreateAccount(ctx context.Context, req *qitech.CreateAccountRequest) (*qitech.AccountResponse, error)
	ListAccounts(ctx context.Context, ownerDocument string, page, pageSize int) (*qitech.AccountList, error)
}

// Store is the persistence contract for accounts.
type Store interface {
	Create(ctx context.Context, a *Account) error
	Update(ctx context.Context, a *Account) error
	GetByDocument(ctx context.Context, doc string) (*Account, error)
	GetByExternalKey(ctx context.Context, key string) (*Account, error)
}

// Service reconciles local account state with the banking provider.
type Service struct {
	store    Store
	provider Provider
	events   events.Publisher
	logger   *observability.Logger
}

func NewService(store Store, provider Provider, publisher events.Publisher, logger *observability.Logger) *Service {
	return &Service{store: store, provider: provider, events: publisher, logger: logger}
}

// CreateInput carries the caller-supplied data to open an account.
type CreateInput struct {
	Document string
	Name     string
	Email    string
	Phone    string
}

// Create opens an account for a document. It rejects with a conflict when a
// non-failed account already exists; a failed record is reused in place.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Account, error) {
	doc := document.Normalize(in.Document)
	personType, err := document.Classify(doc)
	if err != nil {
		return nil, apierror.Validation(err.Error())
	}

	existing, err := s.store.GetByDocument(ctx, doc)
	if err != nil {
		return nil, apierror.Wrap("failed to look up account", err)
	}
	if existing != nil && existing.Status != StatusFailed {
		return nil, apierror.Conflict("account already exists for this document")
	}

	req := &qitech.CreateAccountRequest{
		AccountType:  qitech.AccountType(personType),
		AccountOwner: qitech.AccountOwner{Name: in.Name, Email: in.Email, Phone: in.Phone},
	}
	if personType == document.Natural {
		req.AccountOwner.IndividualDocumentNumber = doc
	} else {
		req.AccountOwner.CompanyDocumentNumber = doc
	}

	resp, err := s.provider.CreateAccount(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("provider account creation failed: %w", err)
	}

	rawReq, err := json.Marshal(req)
	if err != nil {
		return nil, apierror.Wrap("failed to serialize request", err)
	}
	rawResp, err := json.Marshal(resp)
	if err != nil {
		return nil, apierror.Wrap("failed to serialize response", err)
	}

	if existing != nil {
		// Reuse the failed record in place.
		existing.Status = StatusPending
		existing.Type = personType
		existing.ExternalKey = resp.AccountKey
		existing.Request = rawReq
		existing.Response = rawResp
		if err := s.store.Update(ctx, existing); err != nil {
			return nil, apierror.Wrap("failed to persist account", err)
		}
		s.logger.WithContext(ctx).Info("account resubmitted", "document", doc, "account_key", resp.AccountKey)
		return existing, nil
	}

	acc := &Account{
		Document:    doc,
		Type:        personType,
		Status:      StatusPending,
		ExternalKey: resp.AccountKey,
		Request:     rawReq,
		Response:    rawResp,
	}
	if err := s.store.Create(ctx, acc); err != nil {
		return nil, apierror.Wrap("failed to persist account", err)
	}

	s.logger.WithContext(ctx).Info("account created", "document", doc, "account_key", resp.AccountKey)
	return acc, nil
}

// Get returns the locally persisted account for a document.
func (s *Service) Get(ctx context.Context, rawDoc string) (*Account, error) {
	doc := document.Normalize(rawDoc)
	acc, err := s.store.GetByDocument(ctx, doc)
	if err != nil {
		return nil, apierror.Wrap("failed to look up account", err)
	}
	if acc == nil {
		return nil, apierror.NotFound("no account for this document")
	}
	return acc, nil
}

// Refresh queries the provider for the account's current status and
// persists a transition when it differs from the stored one.
func (s *Service) Refresh(ctx context.Context, rawDoc string) (*Account, error) {
	doc := document.Normalize(rawDoc)
	acc, err := s.store.GetByDocument(ctx, doc)
	if err != nil {
		return nil, apierror.Wrap("failed to look up account", err)
	}
	if acc == nil {
		return nil, apierror.NotFound("no account for this document")
	}

	list, err := s.provider.ListAccounts(ctx, doc, 1, 100)
	if err != nil {
		return nil, fmt.Errorf("provider account listing failed: %w", err)
	}

	for _, remote := range list.Data {
		if remote.AccountKey != acc.ExternalKey {
			continue
		}
		if mapped := MapProviderStatus(remote.AccountStatus); mapped != acc.Status {
			if err := s.transition(ctx, acc, mapped); err != nil {
				return nil, err
			}
		}
		break
	}
	return acc, nil
}

// ApplyWebhook reconciles a provider account webhook into local state. A
// missing local record is a not-found error; the transport acknowledges the
// message regardless.
func (s *Service) ApplyWebhook(ctx context.Context, accountKey, providerStatus string) error {
	acc, err := s.store.GetByExternalKey(ctx, accountKey)
	if err != nil {
		return apierror.Wrap("failed to look up account", err)
	}
	if acc == nil {
		return apierror.NotFound("no account for key " + accountKey)
	}

	mapped := MapProviderStatus(providerStatus)
	if mapped == acc.Status {
		return nil
	}
	return s.transition(ctx, acc, mapped)
}

// transition applies a status change with one reload-and-retry on a CAS
// miss, so near-simultaneous webhook deliveries for the same record are
// safe.
func (s *Service) transition(ctx context.Context, acc *Account, to Status) error {
	from := acc.Status
	acc.Status = to

	err := s.store.Update(ctx, acc)
	if err == ErrStaleRecord {
		reloaded, rerr := s.store.GetByExternalKey(ctx, acc.ExternalKey)
		if rerr != nil || reloaded == nil {
			return apierror.Wrap("failed to reload account after concurrent update", rerr)
		}
		if reloaded.Status == to {
			return nil
		}
		from = reloaded.Status
		reloaded.Status = to
		if err := s.store.Update(ctx, reloaded); err != nil {
			return apierror.Wrap("failed to persist account transition", err)
		}
		*acc = *reloaded
	} else if err != nil {
		return apierror.Wrap("failed to persist account transition", err)
	}

	s.logger.WithContext(ctx).Info("account status changed",
		"document", acc.Document, "from", string(from), "to", string(to))
	events.Emit(ctx, s.events, events.EventAccountStatusChanged, events.StatusChangeData{
		RecordID: acc.ID,
		Document: acc.Document,
		From:     string(from),
		To:       string(to),
	})
	return nil
}
