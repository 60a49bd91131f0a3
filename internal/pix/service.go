package pix

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sapliy/baas-integration/internal/account"
	"github.com/sapliy/baas-integration/internal/apierror"
	"github.com/sapliy/baas-integration/internal/document"
	"github.com/sapliy/baas-integration/internal/events"
	"github.com/sapliy/baas-integration/internal/qitech"
	"github.com/sapliy/baas-integration/pkg/observability"
)

// Provider is the subset of the banking provider API the Pix service uses.
type Provider interface {
	CreatePixKey(ctx context.Context, req *qitech.CreatePixKeyRequest) (*qitech.PixKeyResponse, error)
	GetPixLimits(ctx context.Context, document string) (*qitech.PixLimits, error)
	UpdatePixLimits(ctx context.Context, req *qitech.UpdatePixLimitsRequest) (*qitech.UpdatePixLimitsResponse, error)
	ListPixLimitRequests(ctx context.Context, document string, statuses []qitech.PixLimitRequestStatus, page, pageSize int) (*qitech.PixLimitRequestList, error)
}

// Store is the persistence contract for Pix keys and limit requests.
type Store interface {
	CreateKey(ctx context.Context, k *Key) error
	UpdateKey(ctx context.Context, k *Key) error
	GetKey(ctx context.Context, doc string, keyType string) (*Key, error)
	GetKeyByRequestKey(ctx context.Context, requestKey string) (*Key, error)
	CreateLimitRequest(ctx context.Context, lr *LimitRequest) error
	ListLimitRequests(ctx context.Context, doc string) ([]*LimitRequest, error)
}

// AccountDirectory resolves the owning account for a document.
type AccountDirectory interface {
	GetByDocument(ctx context.Context, doc string) (*account.Account, error)
}

// Service manages Pix key registrations and transfer limits.
type Service struct {
	store    Store
	accounts AccountDirectory
	provider Provider
	events   events.Publisher
	logger   *observability.Logger
}

func NewService(store Store, accounts AccountDirectory, provider Provider, publisher events.Publisher, logger *observability.Logger) *Service {
	return &Service{store: store, accounts: accounts, provider: provider, events: publisher, logger: logger}
}

// CreateKeyInput carries the caller-supplied data to register a Pix key.
type CreateKeyInput struct {
	Document string
	Type     qitech.PixKeyType
	Key      string
}

// CreateKey registers a Pix key with the provider for the document's
// account. The document must have an active account, and at most one
// non-failed key per (document, type) pair is allowed.
func (s *Service) CreateKey(ctx context.Context, in CreateKeyInput) (*Key, error) {
	doc := document.Normalize(in.Document)
	if _, err := document.Classify(doc); err != nil {
		return nil, apierror.Validation(err.Error())
	}
	switch in.Type {
	case qitech.PixKeyTypeRandom, qitech.PixKeyTypeEmail, qitech.PixKeyTypeCNPJ, qitech.PixKeyTypePhone:
	default:
		return nil, apierror.Validation("unknown pix key type " + string(in.Type))
	}

	acc, err := s.accounts.GetByDocument(ctx, doc)
	if err != nil {
		return nil, apierror.Wrap("failed to look up account", err)
	}
	if acc == nil || acc.Status != account.StatusSuccess {
		return nil, apierror.Validation("no active account for this document")
	}

	existing, err := s.store.GetKey(ctx, doc, string(in.Type))
	if err != nil {
		return nil, apierror.Wrap("failed to look up pix key", err)
	}
	if existing != nil && existing.Status != KeyStatusFailed {
		return nil, apierror.Conflict("a key of this type already exists for this document")
	}

	req := &qitech.CreatePixKeyRequest{
		AccountKey: acc.ExternalKey,
		KeyType:    in.Type,
		Key:        in.Key,
	}
	resp, err := s.provider.CreatePixKey(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("provider pix key creation failed: %w", err)
	}

	rawReq, err := json.Marshal(req)
	if err != nil {
		return nil, apierror.Wrap("failed to serialize request", err)
	}
	rawResp, err := json.Marshal(resp)
	if err != nil {
		return nil, apierror.Wrap("failed to serialize response", err)
	}

	key := &Key{
		AccountID:  acc.ID,
		Document:   doc,
		Key:        resp.PixKey,
		Type:       in.Type,
		Status:     MapProviderKeyStatus(resp.Status),
		RequestKey: resp.RequestKey,
		Request:    rawReq,
		Response:   rawResp,
	}
	if err := s.store.CreateKey(ctx, key); err != nil {
		return nil, apierror.Wrap("failed to persist pix key", err)
	}

	s.logger.WithContext(ctx).Info("pix key requested",
		"document", doc, "key_type", string(in.Type), "request_key", resp.RequestKey)
	return key, nil
}

// GetKey returns the locally persisted key for a (document, type) pair.
func (s *Service) GetKey(ctx context.Context, rawDoc string, keyType qitech.PixKeyType) (*Key, error) {
	doc := document.Normalize(rawDoc)
	key, err := s.store.GetKey(ctx, doc, string(keyType))
	if err != nil {
		return nil, apierror.Wrap("failed to look up pix key", err)
	}
	if key == nil {
		return nil, apierror.NotFound("no key of this type for this document")
	}
	return key, nil
}

// GetLimits fetches the document's current transfer limits from the provider.
func (s *Service) GetLimits(ctx context.Context, rawDoc string) (*qitech.PixLimits, error) {
	doc := document.Normalize(rawDoc)
	limits, err := s.provider.GetPixLimits(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("provider limits fetch failed: %w", err)
	}
	return limits, nil
}

// UpdateLimits submits a limit-change request and appends it to the local
// submission log.
func (s *Service) UpdateLimits(ctx context.Context, rawDoc string, limits qitech.PixLimits) (*qitech.UpdatePixLimitsResponse, error) {
	doc := document.Normalize(rawDoc)
	if _, err := document.Classify(doc); err != nil {
		return nil, apierror.Validation(err.Error())
	}

	limits.DocumentNumber = doc
	req := &qitech.UpdatePixLimitsRequest{DocumentNumber: doc, RequestLimits: limits}
	resp, err := s.provider.UpdatePixLimits(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("provider limits update failed: %w", err)
	}

	rawReq, err := json.Marshal(req)
	if err != nil {
		return nil, apierror.Wrap("failed to serialize request", err)
	}
	rawResp, err := json.Marshal(resp)
	if err != nil {
		return nil, apierror.Wrap("failed to serialize response", err)
	}
	rawData, err := json.Marshal(limits)
	if err != nil {
		return nil, apierror.Wrap("failed to serialize requested limits", err)
	}

	lr := &LimitRequest{Document: doc, Request: rawReq, Response: rawResp, Data: rawData}
	if err := s.store.CreateLimitRequest(ctx, lr); err != nil {
		return nil, apierror.Wrap("failed to persist limit request", err)
	}

	s.logger.WithContext(ctx).Info("pix limits update submitted",
		"document", doc, "request_key", resp.RequestKey)
	return resp, nil
}

// ListLimitRequests pages through the provider's limit-change requests for
// a document. An empty status set means all statuses. When the provider is
// unreachable the local submission log is served instead, so the history
// of requests made through this service stays readable during outages.
func (s *Service) ListLimitRequests(ctx context.Context, rawDoc string, statuses []qitech.PixLimitRequestStatus, page, pageSize int) (*qitech.PixLimitRequestList, error) {
	doc := document.Normalize(rawDoc)
	list, err := s.provider.ListPixLimitRequests(ctx, doc, statuses, page, pageSize)
	if err == nil {
		return list, nil
	}

	s.logger.WithContext(ctx).Error("provider limit request listing failed, serving local log",
		"document", doc, "error", err.Error())
	local, lerr := s.store.ListLimitRequests(ctx, doc)
	if lerr != nil {
		return nil, fmt.Errorf("provider limit request listing failed: %w", err)
	}
	return localLimitRequestList(local), nil
}

// localLimitRequestList rebuilds a provider-shaped listing from the local
// submission log. Rows carry no provider status updates, so entries whose
// stored response has no status default to pending approval.
func localLimitRequestList(rows []*LimitRequest) *qitech.PixLimitRequestList {
	list := &qitech.PixLimitRequestList{Data: []qitech.PixLimitRequest{}}
	for _, lr := range rows {
		var resp qitech.UpdatePixLimitsResponse
		if len(lr.Response) > 0 {
			json.Unmarshal(lr.Response, &resp)
		}
		item := qitech.PixLimitRequest{
			RequestKey: resp.RequestKey,
			Status:     qitech.PixLimitStatusPendingApproval,
			CreatedAt:  lr.CreatedAt.UTC().Format(time.RFC3339),
		}
		if resp.Status != "" {
			item.Status = qitech.PixLimitRequestStatus(resp.Status)
		}
		if len(lr.Data) > 0 {
			json.Unmarshal(lr.Data, &item.Limits)
		}
		list.Data = append(list.Data, item)
	}
	list.Pagination = qitech.Pagination{
		CurrentPage: 1,
		RowsPerPage: len(list.Data),
		TotalRows:   len(list.Data),
		TotalPages:  1,
	}
	return list
}

// ApplyWebhook reconciles a Pix key webhook into local state. The provider
// identifies the key by its request key; a missing local record is a
// not-found error.
func (s *Service) ApplyWebhook(ctx context.Context, requestKey, providerStatus, pixKey string) error {
	key, err := s.store.GetKeyByRequestKey(ctx, requestKey)
	if err != nil {
		return apierror.Wrap("failed to look up pix key", err)
	}
	if key == nil {
		return apierror.NotFound("no pix key for request key " + requestKey)
	}

	mapped := MapProviderKeyStatus(providerStatus)
	if mapped == key.Status && (pixKey == "" || pixKey == key.Key) {
		return nil
	}
	return s.transition(ctx, key, mapped, pixKey)
}

// transition applies a status change with one reload-and-retry on a CAS
// miss.
func (s *Service) transition(ctx context.Context, key *Key, to KeyStatus, pixKey string) error {
	from := key.Status
	key.Status = to
	if pixKey != "" {
		key.Key = pixKey
	}

	err := s.store.UpdateKey(ctx, key)
	if err == ErrStaleRecord {
		reloaded, rerr := s.store.GetKeyByRequestKey(ctx, key.RequestKey)
		if rerr != nil || reloaded == nil {
			return apierror.Wrap("failed to reload pix key after concurrent update", rerr)
		}
		if reloaded.Status == to {
			return nil
		}
		from = reloaded.Status
		reloaded.Status = to
		if pixKey != "" {
			reloaded.Key = pixKey
		}
		if err := s.store.UpdateKey(ctx, reloaded); err != nil {
			return apierror.Wrap("failed to persist pix key transition", err)
		}
		*key = *reloaded
	} else if err != nil {
		return apierror.Wrap("failed to persist pix key transition", err)
	}

	s.logger.WithContext(ctx).Info("pix key status changed",
		"document", key.Document, "key_type", string(key.Type), "from", string(from), "to", string(to))
	events.Emit(ctx, s.events, events.EventPixKeyStatusChanged, events.StatusChangeData{
		RecordID: key.ID,
		Document: key.Document,
		From:     string(from),
		To:       string(to),
	})
	return nil
}
