package account

import (
	"context"
	"errors"
	"testing"

	"github.com/sapliy/baas-integration/internal/apierror"
	"github.com/sapliy/baas-integration/internal/document"
	"github.com/sapliy/baas-integration/internal/qitech"
	"github.com/sapliy/baas-integration/pkg/observability"
)

type mockStore struct {
	byDocument  map[string]*Account
	byExternal  map[string]*Account
	createCalls int
	updateCalls int
	updateErrs  []error
}

func newMockStore() *mockStore {
	return &mockStore{
		byDocument: map[string]*Account{},
		byExternal: map[string]*Account{},
	}
}

func (m *mockStore) Create(ctx context.Context, a *Account) error {
	m.createCalls++
	a.ID = "acc-local-1"
	a.Revision = 1
	m.byDocument[a.Document] = a
	if a.ExternalKey != "" {
		m.byExternal[a.ExternalKey] = a
	}
	return nil
}

func (m *mockStore) Update(ctx context.Context, a *Account) error {
	m.updateCalls++
	if len(m.updateErrs) > 0 {
		err := m.updateErrs[0]
		m.updateErrs = m.updateErrs[1:]
		if err != nil {
			return err
		}
	}
	m.byDocument[a.Document] = a
	if a.ExternalKey != "" {
		m.byExternal[a.ExternalKey] = a
	}
	return nil
}

func (m *mockStore) GetByDocument(ctx context.Context, doc string) (*Account, error) {
	return m.byDocument[doc], nil
}

func (m *mockStore) GetByExternalKey(ctx context.Context, key string) (*Account, error) {
	return m.byExternal[key], nil
}

type mockProvider struct {
	createResp *qitech.AccountResponse
	createErr  error
	listResp   *qitech.AccountList
}

func (m *mockProvider) CreateAccount(ctx context.Context, req *qitech.CreateAccountRequest) (*qitech.AccountResponse, error) {
	return m.createResp, m.createErr
}

func (m *mockProvider) ListAccounts(ctx context.Context, doc string, page, pageSize int) (*qitech.AccountList, error) {
	return m.listResp, nil
}

func newTestService(store *mockStore, provider *mockProvider) *Service {
	return NewService(store, provider, nil, observability.NewLogger("test"))
}

func TestCreateAccountForNewDocument(t *testing.T) {
	store := newMockStore()
	provider := &mockProvider{createResp: &qitech.AccountResponse{AccountKey: "acc_1", AccountStatus: "pending"}}
	svc := newTestService(store, provider)

	acc, err := svc.Create(context.Background(), CreateInput{Document: "123.456.789-09", Name: "Jordan"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if acc.Status != StatusPending {
		t.Errorf("status = %s, want pending", acc.Status)
	}
	if acc.Type != document.Natural {
		t.Errorf("type = %s, want natural", acc.Type)
	}
	if acc.Document != "12345678909" {
		t.Errorf("document not normalized: %q", acc.Document)
	}
	if acc.ExternalKey != "acc_1" {
		t.Errorf("external key = %q", acc.ExternalKey)
	}
}

func TestCreateAccountConflictsWhileActive(t *testing.T) {
	store := newMockStore()
	provider := &mockProvider{createResp: &qitech.AccountResponse{AccountKey: "acc_1"}}
	svc := newTestService(store, provider)

	if _, err := svc.Create(context.Background(), CreateInput{Document: "12345678909", Name: "Jordan"}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := svc.Create(context.Background(), CreateInput{Document: "12345678909", Name: "Jordan"})
	if apierror.StatusCode(err) != 409 {
		t.Fatalf("expected conflict, got %v", err)
	}
	if store.createCalls != 1 {
		t.Errorf("create calls = %d, want 1", store.createCalls)
	}
}

func TestCreateAccountReusesFailedRecord(t *testing.T) {
	store := newMockStore()
	store.byDocument["12345678909"] = &Account{
		ID: "acc-old", Document: "12345678909", Status: StatusFailed, Revision: 3,
	}
	provider := &mockProvider{createResp: &qitech.AccountResponse{AccountKey: "acc_2"}}
	svc := newTestService(store, provider)

	acc, err := svc.Create(context.Background(), CreateInput{Document: "12345678909", Name: "Jordan"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if acc.ID != "acc-old" {
		t.Errorf("expected failed record to be reused, got id %q", acc.ID)
	}
	if acc.Status != StatusPending || acc.ExternalKey != "acc_2" {
		t.Errorf("record not refreshed: %+v", acc)
	}
	if store.createCalls != 0 {
		t.Errorf("expected in-place update, got %d inserts", store.createCalls)
	}
}

func TestCreateAccountRejectsBadDocument(t *testing.T) {
	svc := newTestService(newMockStore(), &mockProvider{})
	_, err := svc.Create(context.Background(), CreateInput{Document: "123", Name: "Jordan"})
	if apierror.StatusCode(err) != 400 {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestApplyWebhookTransition(t *testing.T) {
	store := newMockStore()
	acc := &Account{ID: "a1", Document: "12345678909", Status: StatusPending, ExternalKey: "acc_1", Revision: 1}
	store.byDocument[acc.Document] = acc
	store.byExternal[acc.ExternalKey] = acc
	svc := newTestService(store, &mockProvider{})

	if err := svc.ApplyWebhook(context.Background(), "acc_1", "opened"); err != nil {
		t.Fatalf("ApplyWebhook: %v", err)
	}
	if store.byExternal["acc_1"].Status != StatusSuccess {
		t.Errorf("status = %s, want success", store.byExternal["acc_1"].Status)
	}
}

func TestApplyWebhookSameStatusDoesNotWrite(t *testing.T) {
	store := newMockStore()
	acc := &Account{ID: "a1", Document: "12345678909", Status: StatusSuccess, ExternalKey: "acc_1"}
	store.byExternal[acc.ExternalKey] = acc
	svc := newTestService(store, &mockProvider{})

	if err := svc.ApplyWebhook(context.Background(), "acc_1", "opened"); err != nil {
		t.Fatalf("ApplyWebhook: %v", err)
	}
	if store.updateCalls != 0 {
		t.Errorf("update calls = %d, want 0", store.updateCalls)
	}
}

func TestApplyWebhookUnknownKey(t *testing.T) {
	svc := newTestService(newMockStore(), &mockProvider{})
	err := svc.ApplyWebhook(context.Background(), "acc_missing", "opened")
	if apierror.StatusCode(err) != 404 {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApplyWebhookRetriesOnStaleRecord(t *testing.T) {
	store := newMockStore()
	acc := &Account{ID: "a1", Document: "12345678909", Status: StatusPending, ExternalKey: "acc_1", Revision: 1}
	store.byExternal[acc.ExternalKey] = acc
	store.updateErrs = []error{ErrStaleRecord}
	svc := newTestService(store, &mockProvider{})

	if err := svc.ApplyWebhook(context.Background(), "acc_1", "rejected"); err != nil {
		t.Fatalf("ApplyWebhook: %v", err)
	}
	if store.updateCalls != 2 {
		t.Errorf("update calls = %d, want 2 (CAS miss then retry)", store.updateCalls)
	}
	if store.byExternal["acc_1"].Status != StatusFailed {
		t.Errorf("status = %s, want failed", store.byExternal["acc_1"].Status)
	}
}

func TestCreateAccountPropagatesProviderError(t *testing.T) {
	store := newMockStore()
	provider := &mockProvider{createErr: errors.New("boom")}
	svc := newTestService(store, provider)

	if _, err := svc.Create(context.Background(), CreateInput{Document: "12345678909", Name: "J"}); err == nil {
		t.Fatal("expected error")
	}
	if store.createCalls != 0 {
		t.Error("no record should be persisted when the provider call fails")
	}
}
