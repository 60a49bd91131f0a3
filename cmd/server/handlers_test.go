package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/sapliy/baas-integration/internal/account"
	"github.com/sapliy/baas-integration/internal/apierror"
	"github.com/sapliy/baas-integration/internal/onboarding"
	"github.com/sapliy/baas-integration/internal/pix"
	"github.com/sapliy/baas-integration/internal/qitech"
	"github.com/sapliy/baas-integration/pkg/observability"
)

type stubAccounts struct {
	acc *account.Account
	err error
}

func (s *stubAccounts) Create(_ context.Context, in account.CreateInput) (*account.Account, error) {
	return s.acc, s.err
}
func (s *stubAccounts) Get(_ context.Context, doc string) (*account.Account, error) {
	return s.acc, s.err
}
func (s *stubAccounts) Refresh(_ context.Context, doc string) (*account.Account, error) {
	return s.acc, s.err
}

type stubOnboarding struct {
	rec *onboarding.Record
	err error
}

func (s *stubOnboarding) Submit(_ context.Context, in onboarding.SubmitInput) (*onboarding.Record, error) {
	return s.rec, s.err
}
func (s *stubOnboarding) Get(_ context.Context, doc string) (*onboarding.Record, error) {
	return s.rec, s.err
}
func (s *stubOnboarding) Refresh(_ context.Context, doc string) (*onboarding.Record, error) {
	return s.rec, s.err
}

type stubPix struct {
	key          *pix.Key
	lastStatuses []qitech.PixLimitRequestStatus
	lastPage     int
	lastPageSize int
}

func (s *stubPix) CreateKey(_ context.Context, in pix.CreateKeyInput) (*pix.Key, error) {
	return s.key, nil
}
func (s *stubPix) GetKey(_ context.Context, doc string, keyType qitech.PixKeyType) (*pix.Key, error) {
	return s.key, nil
}
func (s *stubPix) GetLimits(_ context.Context, doc string) (*qitech.PixLimits, error) {
	return &qitech.PixLimits{DocumentNumber: doc}, nil
}
func (s *stubPix) UpdateLimits(_ context.Context, doc string, limits qitech.PixLimits) (*qitech.UpdatePixLimitsResponse, error) {
	return &qitech.UpdatePixLimitsResponse{RequestKey: "lim-1"}, nil
}
func (s *stubPix) ListLimitRequests(_ context.Context, doc string, statuses []qitech.PixLimitRequestStatus, page, pageSize int) (*qitech.PixLimitRequestList, error) {
	s.lastStatuses = statuses
	s.lastPage = page
	s.lastPageSize = pageSize
	return &qitech.PixLimitRequestList{}, nil
}

func newTestRouter(accounts accountAPI, onb onboardingAPI, pixSvc pixAPI) *mux.Router {
	server := NewServer(accounts, onb, pixSvc, nil, nil, observability.NewLogger("server-test"))
	router := mux.NewRouter()
	server.Routes(router)
	return router
}

func TestCreateAccountEndpoint(t *testing.T) {
	accounts := &stubAccounts{acc: &account.Account{
		ID: "a1", Document: "12345678909", Type: "natural", Status: account.StatusPending,
	}}
	router := newTestRouter(accounts, &stubOnboarding{}, &stubPix{})

	body := bytes.NewReader([]byte(`{"document":"123.456.789-09","name":"Jo Doe"}`))
	req := httptest.NewRequest(http.MethodPost, "/accounts", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", rec.Code, rec.Body.String())
	}
	var resp accountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Document != "12345678909" || resp.Status != "pending" {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreateAccountConflict(t *testing.T) {
	accounts := &stubAccounts{err: apierror.Conflict("account already exists for this document")}
	router := newTestRouter(accounts, &stubOnboarding{}, &stubPix{})

	req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader([]byte(`{"document":"12345678909"}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestCreateAccountRejectsUnknownFields(t *testing.T) {
	router := newTestRouter(&stubAccounts{}, &stubOnboarding{}, &stubPix{})

	req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader([]byte(`{"document":"1","surprise":true}`)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	accounts := &stubAccounts{err: apierror.Wrap("failed to look up account", context.DeadlineExceeded)}
	router := newTestRouter(accounts, &stubOnboarding{}, &stubPix{})

	req := httptest.NewRequest(http.MethodGet, "/accounts/12345678909", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("deadline")) {
		t.Errorf("internal detail leaked: %s", rec.Body.String())
	}
}

func TestListPixLimitRequestsQuery(t *testing.T) {
	pixSvc := &stubPix{}
	router := newTestRouter(&stubAccounts{}, &stubOnboarding{}, pixSvc)

	req := httptest.NewRequest(http.MethodGet,
		"/pix/limits/12345678909/requests?status=approved&status=rejected&page=2&page_size=25", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(pixSvc.lastStatuses) != 2 {
		t.Errorf("statuses = %v, want two entries", pixSvc.lastStatuses)
	}
	if pixSvc.lastPage != 2 || pixSvc.lastPageSize != 25 {
		t.Errorf("page/pageSize = %d/%d, want 2/25", pixSvc.lastPage, pixSvc.lastPageSize)
	}
}
