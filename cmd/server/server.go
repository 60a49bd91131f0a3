package main

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/sapliy/baas-integration/internal/account"
	"github.com/sapliy/baas-integration/internal/apierror"
	"github.com/sapliy/baas-integration/internal/billing"
	"github.com/sapliy/baas-integration/internal/onboarding"
	"github.com/sapliy/baas-integration/internal/pix"
	"github.com/sapliy/baas-integration/internal/qitech"
	"github.com/sapliy/baas-integration/internal/webhook"
	"github.com/sapliy/baas-integration/pkg/jsonutil"
	"github.com/sapliy/baas-integration/pkg/observability"
)

type accountAPI interface {
	Create(ctx context.Context, in account.CreateInput) (*account.Account, error)
	Get(ctx context.Context, doc string) (*account.Account, error)
	Refresh(ctx context.Context, doc string) (*account.Account, error)
}

type onboardingAPI interface {
	Submit(ctx context.Context, in onboarding.SubmitInput) (*onboarding.Record, error)
	Get(ctx context.Context, doc string) (*onboarding.Record, error)
	Refresh(ctx context.Context, doc string) (*onboarding.Record, error)
}

type pixAPI interface {
	CreateKey(ctx context.Context, in pix.CreateKeyInput) (*pix.Key, error)
	GetKey(ctx context.Context, doc string, keyType qitech.PixKeyType) (*pix.Key, error)
	GetLimits(ctx context.Context, doc string) (*qitech.PixLimits, error)
	UpdateLimits(ctx context.Context, doc string, limits qitech.PixLimits) (*qitech.UpdatePixLimitsResponse, error)
	ListLimitRequests(ctx context.Context, doc string, statuses []qitech.PixLimitRequestStatus, page, pageSize int) (*qitech.PixLimitRequestList, error)
}

type billingAPI interface {
	RequestChange(ctx context.Context, cfg *qitech.BillingConfiguration) (*billing.ConfigurationRequest, error)
	GetConfiguration(ctx context.Context, accountKey string) (*qitech.BillingConfiguration, error)
}

type uploader interface {
	UploadFile(ctx context.Context, filename string, data []byte) (*qitech.FileResponse, error)
}

// Server is the management HTTP API.
type Server struct {
	accounts   accountAPI
	onboarding onboardingAPI
	pix        pixAPI
	billing    billingAPI
	uploader   uploader
	logger     *observability.Logger
}

func NewServer(accounts accountAPI, onboarding onboardingAPI, pixSvc pixAPI, billingSvc billingAPI, up uploader, logger *observability.Logger) *Server {
	return &Server{
		accounts:   accounts,
		onboarding: onboarding,
		pix:        pixSvc,
		billing:    billingSvc,
		uploader:   up,
		logger:     logger,
	}
}

// Routes registers the authenticated management endpoints on router.
func (s *Server) Routes(router *mux.Router) {
	router.HandleFunc("/accounts", s.createAccount).Methods(http.MethodPost)
	router.HandleFunc("/accounts/{document}", s.getAccount).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{document}/refresh", s.refreshAccount).Methods(http.MethodPost)

	router.HandleFunc("/onboarding", s.submitOnboarding).Methods(http.MethodPost)
	router.HandleFunc("/onboarding/{document}", s.getOnboarding).Methods(http.MethodGet)
	router.HandleFunc("/onboarding/{document}/refresh", s.refreshOnboarding).Methods(http.MethodPost)

	router.HandleFunc("/pix/keys", s.createPixKey).Methods(http.MethodPost)
	router.HandleFunc("/pix/keys/{document}/{type}", s.getPixKey).Methods(http.MethodGet)
	router.HandleFunc("/pix/limits/{document}", s.getPixLimits).Methods(http.MethodGet)
	router.HandleFunc("/pix/limits/{document}", s.updatePixLimits).Methods(http.MethodPut)
	router.HandleFunc("/pix/limits/{document}/requests", s.listPixLimitRequests).Methods(http.MethodGet)

	router.HandleFunc("/billing", s.requestBillingChange).Methods(http.MethodPost)
	router.HandleFunc("/billing/{accountKey}", s.getBillingConfiguration).Methods(http.MethodGet)

	router.HandleFunc("/files", s.uploadFile).Methods(http.MethodPost)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierror.StatusCode(err)
	if status >= 500 {
		s.logger.WithContext(r.Context()).Error("request failed",
			"path", r.URL.Path, "error", err.Error())
	}
	jsonutil.WriteErrorJSON(w, status, apierror.PublicMessage(err))
}

type accountResponse struct {
	ID          string    `json:"id"`
	Document    string    `json:"document"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	ExternalKey string    `json:"external_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toAccountResponse(a *account.Account) accountResponse {
	return accountResponse{
		ID:          a.ID,
		Document:    a.Document,
		Type:        string(a.Type),
		Status:      string(a.Status),
		ExternalKey: a.ExternalKey,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Document string `json:"document"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	}
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		s.writeError(w, r, apierror.Validation(err.Error()))
		return
	}

	acc, err := s.accounts.Create(r.Context(), account.CreateInput{
		Document: req.Document,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, toAccountResponse(acc))
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.accounts.Get(r.Context(), mux.Vars(r)["document"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (s *Server) refreshAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.accounts.Refresh(r.Context(), mux.Vars(r)["document"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, toAccountResponse(acc))
}

type onboardingResponse struct {
	ID         string    `json:"id"`
	Document   string    `json:"document"`
	PersonType string    `json:"person_type"`
	Status     string    `json:"status"`
	LastError  string    `json:"last_error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toOnboardingResponse(rec *onboarding.Record) onboardingResponse {
	return onboardingResponse{
		ID:         rec.ID,
		Document:   rec.Document,
		PersonType: string(rec.PersonType),
		Status:     string(rec.Status),
		LastError:  rec.LastError,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func (s *Server) submitOnboarding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Document    string `json:"document"`
		Name        string `json:"name"`
		CompanyName string `json:"company_name"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		BirthDate   string `json:"birth_date"`
	}
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		s.writeError(w, r, apierror.Validation(err.Error()))
		return
	}

	rec, err := s.onboarding.Submit(r.Context(), onboarding.SubmitInput{
		Document:    req.Document,
		Name:        req.Name,
		CompanyName: req.CompanyName,
		Email:       req.Email,
		Phone:       req.Phone,
		BirthDate:   req.BirthDate,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, toOnboardingResponse(rec))
}

func (s *Server) getOnboarding(w http.ResponseWriter, r *http.Request) {
	rec, err := s.onboarding.Get(r.Context(), mux.Vars(r)["document"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, toOnboardingResponse(rec))
}

func (s *Server) refreshOnboarding(w http.ResponseWriter, r *http.Request) {
	rec, err := s.onboarding.Refresh(r.Context(), mux.Vars(r)["document"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, toOnboardingResponse(rec))
}

type pixKeyResponse struct {
	ID         string    `json:"id"`
	Document   string    `json:"document"`
	Key        string    `json:"key,omitempty"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	RequestKey string    `json:"request_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toPixKeyResponse(k *pix.Key) pixKeyResponse {
	return pixKeyResponse{
		ID:         k.ID,
		Document:   k.Document,
		Key:        k.Key,
		Type:       string(k.Type),
		Status:     string(k.Status),
		RequestKey: k.RequestKey,
		CreatedAt:  k.CreatedAt,
		UpdatedAt:  k.UpdatedAt,
	}
}

func (s *Server) createPixKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Document string `json:"document"`
		KeyType  string `json:"key_type"`
		Key      string `json:"key"`
	}
	if err := jsonutil.DecodeBody(r, &req); err != nil {
		s.writeError(w, r, apierror.Validation(err.Error()))
		return
	}

	key, err := s.pix.CreateKey(r.Context(), pix.CreateKeyInput{
		Document: req.Document,
		Type:     qitech.PixKeyType(req.KeyType),
		Key:      req.Key,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, toPixKeyResponse(key))
}

func (s *Server) getPixKey(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key, err := s.pix.GetKey(r.Context(), vars["document"], qitech.PixKeyType(vars["type"]))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, toPixKeyResponse(key))
}

func (s *Server) getPixLimits(w http.ResponseWriter, r *http.Request) {
	limits, err := s.pix.GetLimits(r.Context(), mux.Vars(r)["document"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, limits)
}

func (s *Server) updatePixLimits(w http.ResponseWriter, r *http.Request) {
	var limits qitech.PixLimits
	if err := jsonutil.DecodeBody(r, &limits); err != nil {
		s.writeError(w, r, apierror.Validation(err.Error()))
		return
	}

	resp, err := s.pix.UpdateLimits(r.Context(), mux.Vars(r)["document"], limits)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusAccepted, resp)
}

func (s *Server) listPixLimitRequests(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var statuses []qitech.PixLimitRequestStatus
	for _, raw := range query["status"] {
		statuses = append(statuses, qitech.PixLimitRequestStatus(raw))
	}
	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	list, err := s.pix.ListLimitRequests(r.Context(), mux.Vars(r)["document"], statuses, page, pageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) requestBillingChange(w http.ResponseWriter, r *http.Request) {
	var cfg qitech.BillingConfiguration
	if err := jsonutil.DecodeBody(r, &cfg); err != nil {
		s.writeError(w, r, apierror.Validation(err.Error()))
		return
	}

	cr, err := s.billing.RequestChange(r.Context(), &cfg)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"id":     cr.ID,
		"status": string(cr.Status),
	})
}

func (s *Server) getBillingConfiguration(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.billing.GetConfiguration(r.Context(), mux.Vars(r)["accountKey"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusOK, cfg)
}

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, apierror.Validation("missing file field"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, r, apierror.Wrap("failed to read upload", err))
		return
	}

	resp, err := s.uploader.UploadFile(r.Context(), header.Filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonutil.WriteJSON(w, http.StatusCreated, resp)
}

// RegisterWebhooks mounts the unauthenticated webhook receivers.
func RegisterWebhooks(router *mux.Router, h *webhook.Handler) {
	router.HandleFunc("/webhook/onboarding", h.HandleOnboarding).Methods(http.MethodPost)
	router.HandleFunc(qitech.WebhookEndpoint, h.HandleAccount).Methods(http.MethodPost)
}
