// Package kyc integrates with the onboarding provider that runs
// natural/legal person analysis. Authentication is a static bearer secret;
// inbound webhooks are verified with an HMAC-SHA1 signature.
package kyc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AnalysisStatus is the provider's fine-grained analysis state.
type AnalysisStatus string

const (
	StatusAutomaticallyApproved AnalysisStatus = "automatically_approved"
	StatusManuallyApproved      AnalysisStatus = "manually_approved"
	StatusInManualAnalysis      AnalysisStatus = "in_manual_analysis"
	StatusInQueue               AnalysisStatus = "in_queue"
	StatusNotAnalysed           AnalysisStatus = "not_analysed"
	StatusPending               AnalysisStatus = "pending"
	StatusAutomaticallyReproved AnalysisStatus = "automatically_reproved"
	StatusManuallyReproved      AnalysisStatus = "manually_reproved"
)

// SubmissionRequest is the payload sent when registering a person for
// analysis. The document is masked to the provider's format by the caller.
type SubmissionRequest struct {
	ID               string `json:"id"`
	RegistrationID   string `json:"registration_id"`
	DocumentNumber   string `json:"document_number"`
	Name             string `json:"name,omitempty"`
	CompanyName      string `json:"company_name,omitempty"`
	Email            string `json:"email,omitempty"`
	Phone            string `json:"phone,omitempty"`
	BirthDate        string `json:"birth_date,omitempty"`
	RegistrationDate string `json:"registration_date"`
}

// SubmissionResponse is the provider's acknowledgement of a submission.
type SubmissionResponse struct {
	ID               string         `json:"id"`
	NaturalPersonKey string         `json:"natural_person_key,omitempty"`
	LegalPersonKey   string         `json:"legal_person_key,omitempty"`
	Status           AnalysisStatus `json:"analysis_status,omitempty"`
	Data             map[string]any `json:"data,omitempty"`
}

// Analysis is the latest analysis state fetched for a submission.
type Analysis struct {
	ID     string         `json:"id"`
	Status AnalysisStatus `json:"analysis_status"`
	Data   map[string]any `json:"data,omitempty"`
}

// Client talks to the onboarding provider's HTTP API.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

func NewClient(baseURL, secret string) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SubmitNaturalPerson registers a natural person for analysis.
func (c *Client) SubmitNaturalPerson(ctx context.Context, req *SubmissionRequest) (*SubmissionResponse, error) {
	return c.submit(ctx, "/onboarding/natural_person?analyze=true", req)
}

// SubmitLegalPerson registers a legal person for analysis.
func (c *Client) SubmitLegalPerson(ctx context.Context, req *SubmissionRequest) (*SubmissionResponse, error) {
	return c.submit(ctx, "/onboarding/legal_person?analyze=true", req)
}

// GetNaturalPersonAnalysis fetches the current analysis for a natural person.
func (c *Client) GetNaturalPersonAnalysis(ctx context.Context, id string) (*Analysis, error) {
	return c.getAnalysis(ctx, "/onboarding/natural_person/"+id)
}

// GetLegalPersonAnalysis fetches the current analysis for a legal person.
func (c *Client) GetLegalPersonAnalysis(ctx context.Context, id string) (*Analysis, error) {
	return c.getAnalysis(ctx, "/onboarding/legal_person/"+id)
}

func (c *Client) submit(ctx context.Context, endpoint string, req *SubmissionRequest) (*SubmissionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("onboarding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read onboarding response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("onboarding provider returned %d: %s", resp.StatusCode, respBody)
	}

	var out SubmissionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode onboarding response: %w", err)
	}
	return &out, nil
}

func (c *Client) getAnalysis(ctx context.Context, endpoint string) (*Analysis, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("onboarding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read onboarding response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("onboarding provider returned %d: %s", resp.StatusCode, respBody)
	}

	var out Analysis
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &out, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Content-Type", "application/json")
}
