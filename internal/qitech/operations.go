package qitech

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// CreateAccount opens a new bank account with the provider.
func (c *Client) CreateAccount(ctx context.Context, req *CreateAccountRequest) (*AccountResponse, error) {
	var out AccountResponse
	if err := c.do(ctx, "create_account", http.MethodPost, "/account", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListAccounts pages through accounts owned by the given document.
func (c *Client) ListAccounts(ctx context.Context, ownerDocument string, page, pageSize int) (*AccountList, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	query := url.Values{}
	query.Set("owner_document_number", ownerDocument)
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))

	endpoint := "/account?" + query.Encode()

	var out AccountList
	if err := c.do(ctx, "list_accounts", http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePixKey registers a Pix key for an account.
func (c *Client) CreatePixKey(ctx context.Context, req *CreatePixKeyRequest) (*PixKeyResponse, error) {
	var out PixKeyResponse
	if err := c.do(ctx, "create_pix_key", http.MethodPost, "/pix/keys", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPixLimits fetches the current transfer limits for a document.
func (c *Client) GetPixLimits(ctx context.Context, document string) (*PixLimits, error) {
	endpoint := "/pix/limits?" + url.Values{"document_number": {document}}.Encode()

	var out PixLimits
	if err := c.do(ctx, "get_pix_limits", http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePixLimits submits a limit-change request for a document.
func (c *Client) UpdatePixLimits(ctx context.Context, req *UpdatePixLimitsRequest) (*UpdatePixLimitsResponse, error) {
	var out UpdatePixLimitsResponse
	if err := c.do(ctx, "update_pix_limits", http.MethodPut, "/pix/limits", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPixLimitRequests pages through limit-change requests for a document,
// filtered by status. An empty status set defaults to all statuses.
func (c *Client) ListPixLimitRequests(ctx context.Context, document string, statuses []PixLimitRequestStatus, page, pageSize int) (*PixLimitRequestList, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	if len(statuses) == 0 {
		statuses = AllPixLimitStatuses
	}

	query := url.Values{}
	query.Set("document_number", document)
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	for _, s := range statuses {
		query.Add("status", string(s))
	}

	endpoint := "/pix/limits/requests?" + query.Encode()

	var out PixLimitRequestList
	if err := c.do(ctx, "list_pix_limit_requests", http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBillingConfiguration fetches the billing configuration of an account.
func (c *Client) GetBillingConfiguration(ctx context.Context, accountKey string) (*BillingConfiguration, error) {
	endpoint := fmt.Sprintf("/account/billing_configuration/%s", accountKey)

	var out BillingConfiguration
	if err := c.do(ctx, "get_billing_configuration", http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateBillingConfiguration submits a billing configuration change.
func (c *Client) UpdateBillingConfiguration(ctx context.Context, cfg *BillingConfiguration) (*BillingConfiguration, error) {
	var out BillingConfiguration
	if err := c.do(ctx, "update_billing_configuration", http.MethodPost, "/account/billing_configuration", cfg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
