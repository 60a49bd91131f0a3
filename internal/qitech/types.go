package qitech

// AccountType distinguishes natural and legal person accounts.
type AccountType string

const (
	AccountTypeNatural AccountType = "natural"
	AccountTypeLegal   AccountType = "legal"
)

// AccountOwner identifies the holder of an account. Exactly one of the
// document fields is set, matching the account type.
type AccountOwner struct {
	Name                     string `json:"name"`
	IndividualDocumentNumber string `json:"individual_document_number,omitempty"`
	CompanyDocumentNumber    string `json:"company_document_number,omitempty"`
	Email                    string `json:"email,omitempty"`
	Phone                    string `json:"phone,omitempty"`
}

type CreateAccountRequest struct {
	AccountOwner AccountOwner `json:"account_owner"`
	AccountType  AccountType  `json:"account_type"`
	CallbackURL  string       `json:"callback_url,omitempty"`
}

type AccountResponse struct {
	AccountKey    string         `json:"account_key"`
	AccountNumber string         `json:"account_number,omitempty"`
	AccountBranch string         `json:"account_branch,omitempty"`
	AccountDigit  string         `json:"account_digit,omitempty"`
	AccountStatus string         `json:"account_status,omitempty"`
	Data          map[string]any `json:"data,omitempty"`
}

type Pagination struct {
	CurrentPage int `json:"current_page"`
	NextPage    int `json:"next_page,omitempty"`
	RowsPerPage int `json:"rows_per_page"`
	TotalRows   int `json:"total_rows"`
	TotalPages  int `json:"total_pages"`
}

type AccountList struct {
	Data       []AccountResponse `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

// PixKeyType enumerates the key kinds accepted by the provider.
type PixKeyType string

const (
	PixKeyTypeRandom PixKeyType = "random_key"
	PixKeyTypeEmail  PixKeyType = "email"
	PixKeyTypeCNPJ   PixKeyType = "cnpj"
	PixKeyTypePhone  PixKeyType = "phone_number"
)

type CreatePixKeyRequest struct {
	AccountKey string     `json:"account_key"`
	KeyType    PixKeyType `json:"pix_key_type"`
	Key        string     `json:"pix_key,omitempty"`
}

type PixKeyResponse struct {
	PixKey     string     `json:"pix_key,omitempty"`
	KeyType    PixKeyType `json:"pix_key_type"`
	Status     string     `json:"pix_key_status"`
	RequestKey string     `json:"pix_key_request_key"`
}

// PixLimits holds the transfer limits for one document, in cents.
type PixLimits struct {
	DocumentNumber            string `json:"document_number"`
	DaytimeLimitPerTransfer   int64  `json:"daytime_limit_per_transaction"`
	DaytimeLimitPerDay        int64  `json:"daytime_limit_per_day"`
	NighttimeLimitPerTransfer int64  `json:"nighttime_limit_per_transaction"`
	NighttimeLimitPerDay      int64  `json:"nighttime_limit_per_day"`
	SelfLimitPerTransfer      int64  `json:"self_limit_per_transaction,omitempty"`
	SelfLimitPerDay           int64  `json:"self_limit_per_day,omitempty"`
}

type UpdatePixLimitsRequest struct {
	DocumentNumber string    `json:"document_number"`
	RequestLimits  PixLimits `json:"pix_transfer_limit_config"`
}

type UpdatePixLimitsResponse struct {
	RequestKey string         `json:"pix_limit_request_key"`
	Status     string         `json:"status,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// PixLimitRequestStatus enumerates the lifecycle of a limit-change request.
type PixLimitRequestStatus string

const (
	PixLimitStatusPendingApproval PixLimitRequestStatus = "pending_approval"
	PixLimitStatusApproved        PixLimitRequestStatus = "approved"
	PixLimitStatusRejected        PixLimitRequestStatus = "rejected"
	PixLimitStatusExecuted        PixLimitRequestStatus = "executed"
)

// AllPixLimitStatuses is the default status filter when listing requests.
var AllPixLimitStatuses = []PixLimitRequestStatus{
	PixLimitStatusPendingApproval,
	PixLimitStatusApproved,
	PixLimitStatusRejected,
	PixLimitStatusExecuted,
}

type PixLimitRequest struct {
	RequestKey string                `json:"pix_limit_request_key"`
	Status     PixLimitRequestStatus `json:"status"`
	Limits     PixLimits             `json:"pix_transfer_limit_config"`
	CreatedAt  string                `json:"created_at,omitempty"`
}

type PixLimitRequestList struct {
	Data       []PixLimitRequest `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

type BillingConfiguration struct {
	AccountKey    string         `json:"account_key"`
	Plan          string         `json:"plan,omitempty"`
	Configuration map[string]any `json:"billing_configuration,omitempty"`
}

type FileResponse struct {
	FileKey  string `json:"file_key"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}
