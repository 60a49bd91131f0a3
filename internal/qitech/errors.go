package qitech

import (
	"errors"
	"fmt"
	"net/http"
)

// Integrity checks performed when decoding a provider response envelope.
const (
	CheckClientKey     = "api-client-key"
	CheckAuthorization = "authorization"
	CheckAPIKey        = "api-key"
	CheckEndpoint      = "endpoint"
	CheckMethod        = "method"
	CheckBodyDigest    = "body-digest"
	CheckToken         = "token"
)

// IntegrityError indicates that a response envelope failed mutual
// authentication. It is fatal for the request and is never retried.
type IntegrityError struct {
	Check  string
	Detail string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("qitech: response integrity check %q failed: %s", e.Check, e.Detail)
}

func integrityErr(check, format string, args ...any) *IntegrityError {
	return &IntegrityError{Check: check, Detail: fmt.Sprintf(format, args...)}
}

// IsIntegrityError reports whether err is a response integrity failure.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// APIError is a non-2xx response from the provider, with the decoded error
// payload attached when it could be recovered.
type APIError struct {
	StatusCode  int
	Code        string         `json:"code"`
	Description string         `json:"description"`
	Payload     map[string]any `json:"-"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("qitech: api error %d (%s): %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("qitech: api error %d", e.StatusCode)
}

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// IsServerError reports whether err is a provider 5xx.
func IsServerError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode >= 500
}
