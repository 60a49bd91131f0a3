// Package apierror defines the HTTP-facing error taxonomy shared by all
// handlers: validation (400), unauthorized (401), not found (404),
// conflict (409) and unexpected (500).
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error for HTTP serialization.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflict
)

// Error carries a classification alongside the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a 400-class error.
func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Unauthorized returns a 401-class error.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// NotFound returns a 404-class error.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Conflict returns a 409-class error.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Wrap returns a 500-class error wrapping cause.
func Wrap(msg string, cause error) *Error {
	return &Error{Kind: KindUnexpected, Message: msg, Err: cause}
}

// StatusCode maps an error to its HTTP status. Unclassified errors are 500.
func StatusCode(err error) int {
	var ae *Error
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to expose to the caller.
// Unexpected errors collapse to a generic message so internals never leak.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindUnexpected {
		return ae.Message
	}
	return "unexpected API error"
}
