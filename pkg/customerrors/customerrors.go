// Package customerrors holds the typed failures reported by gates, resolvers
// and use cases. Every kind maps to exactly one HTTP status.
package customerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Storage-level sentinels. Repositories translate driver errors into these.
var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("unique constraint violated")
	ErrNoRowsAffected  = errors.New("no rows affected")
	ErrSessionNotFound = errors.New("session not found")
)

type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindInvalidCredentials  Kind = "invalid_credentials"
	KindDuplicateCredential Kind = "duplicate_credential"
	KindContentTypeMismatch Kind = "content_type_mismatch"
	KindUnsafeDocument      Kind = "unsafe_document_rejected"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindInvalidCsrfToken    Kind = "invalid_csrf_token"
	KindPathTraversal       Kind = "path_traversal_rejected"
	KindRedirectNotAllowed  Kind = "redirect_not_allowed"
	KindSsrfBlocked         Kind = "ssrf_blocked"
	KindNotFound            Kind = "not_found"
	KindTooManyRequests     Kind = "too_many_requests"
	KindInternal            Kind = "internal_error"
	KindUpstreamTimeout     Kind = "upstream_timeout"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindSessionUnavailable  Kind = "session_unavailable"
)

var statusByKind = map[Kind]int{
	KindValidation:          http.StatusBadRequest,
	KindInvalidCredentials:  http.StatusBadRequest,
	KindDuplicateCredential: http.StatusBadRequest,
	KindContentTypeMismatch: http.StatusBadRequest,
	KindUnsafeDocument:      http.StatusBadRequest,
	KindUnauthorized:        http.StatusUnauthorized,
	KindForbidden:           http.StatusForbidden,
	KindInvalidCsrfToken:    http.StatusForbidden,
	KindPathTraversal:       http.StatusForbidden,
	KindRedirectNotAllowed:  http.StatusForbidden,
	KindSsrfBlocked:         http.StatusForbidden,
	KindNotFound:            http.StatusNotFound,
	KindTooManyRequests:     http.StatusTooManyRequests,
	KindInternal:            http.StatusInternalServerError,
	KindUpstreamTimeout:     http.StatusBadGateway,
	KindUpstreamUnavailable: http.StatusServiceUnavailable,
	KindSessionUnavailable:  http.StatusServiceUnavailable,
}

// FieldError is one rejected input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// AppError is a request-local failure safe to show to the client. Cause is
// kept for logging only and never serialized.
type AppError struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Status returns the HTTP status code for the error kind.
func (e *AppError) Status() int {
	if code, ok := statusByKind[e.Kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Is matches another *AppError of the same kind, so callers can write
// errors.Is(err, customerrors.Unauthorized("")).
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Wrap attaches an internal cause to a client-safe error.
func Wrap(kind Kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

func Validation(message string, fields ...FieldError) *AppError {
	return &AppError{Kind: KindValidation, Message: message, Fields: fields}
}

func Unauthorized(message string) *AppError {
	if message == "" {
		message = "Unauthorized"
	}
	return New(KindUnauthorized, message)
}

func Forbidden(message string) *AppError {
	if message == "" {
		message = "Forbidden"
	}
	return New(KindForbidden, message)
}

func NotFound(message string) *AppError {
	if message == "" {
		message = "Not found"
	}
	return New(KindNotFound, message)
}

func Internal(cause error) *AppError {
	return Wrap(KindInternal, "Internal Server Error", cause)
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
