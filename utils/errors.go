// utils/errors.go
package utils

import (
	"errors"
	"net/http"
)

// ErrorKind classifies failures so handlers can map them to a status code.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindAuth       ErrorKind = "auth"
	KindNotFound   ErrorKind = "not_found"
	KindConflict   ErrorKind = "conflict"
	KindGone       ErrorKind = "gone"
	KindQuota      ErrorKind = "quota"
	KindUpstream   ErrorKind = "upstream"
	KindInternal   ErrorKind = "internal"
)

// AppError is the error type returned across the service boundary.
type AppError struct {
	Kind    ErrorKind
	Status  int
	Message string
	// Field names the offending input for conflicts ("email", "username", "phone").
	Field string
	// Extra is merged into the JSON error body.
	Extra map[string]interface{}
	Err   error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// With attaches an extra key to the error body and returns the same error.
func (e *AppError) With(key string, value interface{}) *AppError {
	if e.Extra == nil {
		e.Extra = make(map[string]interface{})
	}
	e.Extra[key] = value
	return e
}

func NewValidationError(message string) *AppError {
	return &AppError{Kind: KindValidation, Status: http.StatusBadRequest, Message: message}
}

// NewAuthError covers bad credentials, bad signatures and missing sessions.
// status is 400, 401 or 403 depending on the caller's contract.
func NewAuthError(status int, message string) *AppError {
	return &AppError{Kind: KindAuth, Status: status, Message: message}
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Status: http.StatusNotFound, Message: message}
}

func NewConflictError(field, message string) *AppError {
	return &AppError{Kind: KindConflict, Status: http.StatusConflict, Message: message, Field: field}
}

func NewGoneError(message string) *AppError {
	return &AppError{Kind: KindGone, Status: http.StatusGone, Message: message}
}

// NewQuotaError is used for exhausted (429) and expired or unknown (403) keys.
func NewQuotaError(status int, message string) *AppError {
	return &AppError{Kind: KindQuota, Status: status, Message: message}
}

func NewUpstreamError(message string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Status: http.StatusBadGateway, Message: message, Err: err}
}

func NewInternalError(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Status: http.StatusInternalServerError, Message: message, Err: err}
}

// AsAppError unwraps err into an AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError("Server error", err)
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}
