package market

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a service failure so the HTTP layer can pick a status and
// clients can branch without string matching.
type Code string

const (
	CodeValidation          Code = "validation"
	CodeUnauthorized        Code = "unauthorized"
	CodeForbidden           Code = "forbidden"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeInvalidTransition   Code = "invalid_transition"
	CodeNotAvailable        Code = "not_available"
	CodeSelfPurchase        Code = "self_purchase"
	CodeImmutable           Code = "immutable"
	CodeComplianceHold      Code = "compliance_hold"
	CodeQuotaExceeded       Code = "quota_exceeded"
	CodeLimitExceeded       Code = "limit_exceeded"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodeInvalidAmount       Code = "invalid_amount"
	CodeInactiveListing     Code = "inactive_listing"
	CodeDependency          Code = "dependency"
	CodeInternal            Code = "internal"
)

// HTTPStatus maps the code onto a response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeDependency, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// Error is the typed failure returned at the service boundary.
type Error struct {
	Code    Code
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.err }

// E builds a service error with a human-readable message.
func E(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches an underlying cause while keeping the client-facing message.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, err: err}
}

// CodeOf extracts the code from err, defaulting to internal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf extracts the client-facing message from err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
