// Package apperr provides standardized domain error types for the application.
// Domain services return these typed errors, and the HTTP layer middleware
// automatically maps them to appropriate HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind represents the category of error.
type Kind int

const (
	// KindUnknown is the default error kind when none is specified.
	KindUnknown Kind = iota
	// KindNotFound indicates a resource was not found.
	KindNotFound
	// KindValidation indicates invalid input data.
	KindValidation
	// KindConflict indicates a conflict with existing state (e.g., duplicate).
	KindConflict
	// KindForbidden indicates the action is not allowed for the user.
	KindForbidden
	// KindUnauthorized indicates authentication is required or failed.
	KindUnauthorized
	// KindBadRequest indicates a malformed or invalid request.
	KindBadRequest
	// KindInternal indicates an unexpected internal error.
	KindInternal
	// KindGone indicates a resource that existed but is no longer available.
	KindGone
	// KindUnavailable indicates a required upstream dependency could not be reached.
	KindUnavailable
)

// Machine-readable codes for the pipeline's error taxonomy. A Kind decides the
// HTTP status; a Code tells callers (and operators reading logs) which stage failed.
const (
	CodeAuthentication   = "authentication_failed"
	CodeNotFound         = "not_found"
	CodeNoActiveCampaign = "no_active_campaign"
	CodeAcquisition      = "acquisition_failed"
	CodeScoring          = "scoring_unavailable"
	CodeConflict         = "conflict"
	CodeRetention        = "retention_failed"
)

// Error is a domain error with a typed Kind for HTTP mapping.
type Error struct {
	Kind    Kind
	Code    string // Taxonomy code (optional)
	Message string
	Op      string      // Operation that failed (optional)
	Err     error       // Underlying error (optional)
	Details interface{} // Additional details for response (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the appropriate HTTP status code for this error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindBadRequest:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInternal:
		return http.StatusInternalServerError
	case KindGone:
		return http.StatusGone
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

// New creates a new domain error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new domain error wrapping an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithCode sets the taxonomy code.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Convenience constructors for common error types.

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(KindNotFound, message).WithCode(CodeNotFound)
}

// Validation creates a validation error.
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Conflict creates a conflict error (e.g., duplicate resource).
func Conflict(message string) *Error {
	return New(KindConflict, message).WithCode(CodeConflict)
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

// BadRequest creates a bad request error.
func BadRequest(message string) *Error {
	return New(KindBadRequest, message)
}

// Gone creates a gone error (resource expired/removed).
func Gone(message string) *Error {
	return New(KindGone, message)
}

// Unavailable creates an error for an unreachable upstream dependency.
func Unavailable(message string) *Error {
	return New(KindUnavailable, message)
}

// Taxonomy constructors.

// Authentication reports a missing or invalid webhook signature.
func Authentication(message string) *Error {
	return Unauthorized(message).WithCode(CodeAuthentication)
}

// NoActiveCampaign reports a sales rep without an approved campaign application.
func NoActiveCampaign(message string) *Error {
	return BadRequest(message).WithCode(CodeNoActiveCampaign)
}

// Acquisition reports a failed recording download, upload or insert.
// stage names the step so operators can triage without reading the stack.
func Acquisition(stage string, err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeAcquisition,
		Message: "failed to acquire recording",
		Op:      stage,
		Err:     err,
	}
}

// ScoringUnavailable reports an unreachable model or an unusable response.
func ScoringUnavailable(err error) *Error {
	return &Error{
		Kind:    KindUnavailable,
		Code:    CodeScoring,
		Message: "scoring is temporarily unavailable",
		Err:     err,
	}
}

// Retention reports a per-item storage deletion failure.
func Retention(fileKey string, err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    CodeRetention,
		Message: "failed to delete recording object",
		Op:      fileKey,
		Err:     err,
	}
}

// GetKind extracts the error kind from an error chain.
// Returns KindUnknown if no *Error is found.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// HasCode reports whether any *Error in the chain carries the given code.
func HasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Is checks if err is an *Error with the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}
