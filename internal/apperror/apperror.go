// Package apperror defines the stable error kinds the reservation engine
// reports to callers.  Every failure leaving the service layer is an
// *Error so transports can map it to a status code and a machine
// readable kind without inspecting internal causes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the machine readable category of a failure.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindConflict   Kind = "slot_conflict"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindTransient  Kind = "transient_store_fault"
	KindInternal   Kind = "internal_fault"
)

// Error carries a kind, a message safe to show to clients and the
// underlying cause, which is only meant for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	// Details is optional structured context safe to return to clients,
	// e.g. which entity a slot conflicts with.
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetail returns e with key set in its details.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// Retryable reports whether repeating the whole operation may succeed.
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *Error { return New(KindValidation, msg) }

func NotFound(msg string) *Error { return New(KindNotFound, msg) }

func Forbidden(msg string) *Error { return New(KindForbidden, msg) }

func Conflict(msg string) *Error { return New(KindConflict, msg) }

// Internal wraps an unexpected failure behind a generic message.
func Internal(err error) *Error {
	return Wrap(KindInternal, "internal error", err)
}

// Transient wraps a retryable store fault behind a generic message.
func Transient(err error) *Error {
	return Wrap(KindTransient, "temporarily unavailable, retry the request", err)
}

// As extracts an *Error from err.  Errors that are not *Error are
// reported as internal faults.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
