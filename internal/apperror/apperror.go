// Package apperror defines the error taxonomy shared by the upload and quota governance paths.
// Every error carries a Kind for routing, an optional machine Reason, and a message safe to
// show to end users.
package apperror

import (
	"errors"
	"fmt"
)

// Kind is the category of a failure.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindRateLimited       Kind = "RATE_LIMITED"
	KindQuotaExceeded     Kind = "QUOTA_EXCEEDED"
	KindStorageBackend    Kind = "STORAGE_BACKEND_ERROR"
	KindPersistence       Kind = "PERSISTENCE_ERROR"
	KindAuthorization     Kind = "AUTHORIZATION_ERROR"
	KindProtectedResource Kind = "PROTECTED_RESOURCE"
	KindConflict          Kind = "CONFLICT"
	KindNotFound          Kind = "NOT_FOUND"
)

// Reason refines a Kind so callers can render distinct messages.
type Reason string

const (
	ReasonEmptyFile        Reason = "EMPTY_FILE"
	ReasonTooLarge         Reason = "TOO_LARGE"
	ReasonUnsupportedType  Reason = "UNSUPPORTED_TYPE"
	ReasonTooManyUploads   Reason = "TOO_MANY_UPLOADS"
	ReasonTooManyBytes     Reason = "TOO_MANY_BYTES"
	ReasonBelowUsed        Reason = "BELOW_USED"
	ReasonInsufficientRole Reason = "INSUFFICIENT_ROLE"
	ReasonUnauthenticated  Reason = "UNAUTHENTICATED"
	ReasonInvalidInput     Reason = "INVALID_INPUT"
)

// Error is the concrete error type returned by the service layer.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg += "/" + string(e.Reason)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind. A target with a Reason only matches that Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// Sentinels for errors.Is checks by kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrRateLimited       = &Error{Kind: KindRateLimited}
	ErrQuotaExceeded     = &Error{Kind: KindQuotaExceeded}
	ErrStorageBackend    = &Error{Kind: KindStorageBackend}
	ErrPersistence       = &Error{Kind: KindPersistence}
	ErrAuthorization     = &Error{Kind: KindAuthorization}
	ErrProtectedResource = &Error{Kind: KindProtectedResource}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrNotFound          = &Error{Kind: KindNotFound}
)

// New builds an error without an underlying cause.
func New(kind Kind, reason Reason, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error around a cause. The cause is kept for logs and errors.Is,
// never for the public message.
func Wrap(err error, kind Kind, reason Reason, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
