package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error into a stable, machine-readable category.
type Kind string

const (
	KindUnauthorized      Kind = "unauthorized"
	KindTokenExpired      Kind = "token_expired"
	KindTokenRevoked      Kind = "token_revoked"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindValidation        Kind = "validation_failed"
	KindInvalidTransition Kind = "invalid_transition"
	KindTenantInactive    Kind = "tenant_inactive"
	KindTenantMismatch    Kind = "tenant_mismatch"
	KindConflict          Kind = "conflict"
	KindUnavailable       Kind = "unavailable"
	KindInternal          Kind = "internal"
)

// Error is the application error type. The Kind is part of the API
// contract; Message is safe to show to callers, Err is not.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes two application errors match on Kind, so callers can use
// errors.Is(err, apperror.New(KindNotFound, "")) style sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, or KindInternal when err is not
// an application error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func Unauthorized(message string) *Error {
	return New(KindUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, message)
}

func NotFound(resource string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s not found", resource))
}

func Validation(message string) *Error {
	return New(KindValidation, message)
}

func InvalidTransition(message string) *Error {
	return New(KindInvalidTransition, message)
}

func Unavailable(err error) *Error {
	return Wrap(KindUnavailable, "dependency unavailable", err)
}

func Internal(err error) *Error {
	return Wrap(KindInternal, "internal error", err)
}
