package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure for callers that need to react to it
type Kind string

const (
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal"
)

// Error is a classified failure. Message is safe to show to the caller;
// Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind and message, so sentinels
// survive being re-created or wrapped
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind && e.Message == other.Message
}

// Bet ledger rejections
var (
	ErrBettingClosed      = &Error{Kind: KindConflict, Message: "betting closed"}
	ErrBettingNotYetOpen  = &Error{Kind: KindConflict, Message: "not yet open"}
	ErrDeadlinePassed     = &Error{Kind: KindConflict, Message: "deadline passed"}
	ErrInsufficientPoints = &Error{Kind: KindConflict, Message: "insufficient points"}
)

var (
	ErrPredictionNotFound = &Error{Kind: KindNotFound, Message: "prediction not found"}
	ErrBetNotFound        = &Error{Kind: KindNotFound, Message: "bet not found"}
	ErrUnauthenticated    = &Error{Kind: KindUnauthorized, Message: "caller identity required"}
	ErrAdminRequired      = &Error{Kind: KindForbidden, Message: "administrator required"}
)

// ValidationError reports malformed input
func ValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// ConflictError reports a request that is well formed but not allowed in the current state
func ConflictError(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing entity
func NotFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain.
// Unclassified errors are internal; a nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-facing message for err
func MessageOf(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return "internal error"
}
