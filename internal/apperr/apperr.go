// Package apperr defines the error taxonomy shared by all services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping and caller decisions.
type Kind string

const (
	// KindValidation marks malformed or missing input; never coerced.
	KindValidation Kind = "validation"
	// KindNotFound marks an unknown id, key, code, or inactive survey.
	KindNotFound Kind = "not_found"
	// KindRateLimited marks an admission-control rejection.
	KindRateLimited Kind = "rate_limited"
	// KindConflict marks a lost race on a store invariant.
	KindConflict Kind = "conflict"
	// KindStorage marks a transient store failure; callers may retry.
	KindStorage Kind = "storage"
)

// Error carries a kind, a message, and an optional wrapped cause.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int // seconds; only set for KindRateLimited
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, cause: err}
}

// RateLimited builds a rate-limit rejection with a retry-after hint.
func RateLimited(msg string, retryAfterSeconds int) *Error {
	return &Error{Kind: KindRateLimited, Message: msg, RetryAfter: retryAfterSeconds}
}

// KindOf reports the kind of err, or KindStorage for untyped errors so
// callers treat unknowns as transient rather than as client mistakes.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// RetryAfter returns the retry-after hint in seconds, or 0.
func RetryAfter(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}
