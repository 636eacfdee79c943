// Package apperrors implements the error taxonomy from the error-handling design
// (TransientExternal / PermanentExternal / NotFound / ValidationError /
// InternalInvariantViolation / ConfigError). Every component boundary returns a plain
// Go error that wraps one of these Kinds instead of using panics or exceptions for
// control flow; orchestrators decide on recovery by switching on Kind.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for retry/surface/log decisions at the orchestrator level.
type Kind int

const (
	// KindUnknown is never constructed deliberately; a Kind() call on a plain error
	// returns it so callers can still fall back to "surface a generic message".
	KindUnknown Kind = iota
	// KindTransientExternal covers timeouts, 5xx, network resets: retried up to 3
	// times with 1/2/4s backoff, then routed to the offline queue for KB writes.
	KindTransientExternal
	// KindPermanentExternal covers 4xx (except 404), permission denied, bad payload:
	// logged at ERROR, surfaced to the user with a short generic message.
	KindPermanentExternal
	// KindNotFound (404) is success for idempotent deletes, "not found" for lookups.
	KindNotFound
	// KindValidationError is ill-formed user input: answered with a clarification
	// prompt, never retried.
	KindValidationError
	// KindInternalInvariant is logged with full context and never surfaced raw.
	KindInternalInvariant
	// KindConfig only ever surfaces at startup or `check`.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindTransientExternal:
		return "transient_external"
	case KindPermanentExternal:
		return "permanent_external"
	case KindNotFound:
		return "not_found"
	case KindValidationError:
		return "validation_error"
	case KindInternalInvariant:
		return "internal_invariant_violation"
	case KindConfig:
		return "config_error"
	default:
		return "unknown"
	}
}

// Error is the concrete wrapped-error type carrying a Kind, a stable user-facing
// message (§7: "stable and short"), and the wrapped cause for logs/error-tracking.
type Error struct {
	Kind    Kind
	Message string // user-visible, stable, short
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a Kind-tagged error.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Transient is shorthand for a TransientExternal error.
func Transient(message string, cause error) *Error { return New(KindTransientExternal, message, cause) }

// Permanent is shorthand for a PermanentExternal error.
func Permanent(message string, cause error) *Error { return New(KindPermanentExternal, message, cause) }

// NotFound is shorthand for a NotFound error.
func NotFound(message string) *Error { return New(KindNotFound, message, nil) }

// Validation is shorthand for a ValidationError.
func Validation(message string) *Error { return New(KindValidationError, message, nil) }

// Invariant is shorthand for an InternalInvariantViolation; callers must never print
// Cause to the end user.
func Invariant(message string, cause error) *Error { return New(KindInternalInvariant, message, cause) }

// Config is shorthand for a ConfigError.
func Config(message string, cause error) *Error { return New(KindConfig, message, cause) }

// KindOf extracts the Kind from err, walking the Unwrap chain; returns KindUnknown for
// plain errors that never went through this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err should be retried per §7's propagation policy.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransientExternal
}
