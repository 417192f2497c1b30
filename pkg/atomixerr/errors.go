// Package atomixerr defines the error kinds propagated across the
// coordination runtime's component boundaries (builder, session manager,
// proxy stack, primitive service).
package atomixerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error by where it originates and whether an adapter
// in the proxy stack may attempt local recovery.
type Kind string

const (
	// ConfigurationInvalid is raised by the topology builder / Builder at
	// build time. Never retried.
	ConfigurationInvalid Kind = "configuration_invalid"
	// NotOpen is raised by the primitive service or composition root when
	// a user-facing operation is attempted before open() completes.
	NotOpen Kind = "not_open"
	// Unavailable means no leader was reachable for a partition. Retrying
	// may recover.
	Unavailable Kind = "unavailable"
	// LeaderUnknown means the session manager has no cached leader hint
	// and exhausted its round-robin. Retrying may recover.
	LeaderUnknown Kind = "leader_unknown"
	// Timeout means an operation's deadline elapsed. Never retried.
	Timeout Kind = "timeout"
	// SessionSuspended means a session's leader could not be reached
	// within its timeout. Recovering may recover.
	SessionSuspended Kind = "session_suspended"
	// SessionExpired is server-declared and terminal for the session.
	// Recovering may recover by opening a new session; emits OperationLost.
	SessionExpired Kind = "session_expired"
	// OperationLost is synthesized by Recovering when an in-flight
	// operation's session was replaced out from under it. Retrying may
	// recover.
	OperationLost Kind = "operation_lost"
	// ApplicationError comes from the state machine itself and is never
	// retried or recovered; it is surfaced verbatim.
	ApplicationError Kind = "application_error"
)

// Error is a Kind-tagged error. Only the Kind is inspected by adapters;
// the wrapped cause is preserved for logging and the caller.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New wraps cause with the given kind. cause may be nil.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf builds a Kind error from a format string, mirroring fmt.Errorf.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, if err (or something it wraps) is an
// *Error. The zero Kind is returned otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Transient reports whether an adapter in the proxy stack is permitted to
// transform this error (Unavailable, LeaderUnknown, SessionSuspended,
// SessionExpired, OperationLost). ConfigurationInvalid, NotOpen, Timeout,
// and ApplicationError always pass through unchanged.
func Transient(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return false
	}
	switch k {
	case Unavailable, LeaderUnknown, SessionSuspended, SessionExpired, OperationLost:
		return true
	default:
		return false
	}
}
