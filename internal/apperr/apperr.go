// Package apperr defines the error taxonomy shared by every service.
//
// Callers branch on Kind (or errors.Is against the sentinel of a kind)
// instead of matching message strings.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an error so callers can branch on it
type Kind string

const (
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindValidation          Kind = "VALIDATION_ERROR"
	KindNotFound            Kind = "NOT_FOUND"
	KindInvitationInvalid   Kind = "INVITATION_INVALID"
	KindInvitationExpired   Kind = "INVITATION_EXPIRED"
	KindInvitationExhausted Kind = "INVITATION_EXHAUSTED"
	KindInvitationInactive  Kind = "INVITATION_INACTIVE"
	KindTicketClosed        Kind = "TICKET_CLOSED"
	KindRedeemConflict      Kind = "REDEEM_CONFLICT"
	KindConflict            Kind = "CONFLICT"
	KindTimeout             Kind = "TIMEOUT"
	KindInternal            Kind = "INTERNAL"
)

// Sentinels, one per kind. errors.Is(err, ErrNotFound) matches any *Error of that kind.
var (
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrValidation          = &Error{Kind: KindValidation}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvitationInvalid   = &Error{Kind: KindInvitationInvalid}
	ErrInvitationExpired   = &Error{Kind: KindInvitationExpired}
	ErrInvitationExhausted = &Error{Kind: KindInvitationExhausted}
	ErrInvitationInactive  = &Error{Kind: KindInvitationInactive}
	ErrTicketClosed        = &Error{Kind: KindTicketClosed}
	ErrRedeemConflict      = &Error{Kind: KindRedeemConflict}
	ErrConflict            = &Error{Kind: KindConflict}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrInternal            = &Error{Kind: KindInternal}
)

// Error is the concrete error type returned by the services
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == "" && t.Err == nil
}

// New creates an error of the given kind
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying cause
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Unauthorized is shorthand for a failed permission check
func Unauthorized(op, format string, args ...any) *Error {
	return New(KindUnauthorized, op, format, args...)
}

// Validation is shorthand for malformed input
func Validation(op, format string, args ...any) *Error {
	return New(KindValidation, op, format, args...)
}

// NotFound is shorthand for an unknown entity
func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, format, args...)
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// FromContext converts deadline/cancel errors to Timeout and leaves
// everything else untouched. Services run repository errors through it.
func FromContext(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Wrap(KindTimeout, op, err)
	}
	return err
}
