package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch without parsing messages.
type Kind int

const (
	Unknown Kind = iota
	// Validation is a malformed configuration or request. Never retried.
	Validation
	// Retryable is a transient integration failure (unreachable host,
	// timeout, 5xx, 429). An orchestrator may attempt the call again.
	Retryable
	// Permanent is an integration failure that will not heal on retry
	// (malformed provider response, missing rate entry).
	Permanent
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Retryable:
		return "retryable"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error is a tagged failure.
type Error struct {
	Kind Kind
	Op   string // e.g. "fx.fetch"
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validationf builds a Validation error.
func Validationf(op, format string, args ...interface{}) *Error {
	return newf(Validation, op, format, args...)
}

// Permanentf builds a Permanent error.
func Permanentf(op, format string, args ...interface{}) *Error {
	return newf(Permanent, op, format, args...)
}

// Retryablef builds a Retryable error.
func Retryablef(op, format string, args ...interface{}) *Error {
	return newf(Retryable, op, format, args...)
}

// Wrap tags err with kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func IsValidation(err error) bool { return KindOf(err) == Validation }
func IsRetryable(err error) bool  { return KindOf(err) == Retryable }
func IsPermanent(err error) bool  { return KindOf(err) == Permanent }
