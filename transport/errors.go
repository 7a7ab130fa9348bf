package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies transport failures for retry decisions.
type ErrorKind int

const (
	// KindTransient covers timeouts, connection resets, rate limiting by the
	// remote side, and 5xx-class failures. Retryable with backoff.
	KindTransient ErrorKind = iota
	// KindBadRequest covers malformed-request class failures. Retrying cannot
	// help.
	KindBadRequest
	// KindForbidden covers missing-permission failures (eg, the bot was
	// demoted). Not retryable, but also not malformed.
	KindForbidden
)

// Error is a classified transport failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Msg        string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error (status %d): %s", e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("transport error: %s", e.Msg)
}

func NewTransientError(msg string) *Error {
	return &Error{Kind: KindTransient, Msg: msg}
}

func NewBadRequestError(msg string) *Error {
	return &Error{Kind: KindBadRequest, Msg: msg}
}

// IsTransient reports whether err should be retried with backoff. Plain
// network errors and deadline expiry count as transient even when they were
// not wrapped in an *Error by the transport.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == KindTransient
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsBadRequest reports whether err is a malformed-request class failure.
func IsBadRequest(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == KindBadRequest
	}
	return false
}

// IsForbidden reports whether err is a permission failure.
func IsForbidden(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind == KindForbidden
	}
	return false
}
