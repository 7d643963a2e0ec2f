package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrAccessDenied     = errors.New("access_denied")
	ErrNotFound         = errors.New("not_found")
	ErrConflict         = errors.New("conflict")
	ErrStaleState       = errors.New("stale_state")
	ErrSuperseded       = errors.New("superseded")
	ErrAlreadyCompleted = errors.New("already_completed")
	ErrGuestNotAllowed  = errors.New("guest_not_allowed")
	ErrLobbyFull        = errors.New("lobby_full")
)

var kinds = []error{
	ErrInvalidRequest,
	ErrAccessDenied,
	ErrNotFound,
	ErrStaleState,
	ErrConflict,
	ErrSuperseded,
	ErrAlreadyCompleted,
	ErrGuestNotAllowed,
	ErrLobbyFull,
}

// Error carries one of the sentinel kinds plus a human readable detail.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func New(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Code returns the wire code of the first sentinel err wraps, or "internal_error".
func Code(err error) string {
	if k := Kind(err); k != nil {
		return k.Error()
	}
	return "internal_error"
}

func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}

// Retryable reports whether the caller should re-fetch and try again.
func Retryable(err error) bool {
	return errors.Is(err, ErrStaleState) || errors.Is(err, ErrConflict)
}
