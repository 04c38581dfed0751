package session

import (
	"errors"

	"steerd/internal/steering"
)

var (
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrEmptyState is returned when restoring a zero SavedState.
	ErrEmptyState = errors.New("empty saved state")

	ErrInvalidDirective = steering.ErrInvalidDirective
	ErrNilDecision      = steering.ErrNilDecision
)

// tooBusyError signals admission failure (queue full or max wait elapsed).
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string { return "too busy: " + e.reason }

// IsTooBusy reports whether err indicates backpressure.
func IsTooBusy(err error) bool {
	var e tooBusyError
	return errors.As(err, &e)
}

// TooBusyReason returns the admission failure reason, or "" if err is not a
// too-busy error.
func TooBusyReason(err error) string {
	var e tooBusyError
	if errors.As(err, &e) {
		return e.reason
	}
	return ""
}
