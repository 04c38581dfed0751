package manager

import (
	"errors"
	"fmt"

	"steerd/internal/engine"
	"steerd/internal/session"
	"steerd/internal/statestore"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("manager closed")

// modelNotFoundError is returned when a requested model id is not present in the registry.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var e modelNotFoundError
	return errors.As(err, &e)
}

type sessionNotFoundError struct{ id string }

func (e sessionNotFoundError) Error() string { return "session not found: " + e.id }

func ErrSessionNotFound(id string) error { return sessionNotFoundError{id: id} }

// IsSessionNotFound reports whether err names an unknown or closing session.
func IsSessionNotFound(err error) bool {
	var e sessionNotFoundError
	return errors.As(err, &e)
}

// budgetExceededError is returned when a new session does not fit the
// memory budget and no idle session can be evicted.
type budgetExceededError struct{ requiredMB, usedMB, budgetMB int }

func (e budgetExceededError) Error() string {
	return fmt.Sprintf("memory budget exceeded: need %d MB, %d of %d MB in use", e.requiredMB, e.usedMB, e.budgetMB)
}

func IsBudgetExceeded(err error) bool {
	var e budgetExceededError
	return errors.As(err, &e)
}

// IsStateNotFound reports whether err names an unknown saved state.
func IsStateNotFound(err error) bool { return errors.Is(err, statestore.ErrStateNotFound) }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool { return session.IsTooBusy(err) }

// IsDependencyUnavailable reports whether err indicates a missing runtime
// dependency such as llama.cpp.
func IsDependencyUnavailable(err error) bool { return engine.IsDependencyUnavailable(err) }
