package engine

import (
	"errors"
	"fmt"
)

// ModelLoadError signals that the model file is missing or was rejected.
// Fatal to session creation.
type ModelLoadError struct {
	Path string
	Err  error
}

func (e ModelLoadError) Error() string {
	if e.Err == nil {
		return "model load failed: " + e.Path
	}
	return fmt.Sprintf("model load failed: %s: %v", e.Path, e.Err)
}

func (e ModelLoadError) Unwrap() error { return e.Err }

// IsModelLoadFailure reports whether err is a ModelLoadError.
func IsModelLoadFailure(err error) bool {
	var e ModelLoadError
	return errors.As(err, &e)
}

// ContextInitError signals that the inference context could not be allocated.
type ContextInitError struct{ Err error }

func (e ContextInitError) Error() string {
	if e.Err == nil {
		return "context init failed"
	}
	return "context init failed: " + e.Err.Error()
}

func (e ContextInitError) Unwrap() error { return e.Err }

// IsContextInitFailure reports whether err is a ContextInitError.
func IsContextInitFailure(err error) bool {
	var e ContextInitError
	return errors.As(err, &e)
}

// FormatError is returned when the chat template cannot be applied. The
// session stays usable.
type FormatError struct {
	// Code is the engine's template result (negative) or the rendered
	// length when it overflowed the buffer.
	Code  int
	Limit int
}

func (e FormatError) Error() string {
	if e.Code < 0 {
		return fmt.Sprintf("chat template failed: code %d", e.Code)
	}
	return fmt.Sprintf("chat template output too large: %d > %d bytes", e.Code, e.Limit)
}

// IsFormatFailure reports whether err is a FormatError.
func IsFormatFailure(err error) bool {
	var e FormatError
	return errors.As(err, &e)
}

// DecodeError wraps an engine failure while advancing, sampling, or
// (de)serializing the context. It aborts the current call.
type DecodeError struct {
	Op  string
	Err error
}

func (e DecodeError) Error() string {
	if e.Err == nil {
		return "decode failed: " + e.Op
	}
	return fmt.Sprintf("decode failed: %s: %v", e.Op, e.Err)
}

func (e DecodeError) Unwrap() error { return e.Err }

// IsDecodeFailure reports whether err is a DecodeError.
func IsDecodeFailure(err error) bool {
	var e DecodeError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a runtime that was not built into this
// binary (e.g. llama.cpp without the 'llama' tag).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependency-unavailable error.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}
