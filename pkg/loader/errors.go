package loader

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies discovery failures.
type ErrorKind string

const (
	// ParseFailure means the test name could not be parsed.
	ParseFailure ErrorKind = "parse"
	// ImportFailure means a module could not be imported.
	ImportFailure ErrorKind = "import"
	// ResolutionFailure means a named attribute was not found.
	ResolutionFailure ErrorKind = "resolution"
	// TypeFailure means the resolved object is not a recognized test shape.
	TypeFailure ErrorKind = "type"
	// IOFailure means a file vanished or could not be read.
	IOFailure ErrorKind = "io"
)

var (
	// ErrInterrupted aborts loading and is never converted into a Failure.
	ErrInterrupted = errors.New("loader: interrupted")
	// ErrExhausted is returned by an Iterator with nothing left to produce.
	ErrExhausted = errors.New("loader: sequence exhausted")
	// ErrModuleNotFound is returned when no search path entry holds a module.
	ErrModuleNotFound = errors.New("loader: no module named")
)

// LoadError is the error carried by a Failure.
type LoadError struct {
	// Err is the underlying error.
	Err error

	// Kind classifies the failure.
	Kind ErrorKind

	// Name is the test name or path that failed to load.
	Name string
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("[%s] %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Name, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsInterrupt reports whether err must propagate through every layer
// instead of becoming a Failure.
func IsInterrupt(err error) bool {
	return errors.Is(err, ErrInterrupted) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// failureFrom wraps err in a Failure, reusing it when it already is a
// *LoadError.
func failureFrom(err error, kind ErrorKind, name string) *Failure {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return &Failure{Err: loadErr}
	}
	return NewFailure(kind, name, err)
}
