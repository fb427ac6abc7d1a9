package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared across components. Callers classify failures with
// errors.Is rather than string matching.
var (
	// ErrValidation marks malformed or incomplete caller input.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a lesson or step that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStore marks a lesson store read or write failure.
	ErrStore = errors.New("store failure")

	// ErrJudgment marks a completion judge call that did not produce a verdict.
	ErrJudgment = errors.New("judgment failed")

	// ErrTimeout marks an operation that exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrConfiguration marks missing or invalid runtime configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnavailable marks a dependency that is not reachable right now.
	ErrUnavailable = errors.New("service unavailable")
)

// Wrap annotates err with a sentinel kind and a formatted message. A nil err
// returns nil. The sentinel stays visible to errors.Is through the chain.
func Wrap(kind error, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if kind == nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, kind, err)
}

// Mark creates a new error of the given kind with a formatted message, for
// failures that have no underlying cause to wrap.
func Mark(kind error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if kind == nil {
		return errors.New(msg)
	}
	return fmt.Errorf("%s: %w", msg, kind)
}

// Classify maps context cancellation errors onto the sentinel taxonomy so
// transport layers report them consistently.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(ErrTimeout, err, "deadline exceeded")
	default:
		return err
	}
}

// HTTPStatus maps a classified error onto the HTTP status the API server
// responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrJudgment):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
