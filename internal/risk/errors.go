package risk

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned when a configuration fails validation.
	ErrInvalidConfig = errors.New("invalid risk config")

	// ErrMalformedOrder marks order data the detectors cannot interpret.
	ErrMalformedOrder = errors.New("malformed order")

	// ErrNoConfig is returned when the engine has no configuration snapshot.
	ErrNoConfig = errors.New("no risk config available")
)

// EvaluationError reports an internal failure during evaluation. It is
// returned alongside the fail-open zero result, never instead of it.
type EvaluationError struct {
	OrderID string
	Cause   error
	// Panic holds the recovered value when the failure was a panic.
	Panic interface{}
}

func (e *EvaluationError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("risk evaluation of order %q panicked: %v", e.OrderID, e.Panic)
	}
	return fmt.Sprintf("risk evaluation of order %q failed: %v", e.OrderID, e.Cause)
}

func (e *EvaluationError) Unwrap() error {
	return e.Cause
}
