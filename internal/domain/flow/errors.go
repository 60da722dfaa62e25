package flow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStepLocked is returned when navigation targets a step past the
	// farthest visited step (or outside the step range)
	ErrStepLocked = errors.New("step is not reachable yet")

	// ErrFlowSubmitted is returned for any mutation attempted after submit
	ErrFlowSubmitted = errors.New("flow already submitted")

	// ErrSubmitInFlight is returned when a submit is attempted while a
	// previous one is still waiting on the payment processor
	ErrSubmitInFlight = errors.New("submit already in progress")

	// ErrStepIncomplete is returned by Submit when a step before PAYMENT
	// has not been completed
	ErrStepIncomplete = errors.New("flow has incomplete steps")
)

// FieldError describes a single invalid form field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries the field-level errors of a failed step
// validation. It is recoverable: the caller corrects the fields and
// retries Advance.
type ValidationError struct {
	Step   StepName
	Fields []FieldError
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return fmt.Sprintf("step %s invalid: %s", e.Step, strings.Join(parts, "; "))
}
