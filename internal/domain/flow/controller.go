package flow

import (
	"context"
	"fmt"
	"sync"
)

// PaymentOrder is the request handed to the payment collaborator on submit
type PaymentOrder struct {
	TotalCents      int64
	Currency        string
	PaymentMethodID string
	PayerName       string
	PayerEmail      string
	Quantity        int
}

// PaymentReceipt is the successful result of a processed payment
type PaymentReceipt struct {
	TransactionID string
}

// Processor is the external payment collaborator invoked by Submit
type Processor interface {
	ProcessPayment(ctx context.Context, order PaymentOrder) (PaymentReceipt, error)
}

// Controller drives the contribution wizard: it sequences the steps, gates
// forward navigation on per-step validation, computes the running total and
// exposes read-only progress to the rendering layer.
//
// A controller is owned by a single flow session. Methods are safe for
// concurrent use; Submit additionally rejects overlapping invocations
// instead of relying on the caller to disable re-entry.
type Controller struct {
	mu          sync.Mutex
	steps       []Step
	current     int
	lastVisited int
	submitted   bool
	submitting  bool

	profile Profile
	details Details
	payment Payment
	summary Summary
}

// NewController creates a fresh flow positioned on the PROFILE step
func NewController() *Controller {
	return &Controller{steps: newSteps()}
}

// SetProfile replaces the PROFILE step data
func (c *Controller) SetProfile(p Profile) error {
	return c.setStepData(func() { c.profile = p })
}

// SetDetails replaces the DETAILS step data
func (c *Controller) SetDetails(d Details) error {
	return c.setStepData(func() { c.details = d })
}

// SetPayment replaces the PAYMENT step data
func (c *Controller) SetPayment(p Payment) error {
	return c.setStepData(func() { c.payment = p })
}

// SetSummary replaces the SUMMARY step data
func (c *Controller) SetSummary(s Summary) error {
	return c.setStepData(func() { c.summary = s })
}

func (c *Controller) setStepData(apply func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitted {
		return ErrFlowSubmitted
	}
	apply()
	return nil
}

// GoToStep moves to an already-visited step, or to the step directly after
// the navigation frontier. Targets beyond the frontier (or outside the step
// range) leave the state untouched and return ErrStepLocked.
func (c *Controller) GoToStep(target int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitted {
		return ErrFlowSubmitted
	}
	if target < 0 || target >= len(c.steps) || target > c.lastVisited+1 {
		return fmt.Errorf("%w: step %d (frontier %d)", ErrStepLocked, target, c.lastVisited)
	}

	c.current = target
	c.steps[target].Visited = true
	if target > c.lastVisited {
		c.lastVisited = target
	}
	return nil
}

// Advance validates the current step and, on success, marks it completed and
// moves to the next step. On validation failure the state is unchanged and
// the returned *ValidationError carries the field-level messages.
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitted {
		return ErrFlowSubmitted
	}

	name := c.steps[c.current].Name
	if fields := c.validateStep(name); len(fields) > 0 {
		return &ValidationError{Step: name, Fields: fields}
	}

	c.steps[c.current].Completed = true
	if c.current < len(c.steps)-1 {
		c.current++
		c.steps[c.current].Visited = true
		if c.current > c.lastVisited {
			c.lastVisited = c.current
		}
	}
	return nil
}

func (c *Controller) validateStep(name StepName) []FieldError {
	switch name {
	case StepProfile:
		return validateProfile(c.profile)
	case StepDetails:
		return validateDetails(c.details)
	case StepPayment:
		return validatePayment(c.payment, c.details, c.summary)
	default:
		return nil
	}
}

// Submit hands the order to the payment processor. It requires every step
// through PAYMENT to be completed. On processor failure the flow rolls back
// to the PAYMENT step with nothing committed; on success the flow becomes
// terminal and absorbing.
func (c *Controller) Submit(ctx context.Context, processor Processor) (PaymentReceipt, error) {
	c.mu.Lock()
	if c.submitted {
		c.mu.Unlock()
		return PaymentReceipt{}, ErrFlowSubmitted
	}
	if c.submitting {
		c.mu.Unlock()
		return PaymentReceipt{}, ErrSubmitInFlight
	}
	for i := 0; i <= stepIndex(StepPayment); i++ {
		if !c.steps[i].Completed {
			name := c.steps[i].Name
			c.mu.Unlock()
			return PaymentReceipt{}, fmt.Errorf("%w: %s", ErrStepIncomplete, name)
		}
	}

	order := PaymentOrder{
		TotalCents:      ComputeTotal(c.details, c.summary),
		Currency:        c.details.Currency,
		PaymentMethodID: c.payment.MethodID,
		PayerName:       c.profile.Name,
		PayerEmail:      c.profile.Email,
		Quantity:        c.details.Quantity,
	}
	c.submitting = true
	c.mu.Unlock()

	receipt, err := processor.ProcessPayment(ctx, order)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		// No partial commit: back to PAYMENT so the contributor can retry
		c.current = stepIndex(StepPayment)
		return PaymentReceipt{}, fmt.Errorf("process payment: %w", err)
	}

	c.submitted = true
	for i := range c.steps {
		c.steps[i].Visited = true
		c.steps[i].Completed = true
	}
	return receipt, nil
}

// Submitted reports whether the flow has reached its terminal state
func (c *Controller) Submitted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted
}

// Profile returns the PROFILE step data
func (c *Controller) Profile() Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Details returns the DETAILS step data
func (c *Controller) Details() Details {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.details
}

// Payment returns the PAYMENT step data
func (c *Controller) Payment() Payment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payment
}

// Summary returns the SUMMARY step data
func (c *Controller) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// Snapshot returns a read-only view of the flow for progress rendering.
// Steps past the navigation frontier are flagged disabled.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	views := make([]StepView, len(c.steps))
	for i, s := range c.steps {
		views[i] = StepView{
			Name:      s.Name,
			Index:     s.Index,
			Visited:   s.Visited,
			Completed: s.Completed,
			Disabled:  !c.submitted && i > c.lastVisited,
		}
	}

	return Snapshot{
		CurrentStep:     c.steps[c.current].Name,
		CurrentIndex:    c.current,
		LastVisitedStep: c.lastVisited,
		Submitted:       c.submitted,
		TotalCents:      ComputeTotal(c.details, c.summary),
		Currency:        c.details.Currency,
		Steps:           views,
	}
}
