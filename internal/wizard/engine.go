// Package wizard implements the step-by-step expense entry flow as a pure
// state machine: a step index, the in-progress record and a submitting flag.
// It knows nothing about rendering; the HTTP layer drives it.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"expensewizard/internal/core"
	"expensewizard/internal/services"
)

var (
	// ErrSubmissionInFlight rejects any call made while Submit is persisting.
	ErrSubmissionInFlight = errors.New("submission in progress")
	// ErrNotLastStep rejects Submit before the final step is reached.
	ErrNotLastStep = errors.New("submit is only allowed from the last step")
	// ErrUnknownField rejects SetField with a name the record does not have.
	ErrUnknownField = errors.New("unknown field")
)

// StepError is the "required field" signal of a step gate.
type StepError struct {
	Step StepID
	Errs core.ValidationErrors
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: please fix %s", e.Step, strings.Join(e.Errs.Fields(), ", "))
}

func (e *StepError) Unwrap() error {
	return e.Errs
}

// Fields lists the fields the user has to fix.
func (e *StepError) Fields() []string {
	return e.Errs.Fields()
}

// Persister stores a finished record; services.ExpenseService implements it.
type Persister interface {
	Persist(ctx context.Context, rec core.ExpenseRecord, att *core.Attachment) (services.Result, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for the default date.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithGateObserver is called with the step id whenever a gate rejects a transition.
func WithGateObserver(fn func(StepID)) Option {
	return func(e *Engine) { e.onGateFailure = fn }
}

// State is a point-in-time copy of the engine.
type State struct {
	Step       int
	Total      int
	Current    Step
	CanAdvance bool
	Submitting bool
	Draft      Draft
	Visible    []StepID
}

// Engine is one wizard session: one user, one record. All methods are safe
// to call from multiple goroutines; calls are serialized on the engine.
type Engine struct {
	mu            sync.Mutex
	steps         []Step
	rules         core.Rules
	persister     Persister
	now           func() time.Time
	onGateFailure func(StepID)

	current    int
	draft      Draft
	submitting bool
}

// New starts a wizard at step 1 with an empty record dated today.
// steps must not be empty.
func New(steps []Step, rules core.Rules, p Persister, opts ...Option) *Engine {
	if len(steps) == 0 {
		panic("wizard: no steps")
	}
	e := &Engine{
		steps:     steps,
		rules:     rules,
		persister: p,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resetLocked()
	return e
}

// Len is the total number of steps, visible or not.
func (e *Engine) Len() int {
	return len(e.steps)
}

// Current returns the 1-based current step.
func (e *Engine) Current() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current + 1
}

// IsStepVisible reports whether the 1-based step n is part of the flow for
// the current record.
func (e *Engine) IsStepVisible(n int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n < 1 || n > len(e.steps) {
		return false
	}
	return e.steps[n-1].visible(e.draft)
}

// CanAdvance reports whether the 1-based step n is complete.
func (e *Engine) CanAdvance(n int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n < 1 || n > len(e.steps) {
		return false
	}
	return len(e.steps[n-1].check(e.draft)) == 0
}

// Advance moves to the next visible step once the current one is complete.
// On the last step it is a no-op.
func (e *Engine) Advance() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return ErrSubmissionInFlight
	}
	if err := e.gateLocked(e.current); err != nil {
		return err
	}
	if next, ok := e.nextVisibleLocked(e.current); ok {
		e.current = next
	}
	return nil
}

// Retreat moves to the previous visible step without validating anything.
// On the first step it is a no-op.
func (e *Engine) Retreat() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return ErrSubmissionInFlight
	}
	if prev, ok := e.prevVisibleLocked(e.current); ok {
		e.current = prev
	}
	return nil
}

// SetField writes one record field. Writing the category clears the
// sub-category in the same critical section.
func (e *Engine) SetField(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return ErrSubmissionInFlight
	}

	c := &e.draft.Candidate
	switch name {
	case core.FieldUser:
		c.User = value
	case core.FieldCategory:
		c.Category = value
		c.SubCategory = ""
	case core.FieldSubCategory:
		// The draft only ever holds a sub-category of its current category.
		if value != "" && !e.rules.Taxonomy.HasSubCategory(c.Category, value) {
			return core.ValidationErrors{{Field: core.FieldSubCategory, Err: core.ErrUnknownOption}}
		}
		c.SubCategory = value
	case core.FieldDescription:
		c.Description = value
	case core.FieldAmount:
		c.Amount = value
	case core.FieldDate:
		if strings.TrimSpace(value) == "" {
			c.Date = core.Date{}
			return nil
		}
		d, err := core.ParseDate(value)
		if err != nil {
			return core.ValidationErrors{{Field: core.FieldDate, Err: err}}
		}
		c.Date = d
	case core.FieldReceiptURL:
		c.ReceiptURL = value
	case core.FieldNotes:
		c.Notes = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

// Attach holds a receipt upload until submission; nil drops it.
func (e *Engine) Attach(att *core.Attachment) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return ErrSubmissionInFlight
	}
	e.draft.Attachment = att
	return nil
}

// Submit validates the whole record and hands it to the persister. On
// success the wizard restarts at step 1; on failure the step and the record
// are kept so the user can retry.
func (e *Engine) Submit(ctx context.Context) (services.Result, error) {
	e.mu.Lock()
	if e.submitting {
		e.mu.Unlock()
		return services.Result{}, ErrSubmissionInFlight
	}
	if e.current != e.lastVisibleLocked() {
		e.mu.Unlock()
		return services.Result{}, ErrNotLastStep
	}
	for i := range e.steps {
		if !e.steps[i].visible(e.draft) {
			continue
		}
		if err := e.gateLocked(i); err != nil {
			e.mu.Unlock()
			return services.Result{}, err
		}
	}
	rec, err := e.rules.ValidateWithAttachment(e.draft.Candidate, e.draft.Attachment)
	if err != nil {
		e.mu.Unlock()
		return services.Result{}, err
	}
	att := e.draft.Attachment
	e.submitting = true
	e.mu.Unlock()

	res, err := e.persister.Persist(ctx, rec, att)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.submitting = false
	if err != nil {
		return services.Result{}, err
	}
	e.resetLocked()
	return res, nil
}

// Reset abandons the in-progress record and returns to step 1.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.submitting {
		return ErrSubmissionInFlight
	}
	e.resetLocked()
	return nil
}

// Snapshot copies the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	var visible []StepID
	for _, s := range e.steps {
		if s.visible(e.draft) {
			visible = append(visible, s.ID)
		}
	}
	return State{
		Step:       e.current + 1,
		Total:      len(e.steps),
		Current:    e.steps[e.current],
		CanAdvance: len(e.steps[e.current].check(e.draft)) == 0,
		Submitting: e.submitting,
		Draft:      e.draft,
		Visible:    visible,
	}
}

func (e *Engine) resetLocked() {
	e.current = 0
	e.draft = Draft{Candidate: core.Candidate{Date: core.DateOf(e.now())}}
}

func (e *Engine) gateLocked(i int) error {
	errs := e.steps[i].check(e.draft)
	if len(errs) == 0 {
		return nil
	}
	if e.onGateFailure != nil {
		e.onGateFailure(e.steps[i].ID)
	}
	return &StepError{Step: e.steps[i].ID, Errs: errs}
}

func (e *Engine) nextVisibleLocked(from int) (int, bool) {
	for i := from + 1; i < len(e.steps); i++ {
		if e.steps[i].visible(e.draft) {
			return i, true
		}
	}
	return from, false
}

func (e *Engine) prevVisibleLocked(from int) (int, bool) {
	for i := from - 1; i >= 0; i-- {
		if e.steps[i].visible(e.draft) {
			return i, true
		}
	}
	return from, false
}

func (e *Engine) lastVisibleLocked() int {
	for i := len(e.steps) - 1; i >= 0; i-- {
		if e.steps[i].visible(e.draft) {
			return i
		}
	}
	return len(e.steps) - 1
}
