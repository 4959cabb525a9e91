// Package stepper drives a linear multi-step form: one step visible at a
// time, forward moves gated by validation, backward moves always allowed.
package stepper

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/saludstaffing/applykit/pkg/forms"
)

// ErrNoSteps is returned for forms without steps; such forms are left alone.
var ErrNoSteps = errors.New("stepper: form has no steps")

// Validator is the capability the stepper needs to gate transitions.
type Validator interface {
	ValidateStep(index int, opts ...forms.StepOption) bool
	ValidateAll() forms.Result
}

// State is the whole mutable state of a stepper.
type State struct {
	Active int
	Count  int
}

// IsLast reports whether the active step is the final one.
func (s State) IsLast() bool { return s.Active == s.Count-1 }

// PrevEnabled reports whether backward navigation is offered.
func (s State) PrevEnabled() bool { return s.Active > 0 }

// NextVisible reports whether the next control is shown.
func (s State) NextVisible() bool { return s.Active < s.Count-1 }

// SubmitVisible reports whether the submit control is shown.
func (s State) SubmitVisible() bool { return s.IsLast() }

// View is everything the page shows for a given State.
type View struct {
	Active       int
	Count        int
	StepHidden   []bool
	PrevDisabled bool
	NextHidden   bool
	SubmitHidden bool

	// Progress is the completed share in percent, counting the active step.
	Progress float64

	// ProgressValue is Progress formatted for the --progress custom property.
	ProgressValue string

	Status string

	// Focus requests focus on the first focusable element of the active step.
	Focus bool
}

// Derive computes the View of a State.
func Derive(s State) View {
	v := View{
		Active:       s.Active,
		Count:        s.Count,
		StepHidden:   make([]bool, s.Count),
		PrevDisabled: !s.PrevEnabled(),
		NextHidden:   !s.NextVisible(),
		SubmitHidden: !s.SubmitVisible(),
		Status:       StatusText(s.Active, s.Count),
	}
	for i := range v.StepHidden {
		v.StepHidden[i] = i != s.Active
	}
	if s.Count > 0 {
		v.Progress = float64(s.Active+1) / float64(s.Count) * 100
	}
	v.ProgressValue = strconv.FormatFloat(v.Progress, 'f', -1, 64) + "%"
	return v
}

// StatusText is the human readable position, e.g. "Step 2 of 3".
func StatusText(active, count int) string {
	return fmt.Sprintf("Step %d of %d", active+1, count)
}

// Outcome reports what an interaction did.
type Outcome struct {
	View View

	// Moved is true when the active step was (re)entered.
	Moved bool

	// PreventDefault tells the host to suppress the event's native action.
	PreventDefault bool

	// Proceed is true when a submission may continue.
	Proceed bool

	// Result holds whole-form validation for submissions.
	Result forms.Result
}

// Machine is the step state machine of one form.
type Machine struct {
	state     State
	validator Validator
}

// New creates a machine on step 0. A form without steps is an error.
func New(count int, v Validator) (*Machine, error) {
	if count <= 0 {
		return nil, ErrNoSteps
	}
	return &Machine{state: State{Count: count}, validator: v}, nil
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// View derives the current view without moving focus.
func (m *Machine) View() View {
	return Derive(m.state)
}

func clamp(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}

// GoTo activates a step without validation. The index is clamped.
func (m *Machine) GoTo(index int) View {
	m.state.Active = clamp(index, 0, m.state.Count-1)
	v := Derive(m.state)
	v.Focus = true
	return v
}

// Next advances when the active step validates. Otherwise the first invalid
// field is focused and the step stays.
func (m *Machine) Next() Outcome {
	if !m.validator.ValidateStep(m.state.Active, forms.WithFocus(true)) {
		return Outcome{View: m.View()}
	}
	return Outcome{View: m.GoTo(m.state.Active + 1), Moved: true}
}

// Prev moves back one step unconditionally.
func (m *Machine) Prev() Outcome {
	return Outcome{View: m.GoTo(m.state.Active - 1), Moved: true}
}

// Submit validates every step. An invalid form is held back and the first
// invalid step is shown with its first invalid field focused.
func (m *Machine) Submit() Outcome {
	res := m.validator.ValidateAll()
	if res.Valid {
		return Outcome{View: m.View(), Proceed: true, Result: res}
	}

	view := m.GoTo(res.FirstInvalidStep)
	m.validator.ValidateStep(res.FirstInvalidStep, forms.WithFocus(true))
	return Outcome{View: view, Moved: true, PreventDefault: true, Result: res}
}

// Key describes a keydown event.
type Key struct {
	Key   string
	Shift bool

	// Target is the kind of the element the event was dispatched to.
	Target forms.Kind
}

// Keydown turns Enter into a gated step advance on every step but the
// last. Shift+Enter and Enter inside a textarea keep their native meaning.
func (m *Machine) Keydown(k Key) Outcome {
	if k.Key != "Enter" || k.Shift || k.Target == forms.KindTextarea || m.state.IsLast() {
		return Outcome{View: m.View()}
	}
	out := m.Next()
	out.PreventDefault = true
	return out
}
