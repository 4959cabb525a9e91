package apply

import (
	"github.com/saludstaffing/applykit/pkg/a11y"
	"github.com/saludstaffing/applykit/pkg/forms"
	"github.com/saludstaffing/applykit/pkg/js"
	"github.com/saludstaffing/applykit/pkg/markup"
	"github.com/saludstaffing/applykit/pkg/stepper"
)

// Result is what one interaction with a form produced.
type Result struct {
	Form    string
	Outcome stepper.Outcome

	// Focus is the id of the element that should receive focus, or "".
	Focus string

	// Commands are the client actions to run after the form is patched.
	Commands js.Commands
}

// Proceed reports whether a submission may continue natively.
func (r Result) Proceed() bool {
	return r.Outcome.Proceed
}

// Controller owns the stepper and validator of one form.
type Controller struct {
	doc       *markup.Document
	node      *markup.FormNode
	machine   *stepper.Machine
	validator *forms.Validator
	focus     *a11y.FocusManager
	region    *a11y.LiveRegion
}

// NewController wires a form and shows its first step.
func NewController(doc *markup.Document, node *markup.FormNode) (*Controller, Result, error) {
	c := &Controller{
		doc:   doc,
		node:  node,
		focus: a11y.NewFocusManager(),
	}
	c.validator = forms.NewValidator(node.Model, forms.WithFocuser(c.focus))

	m, err := stepper.New(node.Model.StepCount(), c.validator)
	if err != nil {
		return nil, Result{}, err
	}
	c.machine = m

	if node.Status != nil {
		id := doc.EnsureID(node.Status, node.ID+"-status")
		c.region = a11y.NewLiveRegion(id, a11y.Atomic())
		c.region.Decorate(node.Status)
	}

	res := c.finish(stepper.Outcome{View: m.GoTo(0), Moved: true})
	// the initial render already shows the status text
	res.Commands = nil
	if res.Focus != "" {
		res.Commands = js.Commands{js.Focus(res.Focus)}
	}
	return c, res, nil
}

// ID returns the form id.
func (c *Controller) ID() string {
	return c.node.ID
}

// Form returns the form model.
func (c *Controller) Form() *forms.Form {
	return c.node.Model
}

// State returns the stepper state.
func (c *Controller) State() stepper.State {
	return c.machine.State()
}

// Validator returns the form's validator.
func (c *Controller) Validator() *forms.Validator {
	return c.validator
}

// Next advances when the active step is valid.
func (c *Controller) Next() Result {
	c.focus.Take()
	return c.finish(c.machine.Next())
}

// Prev moves back one step.
func (c *Controller) Prev() Result {
	c.focus.Take()
	return c.finish(c.machine.Prev())
}

// GoTo jumps to a step without validation.
func (c *Controller) GoTo(step int) Result {
	c.focus.Take()
	return c.finish(stepper.Outcome{View: c.machine.GoTo(step), Moved: true})
}

// Submit validates the whole form.
func (c *Controller) Submit() Result {
	c.focus.Take()
	return c.finish(c.machine.Submit())
}

// Keydown handles Enter navigation.
func (c *Controller) Keydown(k stepper.Key) Result {
	c.focus.Take()
	return c.finish(c.machine.Keydown(k))
}

// Input stores a new value and clears the field's error once it is valid.
func (c *Controller) Input(fieldID, value string, checked bool) (Result, error) {
	field, err := c.node.Model.SetValue(fieldID, value, checked)
	if err != nil {
		return Result{}, err
	}
	c.focus.Take()
	c.validator.Input(field)
	return c.finish(stepper.Outcome{View: c.machine.View()}), nil
}

// Blur validates a field that lost focus.
func (c *Controller) Blur(fieldID string) (Result, error) {
	field, ok := c.node.Model.Field(fieldID)
	if !ok {
		return Result{}, forms.ErrFieldNotFound
	}
	c.focus.Take()
	c.validator.Blur(field)
	return c.finish(stepper.Outcome{View: c.machine.View()}), nil
}

// SetValue updates a field without validation, for values set by other
// components on the page.
func (c *Controller) SetValue(fieldID, value string) bool {
	if _, err := c.node.Model.SetValue(fieldID, value, false); err != nil {
		return false
	}
	c.node.ApplyFields(c.validator.States())
	return true
}

func (c *Controller) finish(out stepper.Outcome) Result {
	res := Result{Form: c.node.ID, Outcome: out}

	// an invalid field asked for focus after any step change
	res.Focus = c.focus.Take()
	if res.Focus == "" && out.View.Focus {
		res.Focus = c.doc.FirstFocusable(c.node, out.View.Active)
	}

	c.node.ApplyView(out.View)
	c.node.ApplyFields(c.validator.States())
	c.node.ApplyFocus(res.Focus)

	if res.Focus != "" {
		res.Commands = append(res.Commands, js.Focus(res.Focus))
	}
	if out.Moved && c.region != nil {
		res.Commands = append(res.Commands, c.region.Announce(out.View.Status))
	}
	if out.Proceed {
		res.Commands = append(res.Commands, js.Submit(c.node.ID))
	}
	return res
}
