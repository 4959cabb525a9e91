package markup

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/saludstaffing/applykit/pkg/forms"
	"github.com/saludstaffing/applykit/pkg/stepper"
)

// FormNode is an apply form bound to its elements.
type FormNode struct {
	ID    string
	Node  *html.Node
	Model *forms.Form

	Steps    []*html.Node
	Prev     *html.Node
	Next     *html.Node
	Submit   *html.Node
	Progress *html.Node
	Status   *html.Node

	fields map[string]*html.Node
	errors map[string]*html.Node
}

// bindForm returns nil for forms the stepper does not drive: no steps, or
// a missing previous or next button.
func (d *Document) bindForm(n *html.Node) *FormNode {
	steps := FindAll(n, hasClass(StepClass))
	if len(steps) == 0 {
		return nil
	}
	prev := Find(n, hasAttr(PrevAttr))
	next := Find(n, hasAttr(NextAttr))
	if prev == nil || next == nil || prev.DataAtom != atom.Button || next.DataAtom != atom.Button {
		return nil
	}

	fn := &FormNode{
		Node:     n,
		Steps:    steps,
		Prev:     prev,
		Next:     next,
		Submit:   Find(n, and(tagIs(atom.Button), hasClass(SubmitClass))),
		Progress: Find(n, hasAttr(ProgressAttr)),
		Status:   Find(n, hasAttr(StatusAttr)),
		fields:   make(map[string]*html.Node),
		errors:   make(map[string]*html.Node),
	}
	fn.ID = d.EnsureID(n, "apply-form")
	fn.Model = forms.NewForm(fn.ID)

	stepIndex := make(map[*html.Node]int, len(steps))
	for i, s := range steps {
		stepIndex[s] = i
		fn.Model.AddStep(d.EnsureID(s, fn.ID+"-step"))
	}

	for _, el := range FindAll(n, isFieldElement) {
		step := forms.NoStep
		if s := Closest(el.Parent, hasClass(StepClass)); s != nil {
			if i, ok := stepIndex[s]; ok {
				step = i
			}
		}
		field := fieldFromElement(el)
		field.ID = d.EnsureID(el, fn.ID+"-field")
		if err := fn.Model.AddField(step, field); err != nil {
			continue
		}
		fn.fields[field.ID] = el
		if errEl := describedBy(n, el); errEl != nil {
			field.DescribedBy = AttrValue(errEl, "id")
			fn.errors[field.ID] = errEl
		}
	}
	return fn
}

// describedBy resolves the first id in aria-describedby that names an
// element inside form.
func describedBy(form, el *html.Node) *html.Node {
	for _, id := range strings.Fields(AttrValue(el, "aria-describedby")) {
		if n := Find(form, attrEquals("id", id)); n != nil {
			return n
		}
	}
	return nil
}

func fieldFromElement(el *html.Node) *forms.Field {
	f := &forms.Field{
		Name:        AttrValue(el, "name"),
		Kind:        forms.KindOf(el.Data, AttrValue(el, "type")),
		Required:    HasAttr(el, "required"),
		Disabled:    HasAttr(el, "disabled") || Closest(el.Parent, and(tagIs(atom.Fieldset), hasAttr("disabled"))) != nil,
		Pattern:     AttrValue(el, "pattern"),
		Title:       AttrValue(el, "title"),
		Min:         AttrValue(el, "min"),
		Max:         AttrValue(el, "max"),
		MinLength:   atoi(AttrValue(el, "minlength")),
		MaxLength:   atoi(AttrValue(el, "maxlength")),
		Checked:     HasAttr(el, "checked"),
		CustomError: AttrValue(el, "data-custom-error"),
	}

	switch el.DataAtom {
	case atom.Textarea:
		f.Value = Text(el)
	case atom.Select:
		opts := FindAll(el, tagIs(atom.Option))
		for _, o := range opts {
			opt := forms.Option{Value: optionValue(o), Label: strings.TrimSpace(Text(o)), Disabled: HasAttr(o, "disabled")}
			f.Options = append(f.Options, opt)
			if HasAttr(o, "selected") {
				f.Value = opt.Value
			}
		}
		if !hasSelected(opts) && len(f.Options) > 0 {
			f.Value = f.Options[0].Value
		}
	default:
		v, ok := Attr(el, "value")
		if !ok && f.Kind.Checkable() {
			v = "on"
		}
		f.Value = v
	}
	return f
}

func hasSelected(opts []*html.Node) bool {
	for _, o := range opts {
		if HasAttr(o, "selected") {
			return true
		}
	}
	return false
}

func optionValue(o *html.Node) string {
	if v, ok := Attr(o, "value"); ok {
		return v
	}
	return strings.TrimSpace(Text(o))
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FieldElement returns the element bound to a field id.
func (f *FormNode) FieldElement(id string) *html.Node {
	return f.fields[id]
}

// ErrorElement returns the error container of a field, if any.
func (f *FormNode) ErrorElement(id string) *html.Node {
	return f.errors[id]
}

// FirstFocusable returns the id of the first enabled control in a step,
// assigning one if needed. It returns "" for an empty step.
func (d *Document) FirstFocusable(f *FormNode, step int) string {
	if step < 0 || step >= len(f.Steps) {
		return ""
	}
	n := Find(f.Steps[step], isFocusable)
	if n == nil {
		return ""
	}
	return d.EnsureID(n, f.ID+"-control")
}

// ApplyView writes the stepper view into the form.
func (f *FormNode) ApplyView(v stepper.View) {
	ToggleClass(f.Node, StepperClass, true)

	for i, s := range f.Steps {
		ToggleAttr(s, "hidden", i < len(v.StepHidden) && v.StepHidden[i])
	}
	ToggleAttr(f.Prev, "disabled", v.PrevDisabled)
	ToggleAttr(f.Next, "hidden", v.NextHidden)

	if f.Submit != nil {
		if v.SubmitHidden {
			ToggleAttr(f.Submit, "hidden", true)
			SetAttr(f.Submit, "aria-hidden", "true")
		} else {
			RemoveAttr(f.Submit, "hidden")
			RemoveAttr(f.Submit, "aria-hidden")
		}
	}
	if f.Progress != nil {
		SetAttr(f.Progress, "style", SetStyleProperty(AttrValue(f.Progress, "style"), ProgressProperty, v.ProgressValue))
	}
	if f.Status != nil {
		SetText(f.Status, v.Status)
	}
}

// ApplyFields writes field values and validation state into the form.
func (f *FormNode) ApplyFields(states map[string]forms.FieldState) {
	for _, field := range f.Model.Fields {
		el := f.fields[field.ID]
		if el == nil {
			continue
		}
		writeValue(el, field)

		state, ok := states[field.ID]
		if !ok {
			continue
		}
		if state.Valid {
			RemoveAttr(el, "aria-invalid")
		} else {
			SetAttr(el, "aria-invalid", "true")
		}
		if errEl := f.errors[field.ID]; errEl != nil {
			SetText(errEl, state.Message)
		}
	}
}

func writeValue(el *html.Node, field *forms.Field) {
	switch el.DataAtom {
	case atom.Textarea:
		SetText(el, field.Value)
	case atom.Select:
		for _, o := range FindAll(el, tagIs(atom.Option)) {
			ToggleAttr(o, "selected", optionValue(o) == field.Value)
		}
	default:
		if field.Kind.Checkable() {
			ToggleAttr(el, "checked", field.Checked)
			return
		}
		SetAttr(el, "value", field.Value)
	}
}

// ApplyFocus marks the element that should hold focus. An empty id clears
// the mark.
func (f *FormNode) ApplyFocus(id string) {
	for _, n := range FindAll(f.Node, hasAttr(FocusAttr)) {
		RemoveAttr(n, FocusAttr)
	}
	if id == "" {
		return
	}
	if n := Find(f.Node, attrEquals("id", id)); n != nil {
		SetAttr(n, FocusAttr, "")
	}
}

// SetStyleProperty sets one declaration in an inline style attribute value,
// keeping the others in place.
func SetStyleProperty(style, prop, value string) string {
	var decls []string
	found := false
	for _, d := range strings.Split(style, ";") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		name, _, _ := strings.Cut(d, ":")
		if strings.TrimSpace(name) == prop {
			d = prop + ": " + value
			found = true
		}
		decls = append(decls, d)
	}
	if !found {
		decls = append(decls, prop+": "+value)
	}
	return strings.Join(decls, "; ")
}
