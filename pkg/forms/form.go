// Package forms models multi-step forms and validates their fields
// the way a browser's constraint validation does.
package forms

import "errors"

// NoStep marks a field outside any step, or a form with no invalid step.
const NoStep = -1

// Form errors.
var (
	ErrFieldNotFound = errors.New("field not found")
	ErrDuplicateID   = errors.New("duplicate field id")
)

// Step is one ordered page of a form.
type Step struct {
	Index  int
	ID     string
	Fields []*Field
}

// Form is an ordered list of steps plus every field in document order.
type Form struct {
	ID     string
	Steps  []*Step
	Fields []*Field

	byID   map[string]*Field
	stepOf map[string]int
}

// NewForm creates an empty form.
func NewForm(id string) *Form {
	return &Form{
		ID:     id,
		byID:   make(map[string]*Field),
		stepOf: make(map[string]int),
	}
}

// AddStep appends a step and returns it.
func (f *Form) AddStep(id string) *Step {
	s := &Step{Index: len(f.Steps), ID: id}
	f.Steps = append(f.Steps, s)
	return s
}

// AddField appends a field to the form and, unless step is NoStep, to that step.
func (f *Form) AddField(step int, field *Field) error {
	if _, ok := f.byID[field.ID]; ok {
		return ErrDuplicateID
	}
	f.byID[field.ID] = field
	f.Fields = append(f.Fields, field)
	if step >= 0 && step < len(f.Steps) {
		f.Steps[step].Fields = append(f.Steps[step].Fields, field)
		f.stepOf[field.ID] = step
	}
	return nil
}

// Field looks up a field by id.
func (f *Form) Field(id string) (*Field, bool) {
	field, ok := f.byID[id]
	return field, ok
}

// StepCount returns the number of steps.
func (f *Form) StepCount() int {
	return len(f.Steps)
}

// StepOf returns the index of the step containing the field, or NoStep.
func (f *Form) StepOf(id string) int {
	if i, ok := f.stepOf[id]; ok {
		return i
	}
	return NoStep
}

// Group returns every radio field sharing the name.
func (f *Form) Group(name string) []*Field {
	var group []*Field
	for _, field := range f.Fields {
		if field.Kind == KindRadio && field.Name == name {
			group = append(group, field)
		}
	}
	return group
}

// SetValue updates a field from user input. Checking a radio unchecks
// the rest of its group.
func (f *Form) SetValue(id, value string, checked bool) (*Field, error) {
	field, ok := f.byID[id]
	if !ok {
		return nil, ErrFieldNotFound
	}
	switch field.Kind {
	case KindCheckbox:
		field.Checked = checked
	case KindRadio:
		if checked {
			for _, other := range f.Group(field.Name) {
				other.Checked = false
			}
		}
		field.Checked = checked
	default:
		field.Value = value
	}
	return field, nil
}

// Values returns the effective value of every named field.
func (f *Form) Values() map[string]string {
	out := make(map[string]string, len(f.Fields))
	for _, field := range f.Fields {
		if field.Name == "" {
			continue
		}
		// radio groups keep the checked member's value
		if _, seen := out[field.Name]; !seen || field.EffectiveValue() != "" {
			out[field.Name] = field.EffectiveValue()
		}
	}
	return out
}
