package forms

// FallbackMessage is shown when the platform has no message for a failure.
const FallbackMessage = "Please complete this field."

// FieldState is the visible validation state of a field.
type FieldState struct {
	Valid   bool
	Message string
}

// Result summarizes whole-form validation.
type Result struct {
	Valid bool

	// FirstInvalidStep is the lowest invalid step index, or NoStep.
	FirstInvalidStep int

	// FirstInvalidField is the id of the first invalid field in that step.
	FirstInvalidField string
}

// Focuser moves input focus to a field.
type Focuser interface {
	Focus(f *Field)
}

// FocusFunc adapts a function to Focuser.
type FocusFunc func(f *Field)

// Focus calls fn(f).
func (fn FocusFunc) Focus(f *Field) { fn(f) }

// Validator validates the fields of one form and tracks their error state.
type Validator struct {
	form    *Form
	checker ConstraintChecker
	focuser Focuser
	states  map[string]FieldState
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithChecker replaces the native constraint checker.
func WithChecker(c ConstraintChecker) ValidatorOption {
	return func(v *Validator) { v.checker = c }
}

// WithFocuser sets the focus target for invalid fields.
func WithFocuser(f Focuser) ValidatorOption {
	return func(v *Validator) { v.focuser = f }
}

// NewValidator creates a validator bound to form.
func NewValidator(form *Form, opts ...ValidatorOption) *Validator {
	v := &Validator{
		form:    form,
		checker: NativeChecker{},
		states:  make(map[string]FieldState),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Form returns the validated form.
func (v *Validator) Form() *Form {
	return v.form
}

// State returns the current state of a field. Untouched fields are valid.
func (v *Validator) State(id string) FieldState {
	if s, ok := v.states[id]; ok {
		return s
	}
	return FieldState{Valid: true}
}

// States returns a copy of every tracked field state.
func (v *Validator) States() map[string]FieldState {
	out := make(map[string]FieldState, len(v.states))
	for id, s := range v.states {
		out[id] = s
	}
	return out
}

// shouldValidate reports whether a field is subject to validation.
// Disabled fields never are; optional fields only once they hold a value.
func shouldValidate(f *Field) bool {
	if f.Disabled {
		return false
	}
	if f.Required {
		return true
	}
	return f.EffectiveValue() != ""
}

// ValidateField trims text-like values in place, checks the field and
// updates its error state.
func (v *Validator) ValidateField(f *Field) bool {
	f.trim()

	if !shouldValidate(f) {
		v.clear(f)
		return true
	}

	res := v.checker.Check(v.form, f)
	if res.Valid() {
		v.clear(f)
		return true
	}

	msg := res.Message
	if msg == "" {
		msg = FallbackMessage
	}
	v.states[f.ID] = FieldState{Valid: false, Message: msg}
	return false
}

func (v *Validator) clear(f *Field) {
	v.states[f.ID] = FieldState{Valid: true}
}

type stepOptions struct {
	focus bool
}

// StepOption configures ValidateStep.
type StepOption func(*stepOptions)

// WithFocus controls whether the first invalid field receives focus.
func WithFocus(focus bool) StepOption {
	return func(o *stepOptions) { o.focus = focus }
}

// ValidateStep validates every field of a step. All fields are checked even
// after a failure so every error becomes visible. Out of range steps are valid.
func (v *Validator) ValidateStep(index int, opts ...StepOption) bool {
	_, ok := v.validateStep(index, opts...)
	return ok
}

func (v *Validator) validateStep(index int, opts ...StepOption) (*Field, bool) {
	o := stepOptions{focus: true}
	for _, opt := range opts {
		opt(&o)
	}

	if index < 0 || index >= len(v.form.Steps) {
		return nil, true
	}

	var firstInvalid *Field
	for _, f := range v.form.Steps[index].Fields {
		if !f.Validatable() {
			continue
		}
		if !v.ValidateField(f) && firstInvalid == nil {
			firstInvalid = f
		}
	}

	if firstInvalid != nil && o.focus && v.focuser != nil {
		v.focuser.Focus(firstInvalid)
	}
	return firstInvalid, firstInvalid == nil
}

// ValidateAll validates every step in order without moving focus.
func (v *Validator) ValidateAll() Result {
	res := Result{Valid: true, FirstInvalidStep: NoStep}
	for i := range v.form.Steps {
		first, ok := v.validateStep(i, WithFocus(false))
		if !ok && res.Valid {
			res = Result{FirstInvalidStep: i, FirstInvalidField: first.ID}
		}
	}
	return res
}

// Input re-checks a field after its value changed. A passing field loses
// its error; a failing one keeps whatever is shown.
func (v *Validator) Input(f *Field) {
	if v.checker.Check(v.form, f).Valid() {
		v.clear(f)
	}
}

// Blur runs full validation on a field that lost focus.
func (v *Validator) Blur(f *Field) bool {
	return v.ValidateField(f)
}

// Reset forgets every field state.
func (v *Validator) Reset() {
	v.states = make(map[string]FieldState)
}
