package forms

import "strings"

// Kind identifies the control type of a form field.
type Kind string

const (
	KindText     Kind = "text"
	KindEmail    Kind = "email"
	KindTel      Kind = "tel"
	KindURL      Kind = "url"
	KindSearch   Kind = "search"
	KindPassword Kind = "password"
	KindNumber   Kind = "number"
	KindDate     Kind = "date"
	KindTextarea Kind = "textarea"
	KindSelect   Kind = "select"
	KindCheckbox Kind = "checkbox"
	KindRadio    Kind = "radio"
	KindHidden   Kind = "hidden"
	KindButton   Kind = "button"
)

// KindOf maps an element tag and its type attribute to a Kind.
// Unknown input types behave like text inputs.
func KindOf(tag, typ string) Kind {
	switch strings.ToLower(tag) {
	case "textarea":
		return KindTextarea
	case "select":
		return KindSelect
	case "button":
		return KindButton
	}
	switch k := Kind(strings.ToLower(strings.TrimSpace(typ))); k {
	case KindEmail, KindTel, KindURL, KindSearch, KindPassword, KindNumber,
		KindDate, KindCheckbox, KindRadio, KindHidden:
		return k
	case "submit", "reset", "button", "image":
		return KindButton
	}
	return KindText
}

// TextLike reports whether values of this kind are trimmed before validation.
func (k Kind) TextLike() bool {
	switch k {
	case KindText, KindEmail, KindTel, KindURL, KindSearch, KindPassword, KindTextarea:
		return true
	}
	return false
}

// Checkable reports whether the field carries a checked state.
func (k Kind) Checkable() bool {
	return k == KindCheckbox || k == KindRadio
}

// Option represents a select option.
type Option struct {
	Value    string
	Label    string
	Disabled bool
}

// Field is a single input, select or textarea inside a form.
type Field struct {
	// ID identifies the field element within its document.
	ID string

	// Name is the submitted field name.
	Name string

	Kind  Kind
	Value string

	// Checked applies to checkbox and radio fields.
	Checked bool

	Required bool
	Disabled bool

	// Pattern is matched against the whole value.
	Pattern string

	// Title is appended to pattern mismatch messages.
	Title string

	// MinLength and MaxLength count characters; zero means unset.
	MinLength int
	MaxLength int

	// Min and Max are the raw attribute values for number and date fields.
	Min string
	Max string

	Options []Option

	// DescribedBy holds the id of the element that shows this field's error.
	DescribedBy string

	// CustomError is a custom validity message set by the page.
	CustomError string
}

// FieldOption configures a field.
type FieldOption func(*Field)

// NewField creates a new field.
func NewField(id string, kind Kind, opts ...FieldOption) *Field {
	f := &Field{ID: id, Name: id, Kind: kind}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithName sets the submitted name.
func WithName(name string) FieldOption {
	return func(f *Field) { f.Name = name }
}

// WithValue sets the initial value.
func WithValue(v string) FieldOption {
	return func(f *Field) { f.Value = v }
}

// WithRequired marks the field as required.
func WithRequired() FieldOption {
	return func(f *Field) { f.Required = true }
}

// WithDisabled marks the field as disabled.
func WithDisabled() FieldOption {
	return func(f *Field) { f.Disabled = true }
}

// WithPattern sets the pattern constraint and its title hint.
func WithPattern(pattern, title string) FieldOption {
	return func(f *Field) {
		f.Pattern = pattern
		f.Title = title
	}
}

// WithLength sets minlength and maxlength.
func WithLength(min, max int) FieldOption {
	return func(f *Field) {
		f.MinLength = min
		f.MaxLength = max
	}
}

// WithRange sets min and max.
func WithRange(min, max string) FieldOption {
	return func(f *Field) {
		f.Min = min
		f.Max = max
	}
}

// WithOptions sets the select options.
func WithOptions(opts ...Option) FieldOption {
	return func(f *Field) { f.Options = opts }
}

// WithDescribedBy links the field to its error element.
func WithDescribedBy(id string) FieldOption {
	return func(f *Field) { f.DescribedBy = id }
}

// WithChecked sets the checked state.
func WithChecked(checked bool) FieldOption {
	return func(f *Field) { f.Checked = checked }
}

// EffectiveValue is the value the field would submit.
func (f *Field) EffectiveValue() string {
	if f.Kind.Checkable() && !f.Checked {
		return ""
	}
	return f.Value
}

// Focusable reports whether the field can receive focus.
func (f *Field) Focusable() bool {
	return !f.Disabled && f.Kind != KindHidden
}

// Validatable reports whether the field takes part in step validation.
func (f *Field) Validatable() bool {
	return f.Kind != KindHidden && f.Kind != KindButton
}

func (f *Field) trim() {
	if f.Kind.TextLike() {
		f.Value = strings.TrimSpace(f.Value)
	}
}
