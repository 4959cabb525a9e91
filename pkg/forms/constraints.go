package forms

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"
)

// ValidityState mirrors the flags of a browser validity state.
type ValidityState struct {
	ValueMissing    bool
	TypeMismatch    bool
	PatternMismatch bool
	TooLong         bool
	TooShort        bool
	RangeUnderflow  bool
	RangeOverflow   bool
	BadInput        bool
	CustomError     bool
}

// Valid reports whether no flag is set.
func (s ValidityState) Valid() bool {
	return s == ValidityState{}
}

// Validity is the outcome of a native constraint check.
type Validity struct {
	State ValidityState

	// Message is the platform message for the first failing constraint.
	// It is empty when the platform offers none.
	Message string
}

// Valid reports whether the field satisfies its constraints.
func (v Validity) Valid() bool {
	return v.State.Valid()
}

// ConstraintChecker runs the native constraint check of a field.
type ConstraintChecker interface {
	Check(form *Form, f *Field) Validity
}

// CheckerFunc adapts a function to ConstraintChecker.
type CheckerFunc func(form *Form, f *Field) Validity

// Check calls fn(form, f).
func (fn CheckerFunc) Check(form *Form, f *Field) Validity {
	return fn(form, f)
}

// NativeChecker evaluates the declarative constraints a browser would.
// Value-missing has no platform message, callers supply their own.
type NativeChecker struct{}

const dateLayout = "2006-01-02"

// Email address syntax accepted by type=email inputs.
var emailRegex = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

var patternCache sync.Map // string -> *regexp.Regexp (nil when invalid)

func compilePattern(p string) *regexp.Regexp {
	if re, ok := patternCache.Load(p); ok {
		return re.(*regexp.Regexp)
	}
	re, err := regexp.Compile("^(?:" + p + ")$")
	if err != nil {
		// invalid patterns impose no constraint
		re = nil
	}
	patternCache.Store(p, re)
	return re
}

// Check implements ConstraintChecker.
func (NativeChecker) Check(form *Form, f *Field) Validity {
	if f.Disabled || !f.Validatable() {
		return Validity{}
	}

	var v Validity
	note := func(flag *bool, msg string) {
		*flag = true
		if v.Message == "" {
			v.Message = msg
		}
	}

	if f.Required && missing(form, f) {
		v.State.ValueMissing = true
	}

	val := f.Value
	if val != "" && !f.Kind.Checkable() {
		switch f.Kind {
		case KindNumber:
			if _, err := strconv.ParseFloat(val, 64); err != nil {
				note(&v.State.BadInput, "Please enter a number.")
			}
		case KindDate:
			if _, err := time.Parse(dateLayout, val); err != nil {
				note(&v.State.BadInput, "Please enter a valid date.")
			}
		case KindEmail:
			if !emailRegex.MatchString(val) {
				note(&v.State.TypeMismatch, "Please enter an email address.")
			}
		case KindURL:
			if u, err := url.Parse(val); err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
				note(&v.State.TypeMismatch, "Please enter a URL.")
			}
		}

		if f.Pattern != "" && f.Kind != KindSelect {
			if re := compilePattern(f.Pattern); re != nil && !re.MatchString(val) {
				msg := "Please match the requested format."
				if f.Title != "" {
					msg = fmt.Sprintf("Please match the requested format: %s.", f.Title)
				}
				note(&v.State.PatternMismatch, msg)
			}
		}

		n := utf8.RuneCountInString(val)
		if f.MaxLength > 0 && n > f.MaxLength {
			note(&v.State.TooLong, fmt.Sprintf("Please use no more than %d characters (you are currently using %d characters).", f.MaxLength, n))
		}
		if f.MinLength > 0 && n < f.MinLength {
			note(&v.State.TooShort, fmt.Sprintf("Please use at least %d characters (you are currently using %d characters).", f.MinLength, n))
		}

		if !v.State.BadInput {
			checkRange(f, &v, note)
		}
	}

	if f.CustomError != "" {
		note(&v.State.CustomError, f.CustomError)
	}
	return v
}

func checkRange(f *Field, v *Validity, note func(*bool, string)) {
	parse := func(s string) (float64, bool) {
		switch f.Kind {
		case KindNumber:
			n, err := strconv.ParseFloat(s, 64)
			return n, err == nil
		case KindDate:
			t, err := time.Parse(dateLayout, s)
			return float64(t.Unix()), err == nil
		}
		return 0, false
	}

	val, ok := parse(f.Value)
	if !ok {
		return
	}
	if lo, ok := parse(f.Min); ok && val < lo {
		note(&v.State.RangeUnderflow, fmt.Sprintf("Please select a value that is no less than %s.", f.Min))
	}
	if hi, ok := parse(f.Max); ok && val > hi {
		note(&v.State.RangeOverflow, fmt.Sprintf("Please select a value that is no more than %s.", f.Max))
	}
}

func missing(form *Form, f *Field) bool {
	switch f.Kind {
	case KindCheckbox:
		return !f.Checked
	case KindRadio:
		group := []*Field{f}
		if form != nil && f.Name != "" {
			group = form.Group(f.Name)
		}
		for _, r := range group {
			if r.Checked {
				return false
			}
		}
		return true
	}
	return f.Value == ""
}
