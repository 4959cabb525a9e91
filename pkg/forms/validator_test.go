package forms

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func threeStepForm(t *testing.T) *Form {
	t.Helper()
	f := NewForm("apply")
	f.AddStep("step-1")
	f.AddStep("step-2")
	f.AddStep("step-3")

	fields := []struct {
		step  int
		field *Field
	}{
		{0, NewField("name", KindText, WithRequired(), WithDescribedBy("name-error"))},
		{0, NewField("email", KindEmail, WithRequired(), WithDescribedBy("email-error"))},
		{1, NewField("phone", KindTel, WithPattern(`[0-9 ()+-]{7,}`, "digits only"), WithDescribedBy("phone-error"))},
		{1, NewField("license", KindSelect, WithRequired())},
		{2, NewField("notes", KindTextarea)},
		{2, NewField("consent", KindCheckbox, WithRequired(), WithValue("yes"))},
	}
	for _, fx := range fields {
		if err := f.AddField(fx.step, fx.field); err != nil {
			t.Fatalf("AddField(%s): %v", fx.field.ID, err)
		}
	}
	return f
}

func field(t *testing.T, f *Form, id string) *Field {
	t.Helper()
	fl, ok := f.Field(id)
	if !ok {
		t.Fatalf("field %q not found", id)
	}
	return fl
}

func TestValidateField_RequiredEmpty(t *testing.T) {
	form := threeStepForm(t)
	v := NewValidator(form)

	name := field(t, form, "name")
	if v.ValidateField(name) {
		t.Fatal("expected empty required field to be invalid")
	}

	want := FieldState{Valid: false, Message: FallbackMessage}
	if diff := cmp.Diff(want, v.State("name")); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateField_TrimsTextLike(t *testing.T) {
	form := threeStepForm(t)
	v := NewValidator(form)

	name := field(t, form, "name")
	name.Value = "   "
	if v.ValidateField(name) {
		t.Error("whitespace-only required value should be invalid after trimming")
	}
	if name.Value != "" {
		t.Errorf("expected value trimmed in place, got %q", name.Value)
	}

	name.Value = "  Ada  "
	if !v.ValidateField(name) {
		t.Error("expected trimmed value to be valid")
	}
	if name.Value != "Ada" {
		t.Errorf("expected 'Ada', got %q", name.Value)
	}
	if s := v.State("name"); !s.Valid || s.Message != "" {
		t.Errorf("expected cleared state, got %+v", s)
	}
}

func TestValidateField_DisabledAlwaysValid(t *testing.T) {
	form := NewForm("f")
	form.AddStep("s")
	f := NewField("x", KindEmail, WithRequired(), WithDisabled(), WithValue("not-an-email"))
	form.AddField(0, f)

	v := NewValidator(form)
	if !v.ValidateField(f) {
		t.Error("disabled field must be valid")
	}
}

func TestValidateField_OptionalEmptySkipsChecks(t *testing.T) {
	calls := 0
	checker := CheckerFunc(func(*Form, *Field) Validity {
		calls++
		return Validity{State: ValidityState{CustomError: true}, Message: "nope"}
	})

	form := NewForm("f")
	form.AddStep("s")
	f := NewField("phone", KindTel, WithValue("  "))
	form.AddField(0, f)

	v := NewValidator(form, WithChecker(checker))
	if !v.ValidateField(f) {
		t.Error("optional empty field must be valid")
	}
	if calls != 0 {
		t.Errorf("expected no constraint check, got %d", calls)
	}
}

func TestValidateField_PlatformMessage(t *testing.T) {
	form := threeStepForm(t)
	v := NewValidator(form)

	email := field(t, form, "email")
	email.Value = "ada@"
	if v.ValidateField(email) {
		t.Fatal("expected invalid email")
	}
	if got := v.State("email").Message; got != "Please enter an email address." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestValidateStep_NoShortCircuit(t *testing.T) {
	var checked []string
	checker := CheckerFunc(func(form *Form, f *Field) Validity {
		checked = append(checked, f.ID)
		return NativeChecker{}.Check(form, f)
	})

	form := threeStepForm(t)
	var focused []string
	v := NewValidator(form, WithChecker(checker), WithFocuser(FocusFunc(func(f *Field) {
		focused = append(focused, f.ID)
	})))

	if v.ValidateStep(0) {
		t.Fatal("expected step 0 invalid")
	}

	if diff := cmp.Diff([]string{"name", "email"}, checked); diff != "" {
		t.Errorf("checked fields mismatch (-want +got):\n%s", diff)
	}
	if v.State("email").Valid {
		t.Error("second invalid field should show its error too")
	}
	if diff := cmp.Diff([]string{"name"}, focused); diff != "" {
		t.Errorf("focus mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateStep_FocusDisabled(t *testing.T) {
	form := threeStepForm(t)
	focused := 0
	v := NewValidator(form, WithFocuser(FocusFunc(func(*Field) { focused++ })))

	if v.ValidateStep(0, WithFocus(false)) {
		t.Fatal("expected invalid step")
	}
	if focused != 0 {
		t.Errorf("expected no focus, got %d calls", focused)
	}
}

func TestValidateStep_OutOfRange(t *testing.T) {
	v := NewValidator(threeStepForm(t))
	for _, i := range []int{-1, 3, 99} {
		if !v.ValidateStep(i) {
			t.Errorf("step %d: out of range steps must be valid", i)
		}
	}
}

func TestValidateAll(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Form)
		want  Result
	}{
		{
			name:  "all empty",
			setup: func(*Form) {},
			want:  Result{FirstInvalidStep: 0, FirstInvalidField: "name"},
		},
		{
			name: "first step filled",
			setup: func(f *Form) {
				f.SetValue("name", "Ada", false)
				f.SetValue("email", "ada@example.com", false)
			},
			want: Result{FirstInvalidStep: 1, FirstInvalidField: "license"},
		},
		{
			name: "only last step missing",
			setup: func(f *Form) {
				f.SetValue("name", "Ada", false)
				f.SetValue("email", "ada@example.com", false)
				f.SetValue("license", "RN", false)
			},
			want: Result{FirstInvalidStep: 2, FirstInvalidField: "consent"},
		},
		{
			name: "complete",
			setup: func(f *Form) {
				f.SetValue("name", "Ada", false)
				f.SetValue("email", "ada@example.com", false)
				f.SetValue("license", "RN", false)
				f.SetValue("consent", "", true)
			},
			want: Result{Valid: true, FirstInvalidStep: NoStep},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := threeStepForm(t)
			tt.setup(form)
			focused := false
			v := NewValidator(form, WithFocuser(FocusFunc(func(*Field) { focused = true })))

			if diff := cmp.Diff(tt.want, v.ValidateAll()); diff != "" {
				t.Errorf("result mismatch (-want +got):\n%s", diff)
			}
			if focused {
				t.Error("ValidateAll must not move focus")
			}
		})
	}
}

func TestValidateAll_MarksEveryStep(t *testing.T) {
	form := threeStepForm(t)
	v := NewValidator(form)
	v.ValidateAll()

	for _, id := range []string{"name", "email", "license", "consent"} {
		if v.State(id).Valid {
			t.Errorf("expected %s to carry an error", id)
		}
	}
	if !v.State("notes").Valid {
		t.Error("optional textarea should stay valid")
	}
}

func TestInput_ClearsOnlyWhenValid(t *testing.T) {
	form := threeStepForm(t)
	v := NewValidator(form)
	email := field(t, form, "email")

	v.ValidateField(email)
	if v.State("email").Valid {
		t.Fatal("expected error after validation")
	}

	form.SetValue("email", "ada@", false)
	v.Input(email)
	if v.State("email").Message != FallbackMessage {
		t.Errorf("input must not replace the shown error, got %q", v.State("email").Message)
	}

	form.SetValue("email", "ada@example.com", false)
	v.Input(email)
	if s := v.State("email"); !s.Valid || s.Message != "" {
		t.Errorf("expected cleared state, got %+v", s)
	}
}

func TestInput_NeverShowsNewError(t *testing.T) {
	form := threeStepForm(t)
	v := NewValidator(form)
	email := field(t, form, "email")

	form.SetValue("email", "bad", false)
	v.Input(email)
	if !v.State("email").Valid {
		t.Error("input must not show a new error")
	}
}

func TestBlur_Validates(t *testing.T) {
	form := threeStepForm(t)
	v := NewValidator(form)
	phone := field(t, form, "phone")

	form.SetValue("phone", "abc", false)
	if v.Blur(phone) {
		t.Fatal("expected pattern mismatch")
	}
	if got := v.State("phone").Message; got != "Please match the requested format: digits only." {
		t.Errorf("unexpected message %q", got)
	}
}

func TestReset(t *testing.T) {
	form := threeStepForm(t)
	v := NewValidator(form)
	v.ValidateAll()
	v.Reset()
	if len(v.States()) != 0 {
		t.Errorf("expected no states, got %d", len(v.States()))
	}
}
