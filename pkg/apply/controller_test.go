package apply

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/saludstaffing/applykit/pkg/forms"
	"github.com/saludstaffing/applykit/pkg/markup"
	"github.com/saludstaffing/applykit/pkg/stepper"
)

func newTestController(t *testing.T) (*markup.Document, *Controller, Result) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "apply.html"))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := markup.ParseString(string(data))
	if err != nil {
		t.Fatal(err)
	}
	node, ok := doc.Form("apply")
	if !ok {
		t.Fatal("apply form not discovered")
	}
	c, res, err := NewController(doc, node)
	if err != nil {
		t.Fatal(err)
	}
	return doc, c, res
}

func input(t *testing.T, c *Controller, field, value string, checked bool) {
	t.Helper()
	if _, err := c.Input(field, value, checked); err != nil {
		t.Fatalf("Input(%s): %v", field, err)
	}
}

func errorText(doc *markup.Document, id string) string {
	return markup.Text(doc.ElementByID(id))
}

func opKinds(res Result) []string {
	var kinds []string
	for _, op := range res.Commands.Ops() {
		kinds = append(kinds, op.Kind)
	}
	return kinds
}

func TestNewController_ShowsFirstStep(t *testing.T) {
	doc, c, res := newTestController(t)

	if got := c.State(); got.Active != 0 || got.Count != 3 {
		t.Fatalf("unexpected state %+v", got)
	}
	if res.Focus != "name" {
		t.Errorf("expected focus on name, got %q", res.Focus)
	}
	if diff := cmp.Diff([]string{"focus"}, opKinds(res)); diff != "" {
		t.Errorf("initial commands mismatch (-want +got):\n%s", diff)
	}

	node, _ := doc.Form("apply")
	if markup.HasAttr(node.Steps[0], "hidden") || !markup.HasAttr(node.Steps[1], "hidden") {
		t.Error("expected only the first step visible")
	}
	if !markup.HasAttr(node.Prev, "disabled") {
		t.Error("expected prev disabled on the first step")
	}
	if !markup.HasAttr(node.Submit, "hidden") {
		t.Error("expected submit hidden on the first step")
	}
	if got := markup.Text(node.Status); got != "Step 1 of 3" {
		t.Errorf("unexpected status %q", got)
	}
	if got := markup.AttrValue(node.Status, "aria-live"); got != "polite" {
		t.Errorf("expected polite live region, got %q", got)
	}
}

func TestController_NextBlockedByEmptyRequired(t *testing.T) {
	doc, c, _ := newTestController(t)

	res := c.Next()
	if res.Outcome.Moved || c.State().Active != 0 {
		t.Fatalf("expected to stay on step 0, got %+v", c.State())
	}
	if res.Focus != "name" {
		t.Errorf("expected focus on name, got %q", res.Focus)
	}
	if got := errorText(doc, "name-error"); got != forms.FallbackMessage {
		t.Errorf("name error = %q, want %q", got, forms.FallbackMessage)
	}
	if got := errorText(doc, "email-error"); got != forms.FallbackMessage {
		t.Errorf("email error = %q, want %q", got, forms.FallbackMessage)
	}
	node, _ := doc.Form("apply")
	if got := markup.AttrValue(node.FieldElement("name"), "aria-invalid"); got != "true" {
		t.Errorf("expected aria-invalid, got %q", got)
	}
}

func TestController_NextAdvancesWhenValid(t *testing.T) {
	doc, c, _ := newTestController(t)
	input(t, c, "name", "Ada", false)
	input(t, c, "email", "ada@example.com", false)

	res := c.Next()
	if !res.Outcome.Moved || c.State().Active != 1 {
		t.Fatalf("expected step 1, got %+v", c.State())
	}
	if res.Outcome.View.Status != "Step 2 of 3" {
		t.Errorf("unexpected status %q", res.Outcome.View.Status)
	}
	if res.Focus != "license" {
		t.Errorf("expected focus on license, got %q", res.Focus)
	}
	if diff := cmp.Diff([]string{"focus", "announce"}, opKinds(res)); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	node, _ := doc.Form("apply")
	if !markup.HasAttr(node.Submit, "hidden") {
		t.Error("expected submit hidden before the last step")
	}
	if markup.HasAttr(node.Prev, "disabled") {
		t.Error("expected prev enabled")
	}
}

func TestController_InputClearsErrorOnceValid(t *testing.T) {
	doc, c, _ := newTestController(t)
	c.Next()

	input(t, c, "email", "ada@", false)
	if got := errorText(doc, "email-error"); got != forms.FallbackMessage {
		t.Errorf("expected the error to stay while invalid, got %q", got)
	}
	input(t, c, "email", "ada@example.com", false)
	if got := errorText(doc, "email-error"); got != "" {
		t.Errorf("expected cleared error, got %q", got)
	}
}

func TestController_Blur(t *testing.T) {
	doc, c, _ := newTestController(t)
	input(t, c, "email", "not-an-email", false)

	res, err := c.Blur("email")
	if err != nil {
		t.Fatal(err)
	}
	if got := errorText(doc, "email-error"); got == "" {
		t.Error("expected an email error after blur")
	}
	if res.Focus != "" {
		t.Errorf("blur must not move focus, got %q", res.Focus)
	}

	if _, err := c.Blur("missing"); err == nil {
		t.Error("expected an error for an unknown field")
	}
}

func TestController_SubmitReturnsToFirstInvalidStep(t *testing.T) {
	_, c, _ := newTestController(t)
	input(t, c, "name", "Ada", false)
	input(t, c, "email", "ada@example.com", false)
	c.GoTo(2)

	res := c.Submit()
	if !res.Outcome.PreventDefault || res.Proceed() {
		t.Fatalf("expected a prevented submission, got %+v", res.Outcome)
	}
	if c.State().Active != 1 {
		t.Errorf("expected step 1, got %d", c.State().Active)
	}
	if res.Focus != "license" {
		t.Errorf("expected focus on license, got %q", res.Focus)
	}
	if res.Outcome.Result.FirstInvalidField != "license" {
		t.Errorf("unexpected first invalid field %q", res.Outcome.Result.FirstInvalidField)
	}
}

func TestController_SubmitProceedsWhenValid(t *testing.T) {
	_, c, _ := newTestController(t)
	input(t, c, "name", "Ada", false)
	input(t, c, "email", "ada@example.com", false)
	input(t, c, "license", "RN", false)
	input(t, c, "consent", "yes", true)
	c.GoTo(2)

	res := c.Submit()
	if !res.Proceed() || res.Outcome.PreventDefault {
		t.Fatalf("expected the submission to proceed, got %+v", res.Outcome)
	}
	kinds := opKinds(res)
	if len(kinds) == 0 || kinds[len(kinds)-1] != "submit" {
		t.Errorf("expected a trailing submit command, got %v", kinds)
	}
}

func TestController_Keydown(t *testing.T) {
	tests := []struct {
		name       string
		key        stepper.Key
		wantActive int
		prevent    bool
	}{
		{"enter in input", stepper.Key{Key: "Enter", Target: forms.KindText}, 1, true},
		{"shift enter", stepper.Key{Key: "Enter", Shift: true, Target: forms.KindText}, 0, false},
		{"enter in textarea", stepper.Key{Key: "Enter", Target: forms.KindTextarea}, 0, false},
		{"other key", stepper.Key{Key: "a", Target: forms.KindText}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c, _ := newTestController(t)
			input(t, c, "name", "Ada", false)
			input(t, c, "email", "ada@example.com", false)

			res := c.Keydown(tt.key)
			if c.State().Active != tt.wantActive {
				t.Errorf("active = %d, want %d", c.State().Active, tt.wantActive)
			}
			if res.Outcome.PreventDefault != tt.prevent {
				t.Errorf("prevent = %v, want %v", res.Outcome.PreventDefault, tt.prevent)
			}
		})
	}
}

func TestController_PrevIsNotGated(t *testing.T) {
	_, c, _ := newTestController(t)
	c.GoTo(2)
	c.Prev()
	res := c.Prev()
	if c.State().Active != 0 || !res.Outcome.Moved {
		t.Errorf("expected step 0, got %+v", c.State())
	}
}

func TestController_SetValue(t *testing.T) {
	doc, c, _ := newTestController(t)
	if !c.SetValue("role", "LPN") {
		t.Fatal("expected role to be a form field")
	}
	if got := markup.AttrValue(doc.ElementByID("role"), "value"); got != "LPN" {
		t.Errorf("unexpected role value %q", got)
	}
	if c.SetValue("role-copy", "x") {
		t.Error("expected false for an element outside the form")
	}
}
