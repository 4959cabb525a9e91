package apply

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/saludstaffing/applykit/pkg/core"
	"github.com/saludstaffing/applykit/pkg/rolechips"
)

func newTestPage(t *testing.T) *Page {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "apply.html"))
	if err != nil {
		t.Fatal(err)
	}
	p := NewPage("apply", data)
	if err := p.Mount(context.Background(), core.Params{}, core.Session{}); err != nil {
		t.Fatal(err)
	}
	return p
}

func send(t *testing.T, p *Page, event string, payload map[string]any) {
	t.Helper()
	if err := p.HandleEvent(context.Background(), event, payload); err != nil {
		t.Fatalf("%s: %v", event, err)
	}
}

func TestPage_Mount(t *testing.T) {
	p := newTestPage(t)

	if diff := cmp.Diff([]string{"apply"}, p.FormIDs()); diff != "" {
		t.Errorf("forms mismatch (-want +got):\n%s", diff)
	}
	chips := p.ChipGroupIDs()
	if len(chips) != 1 {
		t.Fatalf("expected one chip group, got %v", chips)
	}
	if got := p.SelectedRole(chips[0]); got != "RN" {
		t.Errorf("expected default role RN, got %q", got)
	}

	c, _ := p.Controller("apply")
	if f, _ := c.Form().Field("role"); f.Value != "RN" {
		t.Errorf("expected role field RN, got %q", f.Value)
	}

	cmds := p.TakeCommands()
	if len(cmds) != 1 || cmds.Ops()[0].Target != "name" {
		t.Errorf("expected the initial focus command, got %v", cmds.Ops())
	}
	if len(p.TakeCommands()) != 0 {
		t.Error("expected commands to be cleared")
	}

	var b bytes.Buffer
	if err := p.Render(context.Background()).Render(context.Background(), &b); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`class="apply-step"`, "Step 1 of 3", `data-focus`, "--progress: 33.33333333333333%"} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("expected render to contain %q", want)
		}
	}
}

func TestPage_StepFlow(t *testing.T) {
	p := newTestPage(t)
	p.Assigns().TakeChanged(HTMLKeyPrefix)

	send(t, p, EventNext, map[string]any{"form": "apply"})
	if got := p.Last(); got.Outcome.Moved || got.Focus != "name" {
		t.Errorf("expected to stay and focus name, got %+v", got)
	}
	if diff := cmp.Diff([]string{"html:apply"}, p.Assigns().TakeChanged(HTMLKeyPrefix)); diff != "" {
		t.Errorf("changed html mismatch (-want +got):\n%s", diff)
	}

	send(t, p, EventInput, map[string]any{"form": "apply", "field": "name", "value": "  Ada <b>L</b> "})
	send(t, p, EventInput, map[string]any{"form": "apply", "field": "email", "value": "ada@example.com"})
	send(t, p, EventKeydown, map[string]any{"form": "apply", "key": "Enter", "tag": "input", "type": "email"})

	reply := p.Reply()
	if reply["step"] != 1 || reply["prevent"] != true {
		t.Errorf("unexpected reply %v", reply)
	}
	if got := p.Assigns().GetString("status:apply"); got != "Step 2 of 3" {
		t.Errorf("unexpected status %q", got)
	}

	c, _ := p.Controller("apply")
	if f, _ := c.Form().Field("name"); f.Value != "Ada L" {
		t.Errorf("expected sanitized and trimmed name, got %q", f.Value)
	}

	send(t, p, EventPrev, map[string]any{"form": "apply"})
	if c.State().Active != 0 {
		t.Errorf("expected step 0, got %d", c.State().Active)
	}
}

func TestPage_SubmitPrevented(t *testing.T) {
	p := newTestPage(t)
	send(t, p, EventSubmit, map[string]any{"form": "apply"})

	reply := p.Reply()
	if reply["prevent"] != true || reply["proceed"] != false || reply["step"] != 0 {
		t.Errorf("unexpected reply %v", reply)
	}
}

func TestPage_Blur(t *testing.T) {
	p := newTestPage(t)
	send(t, p, EventChange, map[string]any{"form": "apply", "field": "email", "value": "nope"})
	send(t, p, EventBlur, map[string]any{"form": "apply", "field": "email"})

	c, _ := p.Controller("apply")
	if st := c.Validator().State("email"); st.Valid || st.Message != "Please enter an email address." {
		t.Errorf("unexpected email state %+v", st)
	}
}

func TestPage_InputKeepsTypedValue(t *testing.T) {
	long := strings.Repeat("ñ", 2500)
	tests := []struct {
		field, value string
	}{
		{"name", "a<b>c"},
		{"name", "R&amp;D"},
		{"name", "Smith<Jones"},
		{"name", "x <y> z"},
		{"notes", long},
	}
	for _, tt := range tests {
		p := newTestPage(t)
		send(t, p, EventInput, map[string]any{"form": "apply", "field": tt.field, "value": tt.value})
		send(t, p, EventBlur, map[string]any{"form": "apply", "field": tt.field})

		c, _ := p.Controller("apply")
		f, _ := c.Form().Field(tt.field)
		if f.Value != tt.value {
			t.Errorf("%s stored %q, want %q", tt.field, f.Value, tt.value)
		}
	}

	p := newTestPage(t)
	send(t, p, EventInput, map[string]any{"form": "apply", "field": "name", "value": "a<b>c\x00"})
	var b bytes.Buffer
	if err := p.Render(context.Background()).Render(context.Background(), &b); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), `value="a&lt;b&gt;c"`) {
		t.Error("expected the typed value escaped in the rendered field")
	}
}

func TestPage_RoleSelect(t *testing.T) {
	p := newTestPage(t)
	id := p.ChipGroupIDs()[0]
	p.Assigns().TakeChanged(HTMLKeyPrefix)

	send(t, p, EventRoleSelect, map[string]any{"form": id, "role": "CNA"})
	if got := p.SelectedRole(id); got != "CNA" {
		t.Errorf("expected CNA, got %q", got)
	}
	c, _ := p.Controller("apply")
	if f, _ := c.Form().Field("role"); f.Value != "CNA" {
		t.Errorf("expected the form field to follow the chip, got %q", f.Value)
	}
	if diff := cmp.Diff([]string{"html:apply", "html:" + id}, p.Assigns().TakeChanged(HTMLKeyPrefix)); diff != "" {
		t.Errorf("changed html mismatch (-want +got):\n%s", diff)
	}

	var b bytes.Buffer
	_ = p.Render(context.Background()).Render(context.Background(), &b)
	if !strings.Contains(b.String(), rolechips.Microcopy("CNA")) {
		t.Error("expected the CNA microcopy in the page")
	}
}

func TestPage_Errors(t *testing.T) {
	p := newTestPage(t)
	id := p.ChipGroupIDs()[0]

	tests := []struct {
		name    string
		event   string
		payload map[string]any
		want    error
	}{
		{"unknown form", EventNext, map[string]any{"form": "nope"}, ErrFormNotFound},
		{"unknown event", "explode", map[string]any{"form": "apply"}, ErrUnknownEvent},
		{"unknown chips", EventRoleSelect, map[string]any{"form": "nope", "role": "RN"}, ErrChipsNotFound},
		{"unknown role", EventRoleSelect, map[string]any{"form": id, "role": "MD"}, rolechips.ErrUnknownRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.HandleEvent(context.Background(), tt.event, tt.payload); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPage_NotMounted(t *testing.T) {
	p := NewPage("apply", nil)
	if err := p.HandleEvent(context.Background(), EventNext, nil); !errors.Is(err, ErrNotMounted) {
		t.Errorf("expected ErrNotMounted, got %v", err)
	}
}

func TestPage_SessionAttrs(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "apply.html"))
	if err != nil {
		t.Fatal(err)
	}

	p := NewPage("apply", data)
	session := core.Session{core.SessionIDKey: "sess-1", core.CSRFTokenKey: "tok-1"}
	if err := p.Mount(context.Background(), core.Params{}, session); err != nil {
		t.Fatal(err)
	}

	var b bytes.Buffer
	if err := p.Render(context.Background()).Render(context.Background(), &b); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{SessionAttr + `="sess-1"`, CSRFAttr + `="tok-1"`} {
		if !strings.Contains(b.String(), want) {
			t.Errorf("expected render to contain %q", want)
		}
	}

	// Without a live session the page renders without client hooks.
	p = newTestPage(t)
	b.Reset()
	if err := p.Render(context.Background()).Render(context.Background(), &b); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(b.String(), SessionAttr) {
		t.Errorf("unexpected %s without a session", SessionAttr)
	}
}
