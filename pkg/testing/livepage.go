// Package testing drives live page components in tests, without a browser
// or a network connection. Events go straight to the component and the
// harness records what a connected client would receive.
package testing

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/saludstaffing/applykit/pkg/apply"
	"github.com/saludstaffing/applykit/pkg/core"
	"github.com/saludstaffing/applykit/pkg/js"
)

// Result is what the last event produced for the client.
type Result struct {
	// Patched lists the element ids whose HTML changed, sorted.
	Patched []string

	Ops   []js.Op
	Reply map[string]any
}

// PageTest is a mounted component under test.
type PageTest struct {
	t         testing.TB
	component core.Component
	socket    *MockSocket
	params    core.Params
	session   core.Session
	rendered  string
	result    Result
	events    []string
}

// MountOption configures the test mount.
type MountOption func(*PageTest)

// WithParams sets mount parameters.
func WithParams(params core.Params) MountOption {
	return func(pt *PageTest) { pt.params = params }
}

// WithSession sets session data.
func WithSession(session core.Session) MountOption {
	return func(pt *PageTest) { pt.session = session }
}

// Mount mounts comp and renders it. The result holds what mount queued,
// such as the initial focus.
func Mount(t testing.TB, comp core.Component, opts ...MountOption) *PageTest {
	t.Helper()

	pt := &PageTest{
		t:         t,
		component: comp,
		socket:    NewMockSocket(),
		params:    core.Params{},
		session:   core.Session{},
	}
	for _, opt := range opts {
		opt(pt)
	}

	if setter, ok := comp.(core.SocketSetter); ok {
		setter.SetSocket(core.NewSocket(pt.socket.ID, pt.socket))
	}

	if err := comp.Mount(context.Background(), pt.params, pt.session); err != nil {
		t.Fatalf("Mount failed: %v", err)
	}
	pt.collect()
	pt.render()
	return pt
}

// Event sends event and fails the test if the component rejects it.
func (pt *PageTest) Event(event string, payload map[string]any) *PageTest {
	pt.t.Helper()
	if err := pt.Try(event, payload); err != nil {
		pt.t.Errorf("HandleEvent(%s) failed: %v", event, err)
	}
	return pt
}

// Try sends event and returns the component's error.
func (pt *PageTest) Try(event string, payload map[string]any) error {
	pt.t.Helper()
	pt.events = append(pt.events, event)

	ctx := context.Background()
	if err := pt.component.HandleEvent(ctx, event, payload); err != nil {
		return err
	}
	pt.collect()
	pt.render()
	return nil
}

// Next clicks the next button of form.
func (pt *PageTest) Next(form string) *PageTest {
	pt.t.Helper()
	return pt.Event(apply.EventNext, map[string]any{"form": form})
}

// Prev clicks the prev button of form.
func (pt *PageTest) Prev(form string) *PageTest {
	pt.t.Helper()
	return pt.Event(apply.EventPrev, map[string]any{"form": form})
}

// Submit submits form.
func (pt *PageTest) Submit(form string) *PageTest {
	pt.t.Helper()
	return pt.Event(apply.EventSubmit, map[string]any{"form": form})
}

// Input types value into a field.
func (pt *PageTest) Input(form, field, value string) *PageTest {
	pt.t.Helper()
	return pt.Event(apply.EventInput, map[string]any{"form": form, "field": field, "value": value})
}

// Check toggles a checkbox or radio.
func (pt *PageTest) Check(form, field, value string, checked bool) *PageTest {
	pt.t.Helper()
	return pt.Event(apply.EventChange, map[string]any{"form": form, "field": field, "value": value, "checked": checked})
}

// Blur moves focus out of a field.
func (pt *PageTest) Blur(form, field string) *PageTest {
	pt.t.Helper()
	return pt.Event(apply.EventBlur, map[string]any{"form": form, "field": field})
}

// Keydown presses key while an element of tag and type has focus.
func (pt *PageTest) Keydown(form, key string, shift bool, tag, typ string) *PageTest {
	pt.t.Helper()
	return pt.Event(apply.EventKeydown, map[string]any{"form": form, "key": key, "shift": shift, "tag": tag, "type": typ})
}

// SelectRole clicks a role chip.
func (pt *PageTest) SelectRole(chips, role string) *PageTest {
	pt.t.Helper()
	return pt.Event(apply.EventRoleSelect, map[string]any{"form": chips, "role": role})
}

// collect drains what the component queued for the client.
func (pt *PageTest) collect() {
	var res Result
	if ap, ok := pt.component.(interface{ Assigns() *core.Assigns }); ok {
		for _, key := range ap.Assigns().TakeChanged(core.HTMLAssignPrefix) {
			res.Patched = append(res.Patched, strings.TrimPrefix(key, core.HTMLAssignPrefix))
		}
		sort.Strings(res.Patched)
	}
	if cs, ok := pt.component.(interface{ TakeCommands() js.Commands }); ok {
		res.Ops = cs.TakeCommands().Ops()
	}
	if rp, ok := pt.component.(interface{ Reply() map[string]any }); ok {
		res.Reply = rp.Reply()
	}
	pt.result = res
}

func (pt *PageTest) render() {
	ctx := context.Background()
	renderer := pt.component.Render(ctx)
	if renderer == nil {
		pt.t.Fatal("Render returned nil")
	}

	var buf bytes.Buffer
	if err := renderer.Render(ctx, &buf); err != nil {
		pt.t.Fatalf("Render failed: %v", err)
	}
	pt.rendered = buf.String()
}

// Rendered returns the current HTML.
func (pt *PageTest) Rendered() string {
	return pt.rendered
}

// Result returns what the last event produced.
func (pt *PageTest) Result() Result {
	return pt.result
}

// Socket returns the mock socket.
func (pt *PageTest) Socket() *MockSocket {
	return pt.socket
}

// Component returns the component under test.
func (pt *PageTest) Component() core.Component {
	return pt.component
}

// Events returns the names of every event sent.
func (pt *PageTest) Events() []string {
	return pt.events
}

// HTML returns DOM assertions over the current render.
func (pt *PageTest) HTML() *HTMLAssert {
	pt.t.Helper()
	return NewHTMLAssert(pt.t, pt.rendered)
}

// AssertText verifies the rendered output contains text.
func (pt *PageTest) AssertText(text string) *PageTest {
	pt.t.Helper()
	if !strings.Contains(pt.rendered, text) {
		pt.t.Errorf("Text not found: %q\nRendered HTML:\n%s", text, pt.rendered)
	}
	return pt
}

// AssertNoText verifies the rendered output does not contain text.
func (pt *PageTest) AssertNoText(text string) *PageTest {
	pt.t.Helper()
	if strings.Contains(pt.rendered, text) {
		pt.t.Errorf("Text should not exist: %q", text)
	}
	return pt
}

// AssertAssign verifies an assign value.
func (pt *PageTest) AssertAssign(key string, expected any) *PageTest {
	pt.t.Helper()
	getter, ok := pt.component.(interface{ Assigns() *core.Assigns })
	if !ok {
		pt.t.Errorf("component has no assigns")
		return pt
	}
	if diff := cmp.Diff(expected, getter.Assigns().Get(key)); diff != "" {
		pt.t.Errorf("Assign %s mismatch (-want +got):\n%s", key, diff)
	}
	return pt
}

// AssertPatched verifies exactly ids were patched by the last event.
func (pt *PageTest) AssertPatched(ids ...string) *PageTest {
	pt.t.Helper()
	want := append([]string(nil), ids...)
	sort.Strings(want)
	if diff := cmp.Diff(want, pt.result.Patched, cmpopts.EquateEmpty()); diff != "" {
		pt.t.Errorf("patched elements mismatch (-want +got):\n%s", diff)
	}
	return pt
}

// AssertFocus verifies the last event moved focus to id.
func (pt *PageTest) AssertFocus(id string) *PageTest {
	pt.t.Helper()
	focus := ""
	for _, op := range pt.result.Ops {
		if op.Kind == "focus" {
			focus = op.Target
		}
	}
	if focus != id {
		pt.t.Errorf("focus = %q, want %q", focus, id)
	}
	return pt
}

// AssertOps verifies the kinds of client commands of the last event.
func (pt *PageTest) AssertOps(kinds ...string) *PageTest {
	pt.t.Helper()
	got := make([]string, 0, len(pt.result.Ops))
	for _, op := range pt.result.Ops {
		got = append(got, op.Kind)
	}
	if diff := cmp.Diff(kinds, got, cmpopts.EquateEmpty()); diff != "" {
		pt.t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
	return pt
}

// AssertReply verifies one value of the last reply.
func (pt *PageTest) AssertReply(key string, expected any) *PageTest {
	pt.t.Helper()
	if diff := cmp.Diff(expected, pt.result.Reply[key]); diff != "" {
		pt.t.Errorf("reply %s mismatch (-want +got):\n%s", key, diff)
	}
	return pt
}
