// Package apply hosts the apply form components of a page: one stepper and
// validator pair per form and one selection state per role chip group.
package apply

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/saludstaffing/applykit/pkg/core"
	"github.com/saludstaffing/applykit/pkg/js"
	"github.com/saludstaffing/applykit/pkg/logging"
	"github.com/saludstaffing/applykit/pkg/markup"
	"github.com/saludstaffing/applykit/pkg/rolechips"
	"github.com/saludstaffing/applykit/pkg/security"
	"github.com/saludstaffing/applykit/pkg/stepper"
)

// Page errors.
var (
	ErrFormNotFound  = errors.New("apply: form not found")
	ErrChipsNotFound = errors.New("apply: role chips not found")
	ErrUnknownEvent  = errors.New("apply: unknown event")
	ErrNotMounted    = errors.New("apply: page not mounted")
)

// Event names sent by the client.
const (
	EventNext       = "stepper:next"
	EventPrev       = "stepper:prev"
	EventKeydown    = "keydown"
	EventSubmit     = "submit"
	EventInput      = "input"
	EventChange     = "change"
	EventBlur       = "blur"
	EventRoleSelect = "role:select"
)

// HTMLKeyPrefix prefixes assigns holding the rendered HTML of a patchable
// element.
const HTMLKeyPrefix = core.HTMLAssignPrefix

// Body attributes the client reads to join its live session.
const (
	SessionAttr = "data-live-session"
	CSRFAttr    = "data-csrf-token"
)

type chipGroup struct {
	node  *markup.ChipsNode
	group *rolechips.Group

	// owner is the form holding the target input, if it is a form field.
	owner *Controller
}

// Page is the live component of one marketing page.
type Page struct {
	core.BaseComponent

	name      string
	source    []byte
	sanitizer *security.Sanitizer
	logger    logging.Logger

	doc      *markup.Document
	forms    map[string]*Controller
	order    []string
	chips    map[string]*chipGroup
	commands js.Commands
	last     Result

	mu sync.Mutex
}

// PageOption configures a Page.
type PageOption func(*Page)

// WithLogger sets the page logger.
func WithLogger(l logging.Logger) PageOption {
	return func(p *Page) { p.logger = l }
}

// WithSanitizer sets the payload sanitizer. Nil disables sanitizing.
func WithSanitizer(s *security.Sanitizer) PageOption {
	return func(p *Page) { p.sanitizer = s }
}

// NewPage creates a page component over an HTML document.
func NewPage(name string, source []byte, opts ...PageOption) *Page {
	p := &Page{
		name:      name,
		source:    source,
		sanitizer: security.NewSanitizer(),
		logger:    logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements core.Component.
func (p *Page) Name() string {
	return p.name
}

// Mount parses the page and initializes every apply form and chip group.
// Forms that do not satisfy the markup contract are left untouched.
func (p *Page) Mount(ctx context.Context, params core.Params, session core.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := markup.Parse(bytes.NewReader(p.source))
	if err != nil {
		return fmt.Errorf("mount %s: %w", p.name, err)
	}
	p.doc = doc
	if body := doc.Body(); body != nil {
		if id := session.GetString(core.SessionIDKey); id != "" {
			markup.SetAttr(body, SessionAttr, id)
		}
		if token := session.GetString(core.CSRFTokenKey); token != "" {
			markup.SetAttr(body, CSRFAttr, token)
		}
	}
	p.forms = make(map[string]*Controller, len(doc.Forms))
	p.order = p.order[:0]
	p.chips = make(map[string]*chipGroup, len(doc.Chips))
	p.commands = nil

	for _, fn := range doc.Forms {
		c, res, err := NewController(doc, fn)
		if err != nil {
			p.logger.Debug("form skipped", logging.String("form", fn.ID), logging.Err(err))
			continue
		}
		p.forms[c.ID()] = c
		p.order = append(p.order, c.ID())
		p.commands = append(p.commands, res.Commands...)
	}

	for _, cn := range doc.Chips {
		cg := &chipGroup{
			node: cn,
			group: rolechips.New(rolechips.Config{
				Roles:            cn.Roles,
				InputValue:       cn.InputValue(),
				DefaultRole:      cn.DefaultRole,
				DefaultMicrocopy: cn.DefaultMicrocopy,
			}),
		}
		if cn.Input != nil {
			id := markup.AttrValue(cn.Input, "id")
			for _, c := range p.forms {
				if _, ok := c.Form().Field(id); ok {
					cg.owner = c
				}
			}
		}
		p.chips[cn.ID] = cg
		if cg.group.Selected() != "" {
			p.applyChips(cg)
		}
	}

	p.logger.Debug("page mounted",
		logging.String("page", p.name),
		logging.Int("forms", len(p.forms)),
		logging.Int("chips", len(p.chips)),
	)
	p.snapshot()
	return nil
}

func (p *Page) applyChips(cg *chipGroup) {
	cg.node.Apply(cg.group.Selected(), cg.group.Microcopy())
	if cg.owner != nil && cg.node.Input != nil {
		cg.owner.SetValue(markup.AttrValue(cg.node.Input, "id"), cg.group.Selected())
	}
}

// Render implements core.Component.
func (p *Page) Render(ctx context.Context) core.Renderer {
	return core.RendererFunc(func(ctx context.Context, w io.Writer) error {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.doc == nil {
			return ErrNotMounted
		}
		return p.doc.Render(w)
	})
}

// HandleEvent implements core.Component. Every payload names its target
// form (or chip group) under "form".
func (p *Page) HandleEvent(ctx context.Context, event string, payload map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.doc == nil {
		return ErrNotMounted
	}
	if p.sanitizer != nil {
		payload = p.sanitizer.Payload(payload)
	}

	log := logging.L(ctx).With(logging.String("page", p.name), logging.String("event", event))

	res, err := p.dispatch(event, payload)
	if err != nil {
		log.Warn("event rejected", logging.Err(err))
		return err
	}

	p.last = res
	p.commands = append(p.commands, res.Commands...)
	p.snapshot()

	log.Debug("event handled",
		logging.String("form", res.Form),
		logging.Int("step", res.Outcome.View.Active),
		logging.Bool("prevent", res.Outcome.PreventDefault),
		logging.Bool("proceed", res.Outcome.Proceed),
	)
	return nil
}

func (p *Page) dispatch(event string, payload map[string]any) (Result, error) {
	target := stringValue(payload, "form")

	if event == EventRoleSelect {
		return p.selectRole(target, stringValue(payload, "role"))
	}

	c, ok := p.forms[target]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrFormNotFound, target)
	}

	switch event {
	case EventNext:
		return c.Next(), nil
	case EventPrev:
		return c.Prev(), nil
	case EventSubmit:
		return c.Submit(), nil
	case EventKeydown:
		return c.Keydown(keyFromPayload(payload)), nil
	case EventInput, EventChange:
		return c.Input(stringValue(payload, "field"), stringValue(payload, "value"), boolValue(payload, "checked"))
	case EventBlur:
		return c.Blur(stringValue(payload, "field"))
	}
	return Result{}, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
}

func (p *Page) selectRole(id, role string) (Result, error) {
	cg, ok := p.chips[id]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrChipsNotFound, id)
	}
	if err := cg.group.Select(role); err != nil {
		return Result{}, err
	}
	p.applyChips(cg)
	return Result{Form: id}, nil
}

// snapshot publishes the HTML of every component so changed ones can be
// patched on the client.
func (p *Page) snapshot() {
	a := p.Assigns()
	var b bytes.Buffer
	for _, id := range p.order {
		c := p.forms[id]
		b.Reset()
		if err := p.doc.RenderForm(&b, id); err == nil {
			a.Set(HTMLKeyPrefix+id, b.String())
		}
		st := c.State()
		a.Set("active:"+id, st.Active)
		a.Set("status:"+id, stepper.StatusText(st.Active, st.Count))
	}
	for id, cg := range p.chips {
		b.Reset()
		if err := p.doc.RenderNode(&b, id); err == nil {
			a.Set(HTMLKeyPrefix+id, b.String())
		}
		a.Set("role:"+id, cg.group.Selected())
	}
}

// TakeCommands returns the pending client commands and clears them.
func (p *Page) TakeCommands() js.Commands {
	p.mu.Lock()
	defer p.mu.Unlock()
	cmds := p.commands
	p.commands = nil
	return cmds
}

// Reply describes the last event's outcome for the client.
func (p *Page) Reply() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]any{
		"form":    p.last.Form,
		"step":    p.last.Outcome.View.Active,
		"prevent": p.last.Outcome.PreventDefault,
		"proceed": p.last.Outcome.Proceed,
	}
}

// Last returns the result of the last handled event.
func (p *Page) Last() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Controller returns the controller of a form.
func (p *Page) Controller(id string) (*Controller, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.forms[id]
	return c, ok
}

// FormIDs returns the ids of every initialized form in document order.
func (p *Page) FormIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

// SelectedRole returns the selected role of a chip group.
func (p *Page) SelectedRole(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cg, ok := p.chips[id]; ok {
		return cg.group.Selected()
	}
	return ""
}

// ChipGroupIDs returns the ids of every chip group.
func (p *Page) ChipGroupIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.chips))
	for _, cn := range p.doc.Chips {
		ids = append(ids, cn.ID)
	}
	return ids
}

// Terminate implements core.Component.
func (p *Page) Terminate(ctx context.Context, reason core.TerminateReason) error {
	logging.L(ctx).Debug("page terminated", logging.String("page", p.name), logging.String("reason", reason.String()))
	return nil
}

func keyFromPayload(payload map[string]any) stepper.Key {
	return stepper.Key{
		Key:    stringValue(payload, "key"),
		Shift:  boolValue(payload, "shift"),
		Target: kindOf(stringValue(payload, "tag"), stringValue(payload, "type")),
	}
}
