// Package markup binds the apply form's HTML contract to the form model:
// it discovers forms and role chip groups in a page, and writes stepper and
// validation state back into the tree.
package markup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Host contract attribute names and values.
const (
	ComponentAttr     = "data-component"
	ApplyFormCard     = "ApplyFormCard"
	RoleChips         = "RoleChips"
	StepClass         = "apply-step"
	SubmitClass       = "apply-submit"
	StepperClass      = "is-stepper"
	PrevAttr          = "data-stepper-prev"
	NextAttr          = "data-stepper-next"
	ProgressAttr      = "data-stepper-progress"
	StatusAttr        = "data-stepper-status"
	FocusAttr         = "data-focus"
	ProgressProperty  = "--progress"
	DefaultSelected   = "is-selected"
	RoleAttr          = "data-role"
	RoleChipsAttr     = "data-role-chips"
	TargetInputAttr   = "data-target-input"
	TargetCopyAttr    = "data-target-microcopy"
	SelectedClassAttr = "data-selected-class"
	DefaultRoleAttr   = "data-default-role"
)

// Markup errors.
var (
	ErrFormNotFound    = errors.New("markup: form not found")
	ErrElementNotFound = errors.New("markup: element not found")
)

// Document is a parsed page with its discovered components.
type Document struct {
	root  *html.Node
	byID  map[string]*html.Node
	seq   int
	Forms []*FormNode
	Chips []*ChipsNode
}

// Parse reads an HTML document and discovers its components.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("markup: parse: %w", err)
	}
	d := &Document{root: root, byID: make(map[string]*html.Node)}
	d.index()
	d.discover()
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) index() {
	Walk(d.root, func(n *html.Node) bool {
		if isElement(n) {
			if id := AttrValue(n, "id"); id != "" {
				if _, dup := d.byID[id]; !dup {
					d.byID[id] = n
				}
			}
		}
		return true
	})
}

// EnsureID returns the element id, assigning "<prefix>-<n>" when absent.
func (d *Document) EnsureID(n *html.Node, prefix string) string {
	if id := AttrValue(n, "id"); id != "" {
		return id
	}
	for {
		d.seq++
		id := fmt.Sprintf("%s-%d", prefix, d.seq)
		if _, taken := d.byID[id]; !taken {
			SetAttr(n, "id", id)
			d.byID[id] = n
			return id
		}
	}
}

// Body returns the body element, or nil for fragments.
func (d *Document) Body() *html.Node {
	return Find(d.root, tagIs(atom.Body))
}

// ElementByID returns the first element with the id.
func (d *Document) ElementByID(id string) *html.Node {
	return d.byID[id]
}

// query resolves the simple selectors the chip group attributes carry:
// "#id", "[name=x]" or a bare id.
func (d *Document) query(sel string) *html.Node {
	sel = strings.TrimSpace(sel)
	switch {
	case sel == "":
		return nil
	case strings.HasPrefix(sel, "#"):
		return d.byID[sel[1:]]
	case strings.Contains(sel, "[name="):
		name := sel[strings.Index(sel, "[name=")+len("[name="):]
		name = strings.Trim(strings.TrimSuffix(name, "]"), `"'`)
		return Find(d.root, attrEquals("name", name))
	}
	return d.byID[sel]
}

func (d *Document) discover() {
	forms := FindAll(d.root, and(tagIs(atom.Form), attrEquals(ComponentAttr, ApplyFormCard)))
	for _, n := range forms {
		if fn := d.bindForm(n); fn != nil {
			d.Forms = append(d.Forms, fn)
		}
	}

	groups := FindAll(d.root, attrEquals(ComponentAttr, RoleChips))
	for _, n := range groups {
		if cn := d.bindChips(n); cn != nil {
			d.Chips = append(d.Chips, cn)
		}
	}
}

// Form returns a discovered form by id.
func (d *Document) Form(id string) (*FormNode, bool) {
	for _, f := range d.Forms {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// Render writes the whole document.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// RenderForm writes the outer HTML of one form.
func (d *Document) RenderForm(w io.Writer, id string) error {
	f, ok := d.Form(id)
	if !ok {
		return ErrFormNotFound
	}
	return html.Render(w, f.Node)
}

// RenderNode writes the outer HTML of any element by id.
func (d *Document) RenderNode(w io.Writer, id string) error {
	n := d.byID[id]
	if n == nil {
		return fmt.Errorf("%w: %q", ErrElementNotFound, id)
	}
	return html.Render(w, n)
}

// String renders the document to a string.
func (d *Document) String() string {
	var b bytes.Buffer
	_ = d.Render(&b)
	return b.String()
}
