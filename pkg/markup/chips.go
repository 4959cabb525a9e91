package markup

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ChipsNode is a role chip group bound to its elements.
type ChipsNode struct {
	ID            string
	Node          *html.Node
	Buttons       []*html.Node
	Roles         []string
	Input         *html.Node
	Microcopy     *html.Node
	SelectedClass string
	DefaultRole   string

	// DefaultMicrocopy is the microcopy text found in the page.
	DefaultMicrocopy string
}

func (d *Document) bindChips(n *html.Node) *ChipsNode {
	container := Find(n, hasAttr(RoleChipsAttr))
	if container == nil {
		return nil
	}
	buttons := FindAll(container, and(tagIs(atom.Button), hasAttr(RoleAttr)))
	if len(buttons) == 0 {
		return nil
	}

	c := &ChipsNode{
		Node:          n,
		Buttons:       buttons,
		Input:         d.query(AttrValue(n, TargetInputAttr)),
		Microcopy:     d.query(AttrValue(n, TargetCopyAttr)),
		SelectedClass: AttrValue(n, SelectedClassAttr),
		DefaultRole:   AttrValue(n, DefaultRoleAttr),
	}
	if c.SelectedClass == "" {
		c.SelectedClass = DefaultSelected
	}
	c.ID = d.EnsureID(n, "role-chips")
	for _, b := range buttons {
		c.Roles = append(c.Roles, AttrValue(b, RoleAttr))
	}
	if c.Microcopy != nil {
		c.DefaultMicrocopy = Text(c.Microcopy)
	}
	return c
}

// InputValue returns the current value of the target input.
func (c *ChipsNode) InputValue() string {
	if c.Input == nil {
		return ""
	}
	return AttrValue(c.Input, "value")
}

// Apply writes the selected role, its input value and the microcopy.
func (c *ChipsNode) Apply(selected, microcopy string) {
	for i, b := range c.Buttons {
		on := c.Roles[i] == selected
		ToggleClass(b, c.SelectedClass, on)
		if on {
			SetAttr(b, "aria-pressed", "true")
		} else {
			SetAttr(b, "aria-pressed", "false")
		}
	}
	if c.Input != nil {
		SetAttr(c.Input, "value", selected)
	}
	if c.Microcopy != nil {
		SetText(c.Microcopy, microcopy)
	}
}
