// Package rolechips implements a single-select, locked chip group that
// writes the chosen role into a form input.
package rolechips

import (
	"errors"
	"fmt"
)

// ErrUnknownRole is returned when selecting a role the group does not offer.
var ErrUnknownRole = errors.New("rolechips: unknown role")

// Microcopy returns the helper text shown for a selected role.
func Microcopy(role string) string {
	return fmt.Sprintf("Great — we’ll prioritize matches for %s that fit your license and location.", role)
}

// Group holds the selection state of one chip group.
type Group struct {
	roles       []string
	selected    string
	defaultCopy string
}

// Config describes a chip group as found in the page.
type Config struct {
	Roles []string

	// InputValue is the target input's current value.
	InputValue  string
	DefaultRole string

	// DefaultMicrocopy is shown while no role is selected.
	DefaultMicrocopy string
}

// New creates a group and picks its initial role: the input's value, else
// the configured default, else the first chip. A role that no chip offers
// falls back to the first chip.
func New(cfg Config) *Group {
	g := &Group{defaultCopy: cfg.DefaultMicrocopy}
	for _, r := range cfg.Roles {
		if r != "" {
			g.roles = append(g.roles, r)
		}
	}

	first := ""
	if len(cfg.Roles) > 0 {
		first = cfg.Roles[0]
	}

	initial := cfg.InputValue
	if initial == "" {
		initial = cfg.DefaultRole
		if initial == "" {
			initial = first
		}
	}
	if initial != "" && !g.Has(initial) {
		initial = first
	}
	g.selected = initial
	return g
}

// Has reports whether a chip offers the role.
func (g *Group) Has(role string) bool {
	for _, r := range g.roles {
		if r == role {
			return true
		}
	}
	return false
}

// Roles returns the offered roles in chip order.
func (g *Group) Roles() []string {
	return append([]string(nil), g.roles...)
}

// Selected returns the selected role, or "".
func (g *Group) Selected() string {
	return g.selected
}

// Select picks a role. Selecting the current role keeps it selected.
func (g *Group) Select(role string) error {
	if role == "" || !g.Has(role) {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	g.selected = role
	return nil
}

// Microcopy returns the text for the current selection.
func (g *Group) Microcopy() string {
	if g.selected == "" {
		return g.defaultCopy
	}
	return Microcopy(g.selected)
}
