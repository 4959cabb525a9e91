// Package a11y provides live region and focus helpers for the apply forms.
package a11y

import (
	"fmt"
	"html"
	"sync"

	xhtml "golang.org/x/net/html"

	"github.com/saludstaffing/applykit/pkg/forms"
	"github.com/saludstaffing/applykit/pkg/js"
	"github.com/saludstaffing/applykit/pkg/markup"
)

// LiveRegion represents an ARIA live region for announcements.
type LiveRegion struct {
	ID string

	// Politeness is "polite" (default) or "assertive".
	Politeness string

	// Atomic determines if the whole region is announced.
	Atomic bool
}

// NewLiveRegion creates a new live region.
func NewLiveRegion(id string, opts ...LiveRegionOption) *LiveRegion {
	lr := &LiveRegion{
		ID:         id,
		Politeness: "polite",
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// LiveRegionOption configures a live region.
type LiveRegionOption func(*LiveRegion)

// Assertive makes the region assertive.
func Assertive() LiveRegionOption {
	return func(lr *LiveRegion) {
		lr.Politeness = "assertive"
	}
}

// Atomic makes the region atomic.
func Atomic() LiveRegionOption {
	return func(lr *LiveRegion) {
		lr.Atomic = true
	}
}

// Decorate turns an existing element into the live region, keeping any
// attributes the page already set.
func (lr *LiveRegion) Decorate(n *xhtml.Node) {
	if !markup.HasAttr(n, "id") {
		markup.SetAttr(n, "id", lr.ID)
	}
	if !markup.HasAttr(n, "role") {
		markup.SetAttr(n, "role", "status")
	}
	if !markup.HasAttr(n, "aria-live") {
		markup.SetAttr(n, "aria-live", lr.Politeness)
	}
	if lr.Atomic && !markup.HasAttr(n, "aria-atomic") {
		markup.SetAttr(n, "aria-atomic", "true")
	}
}

// Announce returns the command that makes the region read message.
func (lr *LiveRegion) Announce(message string) js.Command {
	return js.Announce(lr.ID, message)
}

// RenderHTML generates the HTML for a standalone live region.
func (lr *LiveRegion) RenderHTML() string {
	atomicAttr := ""
	if lr.Atomic {
		atomicAttr = ` aria-atomic="true"`
	}
	return fmt.Sprintf(
		`<div id="%s" role="status" aria-live="%s"%s class="sr-only"></div>`,
		html.EscapeString(lr.ID), lr.Politeness, atomicAttr,
	)
}

// FocusManager records where focus should go after an interaction.
// The last request wins.
type FocusManager struct {
	pending string
	mu      sync.Mutex
}

// NewFocusManager creates a new focus manager.
func NewFocusManager() *FocusManager {
	return &FocusManager{}
}

// Request asks for focus on the element with the id.
func (fm *FocusManager) Request(id string) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.pending = id
}

// Focus implements forms.Focuser.
func (fm *FocusManager) Focus(f *forms.Field) {
	fm.Request(f.ID)
}

// Pending returns the requested id without clearing it.
func (fm *FocusManager) Pending() string {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.pending
}

// Take returns the requested id and clears it.
func (fm *FocusManager) Take() string {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	id := fm.pending
	fm.pending = ""
	return id
}

// Command returns the focus command for the pending request, or nil.
func (fm *FocusManager) Command() js.Command {
	if id := fm.Pending(); id != "" {
		return js.Focus(id)
	}
	return nil
}
