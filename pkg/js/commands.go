// Package js provides client commands the server sends alongside patches.
// Each command has a structured form for the WebSocket client and a script
// form for transports that can only execute code.
package js

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command is one client-side action.
type Command interface {
	// Op returns the structured form.
	Op() Op

	// ToJS returns equivalent JavaScript.
	ToJS() string
}

// Op is the wire form of a command.
type Op struct {
	Kind   string `json:"op" msgpack:"op"`
	Target string `json:"target" msgpack:"target"`
	Value  string `json:"value,omitempty" msgpack:"value,omitempty"`
}

// Commands holds a sequence of commands.
type Commands []Command

// Ops returns the structured form of every command.
func (cs Commands) Ops() []Op {
	ops := make([]Op, 0, len(cs))
	for _, c := range cs {
		ops = append(ops, c.Op())
	}
	return ops
}

// ToJS returns the JavaScript for all commands.
func (cs Commands) ToJS() string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.ToJS())
	}
	return strings.Join(parts, ";")
}

// String implements fmt.Stringer.
func (cs Commands) String() string {
	return cs.ToJS()
}

// quote returns s as a JavaScript string literal.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func byID(id string) string {
	return fmt.Sprintf("document.getElementById(%s)", quote(id))
}

type focusCmd struct {
	id string
}

// Focus moves focus to the element with the id.
func Focus(id string) Command {
	return focusCmd{id: id}
}

func (c focusCmd) Op() Op { return Op{Kind: "focus", Target: c.id} }

func (c focusCmd) ToJS() string {
	return byID(c.id) + "?.focus()"
}

type announceCmd struct {
	region  string
	message string
}

// Announce replaces the text of a live region so assistive technology
// reads it again.
func Announce(regionID, message string) Command {
	return announceCmd{region: regionID, message: message}
}

func (c announceCmd) Op() Op { return Op{Kind: "announce", Target: c.region, Value: c.message} }

func (c announceCmd) ToJS() string {
	return fmt.Sprintf("((el)=>{if(el){el.textContent='';el.textContent=%s}})(%s)", quote(c.message), byID(c.region))
}

type submitCmd struct {
	form string
}

// Submit performs the native submission of a form without firing its
// submit event again.
func Submit(formID string) Command {
	return submitCmd{form: formID}
}

func (c submitCmd) Op() Op { return Op{Kind: "submit", Target: c.form} }

func (c submitCmd) ToJS() string {
	return fmt.Sprintf("HTMLFormElement.prototype.submit.call(%s)", byID(c.form))
}
