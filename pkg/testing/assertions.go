package testing

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/saludstaffing/applykit/pkg/markup"
)

// HTMLAssert checks elements of a parsed page by id.
type HTMLAssert struct {
	t   testing.TB
	doc *markup.Document
}

// NewHTMLAssert parses page for assertions.
func NewHTMLAssert(t testing.TB, page string) *HTMLAssert {
	t.Helper()
	doc, err := markup.ParseString(page)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return &HTMLAssert{t: t, doc: doc}
}

func (ha *HTMLAssert) element(id string) *html.Node {
	ha.t.Helper()
	n := ha.doc.ElementByID(id)
	if n == nil {
		ha.t.Errorf("element #%s not found", id)
	}
	return n
}

// HasID asserts an element with id exists.
func (ha *HTMLAssert) HasID(id string) *HTMLAssert {
	ha.t.Helper()
	ha.element(id)
	return ha
}

// Attr asserts the value of an attribute.
func (ha *HTMLAssert) Attr(id, name, want string) *HTMLAssert {
	ha.t.Helper()
	if n := ha.element(id); n != nil {
		got, ok := markup.Attr(n, name)
		if !ok {
			ha.t.Errorf("#%s has no %s attribute", id, name)
		} else if got != want {
			ha.t.Errorf("#%s %s = %q, want %q", id, name, got, want)
		}
	}
	return ha
}

// NoAttr asserts an attribute is absent.
func (ha *HTMLAssert) NoAttr(id, name string) *HTMLAssert {
	ha.t.Helper()
	if n := ha.element(id); n != nil && markup.HasAttr(n, name) {
		ha.t.Errorf("#%s should not have %s", id, name)
	}
	return ha
}

// Text asserts the trimmed text content of an element.
func (ha *HTMLAssert) Text(id, want string) *HTMLAssert {
	ha.t.Helper()
	if n := ha.element(id); n != nil {
		if got := strings.TrimSpace(markup.Text(n)); got != want {
			ha.t.Errorf("#%s text = %q, want %q", id, got, want)
		}
	}
	return ha
}

// Hidden asserts an element carries the hidden attribute.
func (ha *HTMLAssert) Hidden(id string) *HTMLAssert {
	ha.t.Helper()
	if n := ha.element(id); n != nil && !markup.HasAttr(n, "hidden") {
		ha.t.Errorf("#%s should be hidden", id)
	}
	return ha
}

// Visible asserts an element does not carry the hidden attribute.
func (ha *HTMLAssert) Visible(id string) *HTMLAssert {
	ha.t.Helper()
	if n := ha.element(id); n != nil && markup.HasAttr(n, "hidden") {
		ha.t.Errorf("#%s should be visible", id)
	}
	return ha
}

// Invalid asserts a field is marked invalid or valid.
func (ha *HTMLAssert) Invalid(id string, invalid bool) *HTMLAssert {
	ha.t.Helper()
	if n := ha.element(id); n != nil {
		got := markup.AttrValue(n, "aria-invalid") == "true"
		if got != invalid {
			ha.t.Errorf("#%s aria-invalid = %v, want %v", id, got, invalid)
		}
	}
	return ha
}
