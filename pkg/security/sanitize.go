// Package security provides input sanitization and CSRF tokens for live sessions.
package security

import (
	"html"
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// IdentifierKeys are the payload keys naming elements, roles or keys
// rather than carrying user text.
var IdentifierKeys = []string{"form", "field", "role", "tag", "type", "key"}

// Sanitizer cleans values received in event payloads before they reach the
// form model. Field values keep everything the user typed except control
// characters; markup is escaped on output, not stripped on input.
type Sanitizer struct {
	identifiers map[string]bool
}

func NewSanitizer() *Sanitizer {
	s := &Sanitizer{identifiers: make(map[string]bool, len(IdentifierKeys))}
	for _, k := range IdentifierKeys {
		s.identifiers[k] = true
	}
	return s
}

// Text drops control characters other than tab, newline and carriage return.
func (s *Sanitizer) Text(v string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' || !unicode.IsControl(r) {
			return r
		}
		return -1
	}, v)
}

// Identifier keeps only characters valid in element ids, role names and
// key names.
func (s *Sanitizer) Identifier(v string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case strings.ContainsRune("-_:./+ ", r):
			return r
		}
		return -1
	}, v)
}

// Payload sanitizes every string value of an event payload in place:
// identifier keys through Identifier, everything else through Text.
func (s *Sanitizer) Payload(payload map[string]any) map[string]any {
	for k, v := range payload {
		str, ok := v.(string)
		if !ok {
			continue
		}
		if s.identifiers[k] {
			payload[k] = s.Identifier(str)
		} else {
			payload[k] = s.Text(str)
		}
	}
	return payload
}

var (
	plainOnce   sync.Once
	plainPolicy *bluemonday.Policy
)

// PlainText strips every tag from s and decodes entities, for values that
// end up in plain text contexts such as meta descriptions.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<>&") {
		return s
	}
	plainOnce.Do(func() { plainPolicy = bluemonday.StrictPolicy() })
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(s)))
}
