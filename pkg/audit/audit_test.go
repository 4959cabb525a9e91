package audit

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func decode(t *testing.T, buf *bytes.Buffer) []SecurityEvent {
	t.Helper()
	var events []SecurityEvent
	dec := json.NewDecoder(buf)
	for dec.More() {
		var e SecurityEvent
		if err := dec.Decode(&e); err != nil {
			t.Fatal(err)
		}
		events = append(events, e)
	}
	return events
}

func TestJSONLogger_Helpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	req := httptest.NewRequest("POST", "/live/ds/stepper:next", nil)
	req.RemoteAddr = "203.0.113.9:5555"
	req.Header.Set("User-Agent", "test-agent")

	CSRFViolation(l, req, "s1")
	RateLimitExceeded(l, req, "")
	ConnectionDenied(l, req, 3)
	SessionRejected(l, req, "gone", "session not found")

	want := []SecurityEvent{
		{EventType: EventCSRFViolation, Severity: SeverityWarning, SessionID: "s1"},
		{EventType: EventRateLimitExceeded, Severity: SeverityWarning},
		{EventType: EventConnectionDenied, Severity: SeverityWarning, Details: map[string]any{"limit": float64(3)}},
		{EventType: EventSessionRejected, Severity: SeverityInfo, SessionID: "gone", Details: map[string]any{"reason": "session not found"}},
	}
	for i := range want {
		want[i].Timestamp = fixed
		want[i].SourceIP = "203.0.113.9"
		want[i].UserAgent = "test-agent"
		want[i].Path = "/live/ds/stepper:next"
		want[i].Method = "POST"
	}

	got := decode(t, &buf)
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen(t *testing.T) {
	l, err := Open("")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := l.(NopLogger); !ok {
		t.Errorf("Open(\"\") = %T, want NopLogger", l)
	}

	path := filepath.Join(t.TempDir(), "audit.log")
	l, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	l.Log(SecurityEvent{EventType: EventCSRFViolation, Severity: SeverityWarning})
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"event_type":"csrf_violation"`) {
		t.Errorf("unexpected audit file %q", data)
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing", "audit.log")); err == nil {
		t.Error("Open() into a missing directory should fail")
	}
}
