// Package audit records security-relevant request outcomes as JSON lines.
package audit

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/saludstaffing/applykit/pkg/limits"
)

// Event types.
const (
	EventCSRFViolation     = "csrf_violation"
	EventRateLimitExceeded = "rate_limit_exceeded"
	EventConnectionDenied  = "connection_denied"
	EventSessionRejected   = "session_rejected"
)

// Severity levels.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// SecurityEvent is one audit record.
type SecurityEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	Severity  string         `json:"severity"`
	SourceIP  string         `json:"source_ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Path      string         `json:"path,omitempty"`
	Method    string         `json:"method,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Logger records security events.
type Logger interface {
	Log(event SecurityEvent)
	Close() error
}

// JSONLogger writes one JSON object per event.
type JSONLogger struct {
	mu      sync.Mutex
	encoder *json.Encoder
	writer  io.Writer
	now     func() time.Time
}

// NewJSONLogger creates a logger writing to w.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{encoder: json.NewEncoder(w), writer: w, now: time.Now}
}

// Open returns a logger for path. "-" writes to stdout and "" disables
// auditing.
func Open(path string) (Logger, error) {
	switch path {
	case "":
		return NopLogger{}, nil
	case "-":
		return NewJSONLogger(os.Stdout), nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return NewJSONLogger(f), nil
}

// Log writes event, stamping it when it carries no time.
func (l *JSONLogger) Log(event SecurityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	// Encoding a SecurityEvent cannot fail; write errors are dropped.
	_ = l.encoder.Encode(event)
}

// Close closes the underlying writer unless it is stdout.
func (l *JSONLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.writer == os.Stdout {
		return nil
	}
	if c, ok := l.writer.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NopLogger discards events.
type NopLogger struct{}

func (NopLogger) Log(SecurityEvent) {}
func (NopLogger) Close() error      { return nil }

// FromRequest fills the request fields of a warning event.
func FromRequest(r *http.Request, eventType string) SecurityEvent {
	return SecurityEvent{
		EventType: eventType,
		Severity:  SeverityWarning,
		SourceIP:  limits.ClientIP(r),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Method:    r.Method,
	}
}

// CSRFViolation records a request whose token did not match its session.
func CSRFViolation(l Logger, r *http.Request, sessionID string) {
	e := FromRequest(r, EventCSRFViolation)
	e.SessionID = sessionID
	l.Log(e)
}

// RateLimitExceeded records a throttled request or socket event.
func RateLimitExceeded(l Logger, r *http.Request, sessionID string) {
	e := FromRequest(r, EventRateLimitExceeded)
	e.SessionID = sessionID
	l.Log(e)
}

// ConnectionDenied records a WebSocket refused by the per-client cap.
func ConnectionDenied(l Logger, r *http.Request, limit int) {
	e := FromRequest(r, EventConnectionDenied)
	e.Details = map[string]any{"limit": limit}
	l.Log(e)
}

// SessionRejected records a join or event for a session that failed
// verification for a reason other than the token.
func SessionRejected(l Logger, r *http.Request, sessionID, reason string) {
	e := FromRequest(r, EventSessionRejected)
	e.Severity = SeverityInfo
	e.SessionID = sessionID
	e.Details = map[string]any{"reason": reason}
	l.Log(e)
}
