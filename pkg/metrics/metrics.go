// Package metrics counts live sessions and form events and serves them in
// the Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds all application metrics.
type Metrics struct {
	namespace string

	// Sessions
	SessionsActive  *GaugeFunc
	SessionsTotal   *Counter
	SessionsEvicted *Counter

	// Connections
	ConnectionsActive *Gauge
	ConnectionsTotal  *Counter
	ConnectionsDenied *Counter

	// Events
	Events       *CounterVec
	EventErrors  *Counter
	EventLatency *Histogram
	RateLimited  *Counter
	PanicsTotal  *Counter

	// Forms
	Submissions *CounterVec
	PatchBytes  *Histogram
}

// New creates a metrics set whose names start with namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		namespace: namespace,

		SessionsActive:  NewGaugeFunc("sessions_active", "Live sessions held in memory", nil),
		SessionsTotal:   NewCounter("sessions_total", "Live sessions created"),
		SessionsEvicted: NewCounter("sessions_evicted_total", "Sessions removed by expiry or capacity"),

		ConnectionsActive: NewGauge("connections_active", "Joined WebSocket connections"),
		ConnectionsTotal:  NewCounter("connections_total", "WebSocket connections joined"),
		ConnectionsDenied: NewCounter("connections_denied_total", "WebSocket connections refused by the per-client limit"),

		Events:       NewCounterVec("events_total", "Events dispatched to pages", "event"),
		EventErrors:  NewCounter("event_errors_total", "Events rejected by pages"),
		EventLatency: NewHistogram("event_duration_seconds", "Event handling time"),
		RateLimited:  NewCounter("events_rate_limited_total", "WebSocket events dropped by the rate limit"),
		PanicsTotal:  NewCounter("panics_total", "Panics recovered while handling events"),

		Submissions: NewCounterVec("submissions_total", "Form submits by outcome", "outcome"),
		PatchBytes:  NewHistogram("patch_bytes", "Size of element patches sent"),
	}
}

// Handler returns an HTTP handler for metrics.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		m.WriteTo(w)
	})
}

// WriteTo writes every metric in the Prometheus text format.
func (m *Metrics) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	m.writeScalar(cw, "gauge", m.SessionsActive.name, m.SessionsActive.help, m.SessionsActive.Value())
	m.writeScalar(cw, "counter", m.SessionsTotal.name, m.SessionsTotal.help, m.SessionsTotal.Value())
	m.writeScalar(cw, "counter", m.SessionsEvicted.name, m.SessionsEvicted.help, m.SessionsEvicted.Value())
	m.writeScalar(cw, "gauge", m.ConnectionsActive.name, m.ConnectionsActive.help, m.ConnectionsActive.Value())
	m.writeScalar(cw, "counter", m.ConnectionsTotal.name, m.ConnectionsTotal.help, m.ConnectionsTotal.Value())
	m.writeScalar(cw, "counter", m.ConnectionsDenied.name, m.ConnectionsDenied.help, m.ConnectionsDenied.Value())
	m.writeVec(cw, m.Events)
	m.writeScalar(cw, "counter", m.EventErrors.name, m.EventErrors.help, m.EventErrors.Value())
	m.writeHistogram(cw, m.EventLatency)
	m.writeScalar(cw, "counter", m.RateLimited.name, m.RateLimited.help, m.RateLimited.Value())
	m.writeScalar(cw, "counter", m.PanicsTotal.name, m.PanicsTotal.help, m.PanicsTotal.Value())
	m.writeVec(cw, m.Submissions)
	m.writeHistogram(cw, m.PatchBytes)

	return cw.n, cw.err
}

func (m *Metrics) fullName(name string) string {
	if m.namespace == "" {
		return name
	}
	return m.namespace + "_" + name
}

func (m *Metrics) writeScalar(w io.Writer, typ, name, help string, value float64) {
	name = m.fullName(name)
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %g\n", name, help, name, typ, name, value)
}

func (m *Metrics) writeVec(w io.Writer, cv *CounterVec) {
	name := m.fullName(cv.name)
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n", name, cv.help, name)
	values := cv.Values()
	labels := make([]string, 0, len(values))
	for label := range values {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(w, "%s{%s=%q} %g\n", name, cv.label, label, values[label])
	}
}

func (m *Metrics) writeHistogram(w io.Writer, h *Histogram) {
	name := m.fullName(h.name)
	stats := h.Stats()
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s summary\n", name, h.help, name)
	fmt.Fprintf(w, "%s_sum %g\n", name, stats.Sum)
	fmt.Fprintf(w, "%s_count %d\n", name, stats.Count)
	fmt.Fprintf(w, "%s_max %g\n", name, stats.Max)
}

type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	if cw.err != nil {
		return 0, cw.err
	}
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	cw.err = err
	return n, err
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

// NewCounter creates a new counter.
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds the given value to the counter.
func (c *Counter) Add(delta int64) {
	c.value.Add(delta)
}

// Value returns the current counter value.
func (c *Counter) Value() float64 {
	return float64(c.value.Load())
}

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

// NewGauge creates a new gauge.
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.value.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.value.Add(-1)
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	return float64(g.value.Load())
}

// GaugeFunc reads its value when scraped.
type GaugeFunc struct {
	name string
	help string
	mu   sync.RWMutex
	fn   func() float64
}

// NewGaugeFunc creates a gauge backed by fn.
func NewGaugeFunc(name, help string, fn func() float64) *GaugeFunc {
	return &GaugeFunc{name: name, help: help, fn: fn}
}

// Set replaces the function read by the gauge.
func (g *GaugeFunc) Set(fn func() float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fn = fn
}

// Value returns the current gauge value.
func (g *GaugeFunc) Value() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.fn == nil {
		return 0
	}
	return g.fn()
}

// CounterVec is a counter with one label.
type CounterVec struct {
	name   string
	help   string
	label  string
	values map[string]*Counter
	mu     sync.RWMutex
}

// NewCounterVec creates a new counter vector.
func NewCounterVec(name, help, label string) *CounterVec {
	return &CounterVec{
		name:   name,
		help:   help,
		label:  label,
		values: make(map[string]*Counter),
	}
}

// WithLabel returns a counter for the given label value.
func (cv *CounterVec) WithLabel(value string) *Counter {
	cv.mu.RLock()
	c, ok := cv.values[value]
	cv.mu.RUnlock()
	if ok {
		return c
	}

	cv.mu.Lock()
	defer cv.mu.Unlock()
	if c, ok := cv.values[value]; ok {
		return c
	}
	c = NewCounter(cv.name, cv.help)
	cv.values[value] = c
	return c
}

// Inc increments the counter for the given label.
func (cv *CounterVec) Inc(label string) {
	cv.WithLabel(label).Inc()
}

// Values returns all counter values.
func (cv *CounterVec) Values() map[string]float64 {
	cv.mu.RLock()
	defer cv.mu.RUnlock()

	result := make(map[string]float64, len(cv.values))
	for label, counter := range cv.values {
		result[label] = counter.Value()
	}
	return result
}

// Histogram tracks the sum, count and maximum of observed values.
type Histogram struct {
	name  string
	help  string
	sum   float64
	count int64
	max   float64
	mu    sync.Mutex
}

// NewHistogram creates a new histogram.
func NewHistogram(name, help string) *Histogram {
	return &Histogram{name: name, help: help}
}

// Observe records a value.
func (h *Histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sum += value
	h.count++
	if value > h.max {
		h.max = value
	}
}

// ObserveDuration records a duration value.
func (h *Histogram) ObserveDuration(d time.Duration) {
	h.Observe(d.Seconds())
}

// Timer returns a timer that records the elapsed time when stopped.
func (h *Histogram) Timer() *Timer {
	return &Timer{histogram: h, start: time.Now()}
}

// Stats returns histogram statistics.
func (h *Histogram) Stats() HistogramStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := HistogramStats{Count: h.count, Sum: h.sum, Max: h.max}
	if h.count > 0 {
		stats.Avg = h.sum / float64(h.count)
	}
	return stats
}

// HistogramStats contains histogram statistics.
type HistogramStats struct {
	Count int64
	Sum   float64
	Max   float64
	Avg   float64
}

// Timer tracks operation duration.
type Timer struct {
	histogram *Histogram
	start     time.Time
}

// Stop records the elapsed time.
func (t *Timer) Stop() {
	t.histogram.ObserveDuration(time.Since(t.start))
}
