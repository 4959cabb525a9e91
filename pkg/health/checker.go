// Package health reports whether the apply server can take new visitors.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrNoPages is reported when no page is registered.
var ErrNoPages = errors.New("no pages registered")

// DefaultTimeout bounds a single check.
const DefaultTimeout = time.Second

// Status is the outcome of a check or of the whole report.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Result is the outcome of one check.
type Result struct {
	Status     Status         `json:"status"`
	DurationMS float64        `json:"duration_ms"`
	Error      string         `json:"error,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// Report is the outcome of every check.
type Report struct {
	Status    Status            `json:"status"`
	Checks    map[string]Result `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
}

// CheckFunc probes one dependency. A nil error means healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name     string
	fn       CheckFunc
	critical bool
}

// Checker runs registered checks concurrently.
type Checker struct {
	mu      sync.RWMutex
	checks  []check
	version string
	timeout time.Duration
}

// NewChecker creates a checker reporting version.
func NewChecker(version string) *Checker {
	return &Checker{version: version, timeout: DefaultTimeout}
}

// SetVersion sets the version shown in reports.
func (c *Checker) SetVersion(version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version = version
}

// Add registers a check whose failure degrades the report.
func (c *Checker) Add(name string, fn CheckFunc) {
	c.add(check{name: name, fn: fn})
}

// AddCritical registers a check whose failure makes the report unhealthy.
func (c *Checker) AddCritical(name string, fn CheckFunc) {
	c.add(check{name: name, fn: fn, critical: true})
}

func (c *Checker) add(ch check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks = append(c.checks, ch)
}

// Run executes every check and folds the results into a report.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := append([]check(nil), c.checks...)
	report := Report{
		Status:    StatusHealthy,
		Checks:    make(map[string]Result, len(checks)),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}
	timeout := c.timeout
	c.mu.RUnlock()

	results := make([]Result, len(checks))
	var wg sync.WaitGroup
	for i, ch := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = run(ctx, ch.fn, timeout)
		}()
	}
	wg.Wait()

	for i, ch := range checks {
		res := results[i]
		report.Checks[ch.name] = res
		if res.Status == StatusHealthy {
			continue
		}
		if ch.critical {
			report.Status = StatusUnhealthy
		} else if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
	}
	return report
}

func run(ctx context.Context, fn CheckFunc, timeout time.Duration) Result {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	res := Result{
		Status:     StatusHealthy,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
		var ce *CapacityError
		if errors.As(err, &ce) {
			res.Details = map[string]any{"current": ce.Current, "max": ce.Max}
		}
	}
	return res
}

// Handler serves the report as JSON, with 503 when it is unhealthy so load
// balancers stop routing visitors here.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		report := c.Run(r.Context())
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if report.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	})
}

// CapacityError reports a resource at its limit.
type CapacityError struct {
	Resource string
	Current  int
	Max      int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s at capacity (%d/%d)", e.Resource, e.Current, e.Max)
}

// SessionCapacity fails once count reaches max. A max of zero never fails.
func SessionCapacity(count func() int, max int) CheckFunc {
	return func(context.Context) error {
		if n := count(); max > 0 && n >= max {
			return &CapacityError{Resource: "live sessions", Current: n, Max: max}
		}
		return nil
	}
}

// PagesRegistered fails while no page is mounted.
func PagesRegistered(count func() int) CheckFunc {
	return func(context.Context) error {
		if count() == 0 {
			return ErrNoPages
		}
		return nil
	}
}
