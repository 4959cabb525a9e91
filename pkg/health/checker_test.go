package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestChecker_Run(t *testing.T) {
	fail := func(context.Context) error { return errors.New("down") }
	pass := func(context.Context) error { return nil }

	tests := []struct {
		name     string
		setup    func(c *Checker)
		want     Status
		failures []string
	}{
		{
			name:  "all pass",
			setup: func(c *Checker) { c.Add("a", pass); c.AddCritical("b", pass) },
			want:  StatusHealthy,
		},
		{
			name:     "optional check fails",
			setup:    func(c *Checker) { c.Add("a", fail); c.AddCritical("b", pass) },
			want:     StatusDegraded,
			failures: []string{"a"},
		},
		{
			name:     "critical check fails",
			setup:    func(c *Checker) { c.Add("a", fail); c.AddCritical("b", fail) },
			want:     StatusUnhealthy,
			failures: []string{"a", "b"},
		},
		{
			name:  "no checks",
			setup: func(*Checker) {},
			want:  StatusHealthy,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker("1.2.3")
			tt.setup(c)

			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("Status = %s, want %s", report.Status, tt.want)
			}
			if report.Version != "1.2.3" {
				t.Errorf("Version = %q", report.Version)
			}
			for _, name := range tt.failures {
				if res := report.Checks[name]; res.Status != StatusUnhealthy || res.Error != "down" {
					t.Errorf("check %s = %+v, want a failure", name, res)
				}
			}
		})
	}
}

func TestChecker_Timeout(t *testing.T) {
	c := NewChecker("")
	c.timeout = 20 * time.Millisecond
	c.AddCritical("stuck", func(context.Context) error {
		time.Sleep(300 * time.Millisecond)
		return nil
	})

	start := time.Now()
	report := c.Run(context.Background())
	if report.Status != StatusUnhealthy {
		t.Errorf("Status = %s, want unhealthy", report.Status)
	}
	if report.Checks["stuck"].Error != context.DeadlineExceeded.Error() {
		t.Errorf("Error = %q", report.Checks["stuck"].Error)
	}
	if time.Since(start) > 250*time.Millisecond {
		t.Error("Run should not wait for a stuck check")
	}
}

func TestChecker_Handler(t *testing.T) {
	pages := 0
	c := NewChecker("test")
	c.AddCritical("pages", PagesRegistered(func() int { return pages }))

	serve := func() (*httptest.ResponseRecorder, Report) {
		w := httptest.NewRecorder()
		c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		var report Report
		if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
			t.Fatal(err)
		}
		return w, report
	}

	w, report := serve()
	if w.Code != http.StatusServiceUnavailable || report.Checks["pages"].Error != ErrNoPages.Error() {
		t.Errorf("without pages: code %d, report %+v", w.Code, report)
	}

	pages = 2
	w, report = serve()
	if w.Code != http.StatusOK || report.Status != StatusHealthy {
		t.Errorf("with pages: code %d, report %+v", w.Code, report)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestSessionCapacity(t *testing.T) {
	count := 9
	check := SessionCapacity(func() int { return count }, 10)

	if err := check(context.Background()); err != nil {
		t.Errorf("below capacity: %v", err)
	}

	count = 10
	var ce *CapacityError
	if err := check(context.Background()); !errors.As(err, &ce) || ce.Current != 10 || ce.Max != 10 {
		t.Errorf("at capacity: %v", err)
	}

	if err := SessionCapacity(func() int { return 1 << 20 }, 0)(context.Background()); err != nil {
		t.Errorf("unlimited: %v", err)
	}

	c := NewChecker("")
	c.Add("sessions", check)
	res := c.Run(context.Background()).Checks["sessions"]
	if res.Details["current"] != 10 || res.Details["max"] != 10 {
		t.Errorf("Details = %v", res.Details)
	}
}
