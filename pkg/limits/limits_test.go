package limits

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestTokenBucket(t *testing.T) {
	tb := NewTokenBucket(2, 2)
	defer tb.Close()

	now := time.Unix(1000, 0)
	tb.now = func() time.Time { return now }

	if !tb.Allow("a") || !tb.Allow("a") {
		t.Fatal("expected the burst to be allowed")
	}
	if tb.Allow("a") {
		t.Error("expected the third event to be limited")
	}
	if !tb.Allow("b") {
		t.Error("keys should not share buckets")
	}

	now = now.Add(500 * time.Millisecond)
	if !tb.Allow("a") {
		t.Error("expected one token after half a second")
	}
	if tb.Allow("a") {
		t.Error("expected the refilled token to be spent")
	}

	now = now.Add(time.Hour)
	if tb.AllowN("a", 3) {
		t.Error("refill should be capped at the burst")
	}
	if !tb.AllowN("a", 2) {
		t.Error("expected a full bucket after an hour")
	}
}

func TestTokenBucket_ForgetAndSweep(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	defer tb.Close()

	now := time.Unix(1000, 0)
	tb.now = func() time.Time { return now }

	tb.Allow("a")
	tb.Allow("b")
	tb.Forget("a")
	if !tb.Allow("a") {
		t.Error("a forgotten key starts with a full bucket")
	}

	now = now.Add(idleAfter + time.Second)
	tb.sweep()
	if n := tb.size(); n != 0 {
		t.Errorf("expected idle buckets to be dropped, %d left", n)
	}

	tb.Close()
	tb.Close()
}

func TestConnectionLimiter(t *testing.T) {
	cl := NewConnectionLimiter(2)

	if !cl.Acquire("1.1.1.1") || !cl.Acquire("1.1.1.1") {
		t.Fatal("expected two slots")
	}
	if cl.Acquire("1.1.1.1") {
		t.Error("expected the third connection to be blocked")
	}
	if !cl.Acquire("2.2.2.2") {
		t.Error("limits are per IP")
	}
	if got := NewConnectionLimiter(0).Limit(); got != DefaultConnectionsPerIP {
		t.Errorf("Limit() = %d, want %d", got, DefaultConnectionsPerIP)
	}

	cl.Release("1.1.1.1")
	if got := cl.Count("1.1.1.1"); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
	cl.Release("1.1.1.1")
	cl.Release("1.1.1.1")
	if got := cl.Count("1.1.1.1"); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
}

func TestConnectionLimiter_Concurrent(t *testing.T) {
	cl := NewConnectionLimiter(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cl.Acquire("ip") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Errorf("allowed %d connections, want 10", allowed)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		remote string
		want   string
	}{
		{"forwarded", "X-Forwarded-For", "10.0.0.1, 10.0.0.2", "1.2.3.4:5", "10.0.0.1"},
		{"real ip", "X-Real-IP", " 10.0.0.3 ", "1.2.3.4:5", "10.0.0.3"},
		{"remote", "", "", "1.2.3.4:5", "1.2.3.4"},
		{"ipv6 remote", "", "", "[::1]:8080", "::1"},
		{"no port", "", "", "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}
			if got := ClientIP(r); got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
