package limits

import (
	"net"
	"net/http"
	"strings"
	"sync"
)

// DefaultConnectionsPerIP is used when a limiter is built with a
// non-positive cap.
const DefaultConnectionsPerIP = 100

// ConnectionLimiter counts open connections per client IP.
type ConnectionLimiter struct {
	limit int

	mu   sync.Mutex
	open map[string]int
}

func NewConnectionLimiter(perIP int) *ConnectionLimiter {
	if perIP <= 0 {
		perIP = DefaultConnectionsPerIP
	}
	return &ConnectionLimiter{limit: perIP, open: make(map[string]int)}
}

func (cl *ConnectionLimiter) Limit() int { return cl.limit }

// Acquire takes a slot for ip. Every successful Acquire must be paired
// with a Release.
func (cl *ConnectionLimiter) Acquire(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.open[ip] >= cl.limit {
		return false
	}
	cl.open[ip]++
	return true
}

func (cl *ConnectionLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	switch n := cl.open[ip]; {
	case n > 1:
		cl.open[ip] = n - 1
	default:
		delete(cl.open, ip)
	}
}

// Count returns how many slots ip holds.
func (cl *ConnectionLimiter) Count(ip string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.open[ip]
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
