// Package transport carries protocol messages over WebSocket connections
// between the server and the browser client.
package transport

import (
	"errors"
	"net/url"
	"time"
)

// Transport errors.
var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendTimeout      = errors.New("send timeout")
	ErrOriginNotAllowed = errors.New("origin not allowed")
)

// Config bounds one connection.
type Config struct {
	// ReadTimeout closes a connection that sent nothing for this long. The
	// client heartbeat keeps idle pages under it.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration

	MaxMessageSize int64

	// SendBuffer and ReceiveBuffer size the queues between the socket and
	// the session loop.
	SendBuffer    int
	ReceiveBuffer int
}

// DefaultConfig returns the limits used by the apply server.
func DefaultConfig() *Config {
	return &Config{
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 64 << 10,
		SendBuffer:     64,
		ReceiveBuffer:  64,
	}
}

// WebSocketConfig decides which pages may open a socket.
type WebSocketConfig struct {
	// AllowedOrigins lists cross-origin pages allowed to connect. Same-origin
	// pages are always allowed. "*" allows any origin.
	AllowedOrigins []string

	// InsecureDevMode skips the origin check. Development only.
	InsecureDevMode bool
}

// DefaultWebSocketConfig allows same-origin pages only.
func DefaultWebSocketConfig() *WebSocketConfig {
	return &WebSocketConfig{}
}

// originAllowed reports whether a page at origin may connect to host.
func (c *WebSocketConfig) originAllowed(origin, host string) bool {
	if c.InsecureDevMode || origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == host {
		return true
	}
	for _, allowed := range c.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
		if au, err := url.Parse(allowed); err == nil && au.Host != "" && au.Host == u.Host {
			return true
		}
	}
	return false
}
