package core

import (
	"errors"
	"time"
)

var (
	ErrInvalidMaxMessageSize = errors.New("max message size must be positive")
	ErrUnknownCodec          = errors.New("codec must be json or msgpack")
	ErrInvalidSessionTTL     = errors.New("session TTL must be positive")
)

// TimeoutConfig bounds every blocking step of a live session.
type TimeoutConfig struct {
	RequestTimeout   time.Duration // page loads and HTTP events
	ComponentEvent   time.Duration // one HandleEvent call
	WebSocketRead    time.Duration
	WebSocketWrite   time.Duration
	SessionTTL       time.Duration // idle time before a session is evicted
	SessionCleanup   time.Duration // sweep interval
	GracefulShutdown time.Duration
}

type SecurityConfig struct {
	// AllowedOrigins lists WebSocket origins; empty means same origin only.
	AllowedOrigins []string
	// InsecureDevMode skips origin checks. Never enable in production.
	InsecureDevMode bool
	// SanitizeInput strips markup from event payload values.
	SanitizeInput bool
}

// Config is the resolved server configuration.
type Config struct {
	Address        string
	Debug          bool
	Codec          string // "json" or "msgpack"
	MaxMessageSize int64
	MaxSessions    int    // 0 is unlimited
	Timeouts       TimeoutConfig
	Security       SecurityConfig
}

// DefaultConfig is the production profile.
func DefaultConfig() Config {
	return Config{
		Address:        ":3000",
		Codec:          "json",
		MaxMessageSize: 64 << 10,
		MaxSessions:    10000,
		Timeouts: TimeoutConfig{
			RequestTimeout:   30 * time.Second,
			ComponentEvent:   3 * time.Second,
			WebSocketRead:    time.Minute,
			WebSocketWrite:   10 * time.Second,
			SessionTTL:       30 * time.Minute,
			SessionCleanup:   time.Minute,
			GracefulShutdown: 30 * time.Second,
		},
		Security: SecurityConfig{SanitizeInput: true},
	}
}

// DevelopmentConfig loosens timeouts and origin checks for local work.
func DevelopmentConfig() Config {
	c := DefaultConfig()
	c.Debug = true
	c.MaxSessions = 0
	c.Security.AllowedOrigins = []string{"*"}
	c.Security.InsecureDevMode = true

	t := &c.Timeouts
	t.RequestTimeout = 2 * time.Minute
	t.ComponentEvent = 30 * time.Second
	t.WebSocketRead = 5 * time.Minute
	t.WebSocketWrite = 30 * time.Second
	t.SessionTTL = 2 * time.Hour
	t.SessionCleanup = 5 * time.Minute
	t.GracefulShutdown = 5 * time.Second
	return c
}

func (c Config) Validate() error {
	switch {
	case c.MaxMessageSize <= 0:
		return ErrInvalidMaxMessageSize
	case c.Codec != "json" && c.Codec != "msgpack":
		return ErrUnknownCodec
	case c.Timeouts.SessionTTL <= 0:
		return ErrInvalidSessionTTL
	}
	return nil
}
