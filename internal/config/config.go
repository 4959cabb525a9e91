// Package config loads server settings from APPLYKIT_* environment
// variables.
package config

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/saludstaffing/applykit/pkg/core"
	"github.com/saludstaffing/applykit/pkg/logging"
)

// Config holds the environment overrides.
type Config struct {
	Address string `mapstructure:"APPLYKIT_ADDRESS" validate:"required"`
	Debug   bool   `mapstructure:"APPLYKIT_DEBUG"`
	Codec   string `mapstructure:"APPLYKIT_CODEC" validate:"oneof=json msgpack"`

	LogLevel  string `mapstructure:"APPLYKIT_LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"APPLYKIT_LOG_FORMAT" validate:"oneof=text json"`

	// AllowedOrigins is a comma separated list of WebSocket origins.
	AllowedOrigins []string `mapstructure:"APPLYKIT_ALLOWED_ORIGINS" validate:"dive,required"`

	SessionTTL  time.Duration `mapstructure:"APPLYKIT_SESSION_TTL" validate:"gt=0"`
	MaxSessions int           `mapstructure:"APPLYKIT_MAX_SESSIONS" validate:"gte=0"`

	// EventRate caps events per second, per client IP over HTTP and per
	// session over WebSocket. Zero disables the limit.
	EventRate int `mapstructure:"APPLYKIT_EVENT_RATE" validate:"gte=0"`

	// MaxConnectionsPerIP caps concurrent WebSocket connections per client
	// IP. Zero disables the limit.
	MaxConnectionsPerIP int `mapstructure:"APPLYKIT_MAX_CONNECTIONS_PER_IP" validate:"gte=0"`

	// Metrics serves Prometheus metrics under /metrics.
	Metrics bool `mapstructure:"APPLYKIT_METRICS"`

	// AuditLog is where refused requests are recorded: a file path, "-"
	// for stdout, or empty to disable.
	AuditLog string `mapstructure:"APPLYKIT_AUDIT_LOG"`

	// SiteDir serves pages from a directory instead of the embedded site.
	SiteDir string `mapstructure:"APPLYKIT_SITE_DIR" validate:"omitempty,dir"`
}

// bindEnv binds every mapstructure tag so Unmarshal sees unset keys too.
func bindEnv(c Config) {
	typ := reflect.TypeOf(c)
	for i := 0; i < typ.NumField(); i++ {
		if tag := typ.Field(i).Tag.Get("mapstructure"); tag != "" {
			viper.BindEnv(tag)
		}
	}
}

// Load reads and validates the configuration.
func Load(ctx context.Context) (*Config, error) {
	bindEnv(Config{})
	viper.AutomaticEnv()

	viper.SetDefault("APPLYKIT_ADDRESS", ":3000")
	viper.SetDefault("APPLYKIT_CODEC", "json")
	viper.SetDefault("APPLYKIT_LOG_LEVEL", "info")
	viper.SetDefault("APPLYKIT_LOG_FORMAT", "text")
	viper.SetDefault("APPLYKIT_SESSION_TTL", "30m")
	viper.SetDefault("APPLYKIT_MAX_SESSIONS", 10000)
	viper.SetDefault("APPLYKIT_EVENT_RATE", 20)
	viper.SetDefault("APPLYKIT_MAX_CONNECTIONS_PER_IP", 20)

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	logging.L(ctx).Debug("configuration loaded",
		logging.String("address", cfg.Address),
		logging.String("codec", cfg.Codec),
		logging.Bool("debug", cfg.Debug),
	)
	return &cfg, nil
}

// Core returns the framework configuration with the overrides applied.
func (c *Config) Core() (core.Config, error) {
	base := core.DefaultConfig()
	if c.Debug {
		base = core.DevelopmentConfig()
	}

	base.Address = c.Address
	base.Codec = c.Codec
	base.MaxSessions = c.MaxSessions
	base.Timeouts.SessionTTL = c.SessionTTL
	if len(c.AllowedOrigins) > 0 {
		base.Security.AllowedOrigins = c.AllowedOrigins
	}

	if err := base.Validate(); err != nil {
		return core.Config{}, fmt.Errorf("core config: %w", err)
	}
	return base, nil
}
