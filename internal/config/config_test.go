package config

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, ":3000", cfg.Address)
	require.Equal(t, "json", cfg.Codec)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "text", cfg.LogFormat)
	require.Equal(t, 30*time.Minute, cfg.SessionTTL)
	require.Equal(t, 10000, cfg.MaxSessions)
	require.Equal(t, 20, cfg.EventRate)
	require.Equal(t, 20, cfg.MaxConnectionsPerIP)
	require.False(t, cfg.Metrics)
	require.Empty(t, cfg.AuditLog)
	require.Empty(t, cfg.AllowedOrigins)
	require.False(t, cfg.Debug)
}

func TestLoad_Overrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("APPLYKIT_ADDRESS", ":8080")
	t.Setenv("APPLYKIT_CODEC", "msgpack")
	t.Setenv("APPLYKIT_DEBUG", "true")
	t.Setenv("APPLYKIT_LOG_FORMAT", "json")
	t.Setenv("APPLYKIT_ALLOWED_ORIGINS", "https://careers.example.com,https://example.com")
	t.Setenv("APPLYKIT_SESSION_TTL", "5m")
	t.Setenv("APPLYKIT_SITE_DIR", t.TempDir())
	t.Setenv("APPLYKIT_MAX_CONNECTIONS_PER_IP", "0")
	t.Setenv("APPLYKIT_METRICS", "true")
	t.Setenv("APPLYKIT_AUDIT_LOG", "-")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Address)
	require.Equal(t, "msgpack", cfg.Codec)
	require.True(t, cfg.Debug)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, []string{"https://careers.example.com", "https://example.com"}, cfg.AllowedOrigins)
	require.Equal(t, 5*time.Minute, cfg.SessionTTL)
	require.NotEmpty(t, cfg.SiteDir)
	require.Zero(t, cfg.MaxConnectionsPerIP)
	require.True(t, cfg.Metrics)
	require.Equal(t, "-", cfg.AuditLog)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown codec", "APPLYKIT_CODEC", "xml"},
		{"unknown log level", "APPLYKIT_LOG_LEVEL", "trace"},
		{"unknown log format", "APPLYKIT_LOG_FORMAT", "yaml"},
		{"zero ttl", "APPLYKIT_SESSION_TTL", "0s"},
		{"negative sessions", "APPLYKIT_MAX_SESSIONS", "-1"},
		{"negative connection cap", "APPLYKIT_MAX_CONNECTIONS_PER_IP", "-1"},
		{"missing site dir", "APPLYKIT_SITE_DIR", "/does/not/exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load(context.Background())
			require.Error(t, err)
			require.Nil(t, cfg)
		})
	}
}

func TestConfig_Core(t *testing.T) {
	cfg := &Config{
		Address:        ":9000",
		Codec:          "msgpack",
		SessionTTL:     time.Minute,
		MaxSessions:    5,
		AllowedOrigins: []string{"https://example.com"},
	}

	c, err := cfg.Core()
	require.NoError(t, err)
	require.Equal(t, ":9000", c.Address)
	require.Equal(t, "msgpack", c.Codec)
	require.Equal(t, time.Minute, c.Timeouts.SessionTTL)
	require.Equal(t, 5, c.MaxSessions)
	require.Equal(t, []string{"https://example.com"}, c.Security.AllowedOrigins)
	require.False(t, c.Security.InsecureDevMode)

	cfg.Debug = true
	cfg.AllowedOrigins = nil
	c, err = cfg.Core()
	require.NoError(t, err)
	require.True(t, c.Security.InsecureDevMode)
	require.Equal(t, []string{"*"}, c.Security.AllowedOrigins)
}
