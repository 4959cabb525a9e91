// Command applyd serves the careers site with live apply forms.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/saludstaffing/applykit/client"
	"github.com/saludstaffing/applykit/internal/config"
	"github.com/saludstaffing/applykit/internal/site"
	"github.com/saludstaffing/applykit/pkg/apply"
	"github.com/saludstaffing/applykit/pkg/audit"
	"github.com/saludstaffing/applykit/pkg/logging"
	"github.com/saludstaffing/applykit/pkg/metrics"
	"github.com/saludstaffing/applykit/pkg/protocol"
	"github.com/saludstaffing/applykit/pkg/router"
	"github.com/saludstaffing/applykit/pkg/shutdown"
	"github.com/saludstaffing/applykit/pkg/transport"
)

var version = "0.1.0"

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "version" || os.Args[1] == "--version") {
		fmt.Printf("applyd v%s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	env, err := config.Load(ctx)
	if err != nil {
		return err
	}

	logger := logging.New(env.LogLevel, env.LogFormat, os.Stdout)
	logging.SetDefault(logger)
	ctx = logging.ContextWithLogger(ctx, logger)

	cfg, err := env.Core()
	if err != nil {
		return err
	}

	codec, err := protocol.NewCodecRegistry().Lookup(cfg.Codec)
	if err != nil {
		return err
	}

	pages, err := site.Open(env.SiteDir)
	if err != nil {
		return err
	}

	auditLog, err := audit.Open(env.AuditLog)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}

	transportConfig := transport.DefaultConfig()
	transportConfig.ReadTimeout = cfg.Timeouts.WebSocketRead
	transportConfig.WriteTimeout = cfg.Timeouts.WebSocketWrite
	transportConfig.MaxMessageSize = cfg.MaxMessageSize

	opts := []router.Option{
		router.WithLogger(logger),
		router.WithCodec(codec),
		router.WithWebSocketConfig(&transport.WebSocketConfig{
			AllowedOrigins:  cfg.Security.AllowedOrigins,
			InsecureDevMode: cfg.Security.InsecureDevMode,
		}),
		router.WithTransportConfig(transportConfig),
		router.WithSessions(router.SessionManagerConfig{
			MaxSessions: cfg.MaxSessions,
			SessionTTL:  cfg.Timeouts.SessionTTL,
		}),
		router.WithEventTimeout(cfg.Timeouts.ComponentEvent),
		router.WithSweepInterval(cfg.Timeouts.SessionCleanup),
		router.WithEventRateLimit(env.EventRate),
		router.WithClient(client.Handler()),
		router.WithVersion(version),
		router.WithAudit(auditLog),
	}
	if env.MaxConnectionsPerIP > 0 {
		opts = append(opts, router.WithConnectionLimit(env.MaxConnectionsPerIP))
	}
	if env.Metrics {
		opts = append(opts, router.WithMetrics(metrics.New("applykit")))
	}

	r := router.New(opts...)
	r.Use(router.Recovery())
	r.Use(logging.RequestLogger(logger, router.HealthPath, router.ClientPath, router.MetricsPath))
	r.Use(router.SecureHeaders())

	pageOpts := []apply.PageOption{apply.WithLogger(logger)}
	if !cfg.Security.SanitizeInput {
		pageOpts = append(pageOpts, apply.WithSanitizer(nil))
	}
	pages.Register(r, pageOpts...)

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  cfg.Timeouts.RequestTimeout,
		WriteTimeout: cfg.Timeouts.RequestTimeout,
		IdleTimeout:  cfg.Timeouts.WebSocketRead,
	}

	// Hijacked WebSocket connections are not tracked by the server, so the
	// sessions are closed before it drains.
	sh := shutdown.NewHandler(cfg.Timeouts.GracefulShutdown, logger)
	sh.RegisterFunc("sessions", shutdown.PrioritySessions, func(ctx context.Context) error {
		r.Shutdown(ctx)
		return nil
	})
	sh.RegisterFunc("http", shutdown.PriorityHTTP, srv.Shutdown)
	sh.RegisterFunc("audit", shutdown.PriorityLast, func(context.Context) error {
		return auditLog.Close()
	})

	go r.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			logging.String("address", cfg.Address),
			logging.String("codec", codec.Name()),
			logging.Int("pages", len(r.Pages())),
			logging.String("version", version),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := sh.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
