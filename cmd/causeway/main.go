package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/causeway-db/causeway/internal/adapter/httpapi"
	"github.com/causeway-db/causeway/internal/adapter/postgres"
	"github.com/causeway-db/causeway/internal/adapter/sqlite"
	"github.com/causeway-db/causeway/internal/admission"
	"github.com/causeway-db/causeway/internal/audit"
	"github.com/causeway-db/causeway/internal/config"
	"github.com/causeway-db/causeway/internal/core/domain"
	"github.com/causeway-db/causeway/internal/core/port"
	"github.com/causeway-db/causeway/internal/core/service"
	"github.com/causeway-db/causeway/internal/policy"
	"github.com/causeway-db/causeway/internal/telemetry"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	overrides, err := parseFlags(os.Args[1:])
	if err != nil {
		return err
	}

	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	logger.Info("starting causeway",
		slog.String("version", version),
		slog.String("engine", cfg.Engine),
		slog.String("log_level", cfg.LogLevel.String()),
		slog.Int("max_rows", cfg.MaxRows),
		slog.String("query_timeout", cfg.QueryTimeout.String()),
		slog.String("rate_window", cfg.RateWindow.String()),
		slog.Int("rate_quota", cfg.RateQuota),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Observability (optional).
	tracer := telemetry.NoopTracer()
	var inst port.Instrumentation = port.NoopInstrumentation{}
	if cfg.OTelEnabled {
		provider, err := telemetry.Init(ctx, "causeway", version)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.String("error", err.Error()))
			}
		}()
		tracer = otel.Tracer("github.com/causeway-db/causeway")
		inst = telemetry.NewInstruments()
		logger.Info("telemetry enabled")
	}

	// Execution engine.
	executor, dialect, closeEngine, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()

	// Per-tenant policy (optional).
	var pol *policy.Policy
	if cfg.PolicyFile != "" {
		pol, err = policy.LoadFromFile(cfg.PolicyFile)
		if err != nil {
			return fmt.Errorf("loading policy: %w", err)
		}
		logger.Info("policy loaded",
			slog.String("file", cfg.PolicyFile),
			slog.Int("tenants", len(pol.Tenants)),
		)
	}

	masks := make(map[string]domain.MaskSet)
	for tenant := range polTenants(pol) {
		if m := pol.MasksFor(tenant); m != nil {
			masks[tenant] = m
		}
	}

	limiter := admission.NewLimiter(cfg.RateWindow, cfg.RateQuota,
		admission.WithQuotaOverrides(pol.QuotaOverrides()),
	)

	// Audit sink.
	var auditor port.QueryAuditor = port.NoopAuditor{}
	if cfg.AuditLog != "" {
		fileAuditor, err := audit.NewFileAuditor(cfg.AuditLog)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer func() { _ = fileAuditor.Close() }()
		auditor = fileAuditor
		logger.Info("audit log enabled", slog.String("file", cfg.AuditLog))
	}

	validator := domain.NewValidator(cfg.NamespaceSeparator)
	gateway := service.NewGatewayService(
		validator, executor, limiter, auditor, logger,
		dialect, masks, tracer, inst,
		cfg.QueryTimeout, cfg.MaxRows,
	)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewServer(gateway, logger, cfg.BearerToken).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving HTTP", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// buildEngine wires the configured execution engine and returns its executor,
// placeholder dialect and a close function.
func buildEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (port.QueryExecutor, domain.Dialect, func(), error) {
	switch cfg.Engine {
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		logger.Info("sqlite database opened", slog.String("path", cfg.SQLitePath))
		return sqlite.NewExecutor(db), domain.SQLite, func() { _ = db.Close() }, nil

	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxConns:        cfg.PoolMaxConns,
			MinConns:        cfg.PoolMinConns,
			MaxConnLifetime: cfg.PoolMaxConnLifetime,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		logger.Info("database pool connected", slog.String("url", redactDSN(cfg.DatabaseURL)))
		return postgres.NewExecutor(pool), domain.Postgres, pool.Close, nil
	}
}

// polTenants iterates policy tenants, tolerating a nil policy.
func polTenants(pol *policy.Policy) map[string]policy.TenantPolicy {
	if pol == nil {
		return nil
	}
	return pol.Tenants
}

// redactDSN hides the password component of a connection URL for logging.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
