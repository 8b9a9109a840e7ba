package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datatools/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-datatools/pkg/audit"
	"github.com/ekaya-inc/ekaya-datatools/pkg/config"
	"github.com/ekaya-inc/ekaya-datatools/pkg/database"
	"github.com/ekaya-inc/ekaya-datatools/pkg/handlers"
	"github.com/ekaya-inc/ekaya-datatools/pkg/logging"
	"github.com/ekaya-inc/ekaya-datatools/pkg/middleware"
	"github.com/ekaya-inc/ekaya-datatools/pkg/repositories"
	"github.com/ekaya-inc/ekaya-datatools/pkg/retry"
	"github.com/ekaya-inc/ekaya-datatools/pkg/services"
	"github.com/ekaya-inc/ekaya-datatools/pkg/services/workqueue"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		// Logger depends on config; fall back to stderr.
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Strings("allowed_environments", cfg.DataTools.AllowedEnvironments),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Duration("run_timeout", cfg.DataTools.RunTimeout),
		zap.Int("max_concurrent_runs", cfg.DataTools.MaxConcurrentRuns),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
		Retry:          retry.StartupConfig(),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.String("error", logging.SanitizeError(err)))
	}
	defer db.Close()

	if err := migrate(cfg, logger); err != nil {
		logger.Fatal("Failed to migrate database", zap.String("error", logging.SanitizeError(err)))
	}

	// Repositories
	runRepo := repositories.NewRunRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Data access over the compared schemas
	adapter := postgres.NewAdapter(db, cfg.DataTools.PartitionColumn, logger)

	// Services
	auditService := services.NewAuditService(auditRepo, logger)
	assetService := services.NewAssetService(adapter, cfg.DataTools, logger)
	keySuggester := services.NewKeySuggester(adapter, adapter, auditService, cfg.DataTools, logger)
	planner := services.NewComparisonPlanner(cfg.DataTools)
	comparer := services.NewComparisonExecutor(adapter, adapter, cfg.DataTools.QueryConcurrency, logger)
	validator := services.NewValidationExecutor(adapter, adapter, cfg.DataTools, logger)

	queue := workqueue.New(logger,
		workqueue.WithStrategy(workqueue.NewBoundedStrategy(cfg.DataTools.MaxConcurrentRuns)),
		workqueue.WithOnUpdate(services.ObserveQueueProgress),
	)
	runService := services.NewRunService(runRepo, planner, comparer, validator, auditService, queue, cfg.DataTools, logger)

	reaper := services.NewStaleRunReaper(runRepo, auditService, cfg.DataTools, logger)
	if _, err := reaper.Sweep(ctx); err != nil {
		logger.Warn("Initial stale run sweep failed", zap.String("error", logging.SanitizeError(err)))
	}
	if err := reaper.Start(); err != nil {
		logger.Fatal("Failed to start stale run sweep", zap.Error(err))
	}

	// HTTP
	submitLimiter := middleware.NewSubmitLimiter(cfg.RateLimit.SubmitsPerSecond, cfg.RateLimit.Burst, logger)
	security := audit.NewSecurityAuditor(logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, runService, logger).RegisterRoutes(mux)
	handlers.NewAssetsHandler(assetService, auditService, security, logger).RegisterRoutes(mux)
	handlers.NewCompareHandler(keySuggester, runService, logger).RegisterRoutes(mux, submitLimiter.Wrap)
	handlers.NewValidateHandler(runService, logger).RegisterRoutes(mux, submitLimiter.Wrap)
	handlers.NewRunsHandler(runService, logger).RegisterRoutes(mux)
	handlers.NewAuditLogHandler(auditService, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-datatools",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	reaper.Stop()
	if err := runService.Shutdown(shutdownCtx); err != nil {
		logger.Error("Run service shutdown failed", zap.Error(err))
	}

	logger.Info("Shutdown complete")
}

// migrate applies the embedded migrations over a database/sql connection,
// which golang-migrate requires.
func migrate(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, logger.Named("migrations"))
}
