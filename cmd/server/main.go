package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lyceum-io/lyceum/internal/handlers"
	"github.com/lyceum-io/lyceum/internal/infrastructure/config"
	"github.com/lyceum-io/lyceum/internal/infrastructure/database"
	"github.com/lyceum-io/lyceum/internal/infrastructure/invalidation"
	"github.com/lyceum-io/lyceum/internal/infrastructure/metrics"
	"github.com/lyceum-io/lyceum/internal/jobs"
	"github.com/lyceum-io/lyceum/internal/repositories/postgres"
	"github.com/lyceum-io/lyceum/internal/services"
	"github.com/lyceum-io/lyceum/internal/services/authorization"
	"github.com/lyceum-io/lyceum/internal/services/registry"
	"github.com/lyceum-io/lyceum/pkg/cache"
	"github.com/lyceum-io/lyceum/pkg/cache/memorycache"
)

const defaultEnv = "dev"

// decisionRecorders fans decision metrics out to the collector and the
// Prometheus exporter
type decisionRecorders struct {
	collector *metrics.Collector
	exporter  *metrics.PrometheusExporter
}

func (d decisionRecorders) RecordDecision(granted bool) {
	d.collector.RecordDecision(granted)
	d.exporter.RecordDecision(granted)
}

// defectRecorders mirrors defect counts into Prometheus
type defectRecorders struct {
	collector *metrics.Collector
	exporter  *metrics.PrometheusExporter
}

func (d defectRecorders) RecordDefect(kind string) {
	d.collector.RecordDefect(kind)
	d.exporter.RecordDefect(kind)
}

func main() {
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		fatal(logger, "failed to initialize config", err)
	}
	cfg, err := config.Load()
	if err != nil {
		fatal(logger, "failed to load config", err)
	}

	// Connect to database
	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		fatal(logger, "failed to connect to database", err)
	}
	defer pg.Close()

	logger.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.Int("port", cfg.Database.Port),
		slog.String("database", cfg.Database.Database),
	)

	// Build the permission registry
	var reg *registry.Registry
	if cfg.Registry.Path != "" {
		reg, err = registry.LoadFile(cfg.Registry.Path)
		if err != nil {
			fatal(logger, "failed to load permission registry", err)
		}
		logger.Info("permission registry loaded", slog.String("path", cfg.Registry.Path))
	} else {
		reg, err = registry.Default()
		if err != nil {
			fatal(logger, "failed to build built-in permission registry", err)
		}
	}

	// Expression conditions must compile before we serve a single check
	celEngine, err := authorization.NewCELEngine()
	if err != nil {
		fatal(logger, "failed to create CEL engine", err)
	}
	if err := authorization.ValidateExpressions(celEngine, reg); err != nil {
		fatal(logger, "registry expression validation failed", err)
	}

	// Metrics
	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector)

	// Decision cache
	var decisionCache cache.Cache
	if cfg.Cache.Enabled {
		decisionCache, err = memorycache.New(&memorycache.Config{
			MaxEntries:    cfg.Cache.MaxEntries,
			DefaultTTL:    time.Duration(cfg.Cache.TTLSeconds) * time.Second,
			EnableMetrics: cfg.Cache.Metrics,
		})
		if err != nil {
			fatal(logger, "failed to create decision cache", err)
		}
		collector.SetCache(decisionCache)
	}

	// Core services
	assignmentRepo := postgres.NewPostgresAssignmentRepository(pg.DB)
	conditions := authorization.NewConditionEvaluator(celEngine, logger,
		defectRecorders{collector: collector, exporter: exporter})
	checker, err := authorization.NewChecker(&authorization.CheckerConfig{
		Registry:   reg,
		Store:      assignmentRepo,
		Conditions: conditions,
		Cache:      decisionCache,
		CacheTTL:   time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		BulkLimit:  cfg.Checker.BulkLimit,
		Logger:     logger,
	})
	if err != nil {
		fatal(logger, "failed to create permission checker", err)
	}

	// Optional cross-process invalidation fan-out
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	var publisher services.InvalidationPublisher
	if cfg.Redis.Enabled {
		redisClient, err := invalidation.Connect(rootCtx, cfg.Redis.Addr)
		if err != nil {
			fatal(logger, "failed to connect to redis", err)
		}
		defer redisClient.Close()

		bus := invalidation.NewBus(redisClient, cfg.Redis.Channel, logger)
		publisher = bus

		go func() {
			err := bus.Subscribe(rootCtx, func(ctx context.Context, userID string) {
				if err := checker.InvalidateUser(ctx, userID); err != nil {
					logger.Error("fan-out invalidation failed",
						slog.String("user_id", userID),
						slog.String("error", err.Error()))
				}
			})
			if err != nil && rootCtx.Err() == nil {
				logger.Error("invalidation subscription ended", slog.String("error", err.Error()))
			}
		}()
		logger.Info("invalidation fan-out enabled", slog.String("channel", cfg.Redis.Channel))
	}

	assignmentService := services.NewAssignmentService(assignmentRepo, checker, publisher, logger)

	// Expiry sweep
	if cfg.Sweep.Enabled {
		sweeper, err := jobs.StartExpirySweep(cfg.Sweep.Schedule, assignmentService, logger)
		if err != nil {
			fatal(logger, "failed to schedule expiry sweep", err)
		}
		defer sweeper.Stop()
		logger.Info("expiry sweep scheduled", slog.String("schedule", cfg.Sweep.Schedule))
	}

	// HTTP API
	accessHandler := handlers.NewAccessHandler(checker, logger,
		decisionRecorders{collector: collector, exporter: exporter})
	assignmentHandler := handlers.NewAssignmentHandler(assignmentService, logger)
	router := handlers.NewRouter(&handlers.RouterConfig{
		Access:      accessHandler,
		Assignments: assignmentHandler,
		Health: func(r *http.Request) error {
			return pg.HealthCheck(r.Context())
		},
		Metrics: metrics.Middleware(collector, exporter),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Metrics server on its own port; gauges refresh on a ticker
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				exporter.Update()
			}
		}
	}()

	serverErrors := make(chan error, 2)
	go func() {
		logger.Info("http server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("http server error: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics server listening", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	// Wait for shutdown signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErrors:
		fatal(logger, "server error", err)
	case sig := <-sigChan:
		logger.Info("shutting down", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", slog.String("error", err.Error()))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown failed", slog.String("error", err.Error()))
		}

		logger.Info("shutdown complete")
	}
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, slog.String("error", err.Error()))
	os.Exit(1)
}
