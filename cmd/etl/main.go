package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/ssebop-etl/internal/adapter/engine"
	httpadapter "github.com/couchcryptid/ssebop-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ssebop-etl/internal/adapter/kafka"
	"github.com/couchcryptid/ssebop-etl/internal/adapter/postgres"
	redisadapter "github.com/couchcryptid/ssebop-etl/internal/adapter/redis"
	"github.com/couchcryptid/ssebop-etl/internal/config"
	"github.com/couchcryptid/ssebop-etl/internal/domain"
	"github.com/couchcryptid/ssebop-etl/internal/observability"
	"github.com/couchcryptid/ssebop-etl/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := engine.NewClient(cfg.EngineURL, cfg.EngineTimeout, cfg.EngineScale, metrics, logger)
	coverage := engine.NewCachedCoverage(client, cfg.CoverageCacheSize, metrics)

	ready := httpadapter.Readiness{}
	store, closeStore, err := openTcorrStore(ctx, cfg, metrics, logger, ready)
	if err != nil {
		logger.Error("failed to open tcorr store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	clock := clockwork.NewRealClock()
	resolver := domain.NewResolver(domain.DefaultCatalog(), coverage, store, logger, domain.WithClock(clock))

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(resolver, client, clock, metrics, logger)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
	ready["pipeline"] = p

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, transformer, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// openTcorrStore connects the Tcorr lookup tables. Without a database URL
// only the catalog default tier is used. Readiness checks for the opened
// dependencies are added to ready.
func openTcorrStore(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger, ready httpadapter.Readiness) (domain.TcorrStore, func(), error) {
	if cfg.TcorrDatabaseURL == "" {
		logger.Warn("TCORR_DATABASE_URL not set, scene and monthly tcorr tiers disabled")
		return domain.NewMemoryTcorrStore(), func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.TcorrDatabaseURL, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	ready["tcorr_db"] = db
	closers := []func() error{db.Close}

	var store domain.TcorrStore = db
	if cfg.RedisAddr != "" {
		rdb := redisadapter.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		cached := redisadapter.NewCachedTcorrStore(db, rdb, cfg.RedisTTL, logger, metrics)
		ready["tcorr_cache"] = cached
		closers = append(closers, rdb.Close)
		store = cached
		logger.Info("tcorr redis cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.RedisTTL)
	}

	return store, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Error("tcorr store close error", "error", err)
			}
		}
	}, nil
}
