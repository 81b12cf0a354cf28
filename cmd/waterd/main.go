package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/water-balance-service/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/water-balance-service/internal/adapter/kafka"
	"github.com/couchcryptid/water-balance-service/internal/config"
	"github.com/couchcryptid/water-balance-service/internal/observability"
	"github.com/couchcryptid/water-balance-service/internal/pipeline"
	"github.com/couchcryptid/water-balance-service/internal/store"
	"github.com/couchcryptid/water-balance-service/internal/viewcache"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Balance publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("balance publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaBalanceTopic)
	} else {
		logger.Info("balance publishing disabled")
	}

	st := store.New()
	loader := pipeline.New(st, publisher, logger, metrics)
	cache := viewcache.New(cfg.ViewCacheSize, metrics)

	api := httpadapter.NewWaterAPI(st, loader, cache, cfg.MaxUploadBytes, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, loader, api, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The service starts unready when the initial dataset is unusable and
	// becomes ready on the first successful upload.
	if _, err := loader.LoadDefault(ctx, cfg.DatasetPath); err != nil {
		logger.Error("initial dataset load failed", "path", cfg.DatasetPath, "error", err)
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
