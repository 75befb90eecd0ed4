package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/vent-capacity-service/internal/adapter/cache"
	httpadapter "github.com/couchcryptid/vent-capacity-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/vent-capacity-service/internal/adapter/kafka"
	"github.com/couchcryptid/vent-capacity-service/internal/config"
	"github.com/couchcryptid/vent-capacity-service/internal/domain"
	"github.com/couchcryptid/vent-capacity-service/internal/observability"
	"github.com/couchcryptid/vent-capacity-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Assessment cache (disabled via ASSESSMENT_CACHE_SIZE=0).
	var assessor domain.Assessor = domain.NewEngine(cfg.FlashProfiles)
	if cfg.AssessmentCacheSize > 0 {
		assessor = cache.NewCachedAssessor(assessor, cfg.AssessmentCacheSize, metrics, logger)
		logger.Info("assessment cache enabled", "cache_size", cfg.AssessmentCacheSize)
	} else {
		logger.Info("assessment cache disabled")
	}
	transformer := pipeline.NewTransformer(assessor, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		ready  = httpadapter.AlwaysReady
	)
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		ready = p.CheckReadiness

		// Start assessment pipeline.
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
	} else {
		logger.Info("kafka disabled, serving http api only")
	}

	srv := httpadapter.NewServer(cfg, ready, transformer, metrics, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
