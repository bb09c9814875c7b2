package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cheggaaa/pb"

	"github.com/couchcryptid/maize-yield-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/maize-yield-etl/internal/adapter/ghcnd"
	"github.com/couchcryptid/maize-yield-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/maize-yield-etl/internal/adapter/kafka"
	"github.com/couchcryptid/maize-yield-etl/internal/adapter/postgres"
	"github.com/couchcryptid/maize-yield-etl/internal/config"
	"github.com/couchcryptid/maize-yield-etl/internal/features"
	"github.com/couchcryptid/maize-yield-etl/internal/observability"
	"github.com/couchcryptid/maize-yield-etl/internal/pipeline"
	"github.com/couchcryptid/maize-yield-etl/internal/predict"
	"github.com/couchcryptid/maize-yield-etl/internal/station"
	"github.com/couchcryptid/maize-yield-etl/internal/yield"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, logger, metrics)
	stop()
	if err != nil {
		logger.Error("pipeline failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	window := cfg.Window()

	stations, err := ghcnd.LoadStationMetadata(cfg.DataDir, cfg.StationIDs)
	if err != nil {
		logger.Warn("station inventory unreadable, summaries will omit names", "error", err)
	}

	source := ghcnd.NewFileSource(cfg, logger, metrics)
	cache := station.NewCache(source, window, logger, metrics)
	builder := features.NewBuilder(features.NewAggregator(cache, cfg.EnoughDays, logger, metrics), logger, metrics)

	if cfg.ShowProgress {
		bar := pb.New(window.Years())
		bar.Output = os.Stderr
		bar.ShowCounters = true
		bar.ShowTimeLeft = true
		bar.Start()
		defer bar.Finish()
		builder.OnYear(func(int) { bar.Increment() })
	}

	sinks := []pipeline.FeatureSink{csvfile.NewFeatureWriter(cfg.FeatureTablePath)}
	predictionSinks := []pipeline.PredictionSink{csvfile.NewPredictionWriter(cfg.PredictionsPath)}

	if cfg.KafkaFeatureTopic != "" {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, writer)
		logger.Info("kafka feature sink enabled", "topic", cfg.KafkaFeatureTopic)
	}

	if cfg.DatabaseURL != "" {
		store, err := postgres.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("postgres close error", "error", err)
			}
		}()
		sinks = append(sinks, store)
		predictionSinks = append(predictionSinks, store)
		logger.Info("postgres sink enabled")
	}

	plan := pipeline.Plan{
		StationIDs: cfg.StationIDs,
		Months:     cfg.Months(),
		Window:     window,
		Stations:   stations,
	}
	p := pipeline.New(builder, sinks, plan, logger, metrics).WithFilterStats(cache)

	if path := cfg.YieldPath(); path != "" {
		regressor := predict.KernelRidge{Degree: cfg.KernelDegree, Alpha: cfg.KernelAlpha, Coef0: cfg.KernelCoef0}
		p.WithPrediction(
			pipeline.NewYieldTrend(path, cfg.YieldPeriods, yield.Breakpoints(cfg.Breakpoints), logger),
			predict.NewEvaluator(regressor, logger, metrics),
			predictionSinks...,
		)
	}

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, func() any { return p.Status() }, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	if _, err := p.Run(ctx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
