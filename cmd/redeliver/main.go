package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/application/factories/infrastructure"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/audit"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/config"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine/handlers"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/infrastructure/postgres"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/redeliver"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("redeliver metrics listening", "port", cfg.HTTP.MetricsPort)
		http.ListenAndServe(":"+cfg.HTTP.MetricsPort, mux)
	}()

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	txManager := postgres.NewTxManager(pgPool)
	eventRepo := postgres.NewEventRepository(pgPool, txManager)
	paymentRepo := postgres.NewPaymentRepository(pgPool)
	emailRepo := postgres.NewEmailRepository(pgPool)
	smsRepo := postgres.NewSMSRepository(pgPool)

	window := audit.NewRateWindow(cfg.Engine.ErrorRateWindow)
	sink := audit.NewSink(logger,
		audit.WithStream(infraFactory.AuditProducer()),
		audit.WithRateWindow(window),
		audit.WithSlowThreshold(cfg.Engine.SlowThreshold),
	)
	evaluator := audit.NewEvaluator(window, cfg.Engine.ErrorRateThreshold, cfg.Engine.ErrorRateInterval, logger)
	go evaluator.Run(ctx)

	router := engine.NewRouter()
	if err := handlers.NewStripeHandlers(paymentRepo).Register(router); err != nil {
		logger.Error("failed to register stripe handlers", "error", err)
		os.Exit(1)
	}
	if err := handlers.NewResendHandlers(emailRepo).Register(router); err != nil {
		logger.Error("failed to register resend handlers", "error", err)
		os.Exit(1)
	}
	if err := handlers.NewTwilioHandlers(smsRepo).Register(router); err != nil {
		logger.Error("failed to register twilio handlers", "error", err)
		os.Exit(1)
	}

	pipeline := engine.NewPipeline(eventRepo, router,
		engine.WithAuditor(sink),
		engine.WithHandlerTimeout(cfg.Engine.HandlerTimeout),
	)

	poller := redeliver.NewPoller(eventRepo, pipeline, logger,
		cfg.Redeliver.Interval, cfg.Redeliver.BatchSize, cfg.Redeliver.MaxRetries)

	if err := poller.Run(ctx); err != nil {
		logger.Error("redeliver poller failed", "error", err)
		os.Exit(1)
	}
	logger.Info("redeliver worker stopped")
}
