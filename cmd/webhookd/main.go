package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/api"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/application/factories/infrastructure"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/audit"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/config"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine/handlers"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/infrastructure/postgres"
	redisInfra "github.com/nitinthakurcode/weddingflo-sub009/internal/infrastructure/redis"
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

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	// Repositories
	txManager := postgres.NewTxManager(pgPool)
	eventRepo := postgres.NewEventRepository(pgPool, txManager)
	paymentRepo := postgres.NewPaymentRepository(pgPool)
	emailRepo := postgres.NewEmailRepository(pgPool)
	smsRepo := postgres.NewSMSRepository(pgPool)

	// Audit sink: structured logs, metrics, kafka stream, error-rate window
	window := audit.NewRateWindow(cfg.Engine.ErrorRateWindow)
	sink := audit.NewSink(logger,
		audit.WithStream(infraFactory.AuditProducer()),
		audit.WithRateWindow(window),
		audit.WithSlowThreshold(cfg.Engine.SlowThreshold),
	)
	evaluator := audit.NewEvaluator(window, cfg.Engine.ErrorRateThreshold, cfg.Engine.ErrorRateInterval, logger)
	go evaluator.Run(ctx)

	// Event router
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
		engine.WithDuplicateCache(redisInfra.NewDupCache(redisClient, cfg.Engine.DuplicateCacheTTL, logger)),
		engine.WithHandlerTimeout(cfg.Engine.HandlerTimeout),
	)

	// Transport adapter
	apiHandlers := api.NewHandlers(pipeline, eventRepo, cfg.Engine.MaxBodyBytes, logger)
	apiHandlers.Configure(event.ProviderStripe, api.ProviderConfig{
		SignatureHeader: "Stripe-Signature",
		Secret:          cfg.Webhooks.StripeSecret,
		Verify:          api.HMACVerifier(api.ParseStripeEnvelope),
	})
	apiHandlers.Configure(event.ProviderResend, api.ProviderConfig{
		SignatureHeader: "Resend-Signature",
		Secret:          cfg.Webhooks.ResendSecret,
		Verify:          api.HMACVerifier(api.ParseResendEnvelope),
	})
	apiHandlers.Configure(event.ProviderTwilio, api.ProviderConfig{
		SignatureHeader: "X-Twilio-Signature",
		Secret:          cfg.Webhooks.TwilioSecret,
		Verify:          api.HMACVerifier(api.ParseTwilioEnvelope),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: api.NewRouter(apiHandlers),
	}

	go func() {
		logger.Info("webhook receiver listening", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "error", err)
	}
	logger.Info("webhook receiver stopped")
}
