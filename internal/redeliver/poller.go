// Package redeliver is the internal retry job: it periodically re-claims
// failed ledger records whose error category is retryable and pushes them
// back through the engine's dispatch path.
package redeliver

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine"
)

var (
	eventsRedelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redeliver_events_total",
		Help: "The total number of failed events re-run by the retry worker",
	})
	redeliverFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redeliver_failures_total",
		Help: "The total number of re-runs that failed again",
	})
)

// Ledger is the slice of the event repository the poller needs.
type Ledger interface {
	ClaimRetryBatch(ctx context.Context, limit, maxRetries int, categories []string) ([]*event.Record, error)
}

type Poller struct {
	ledger     Ledger
	pipeline   *engine.Pipeline
	logger     *slog.Logger
	interval   time.Duration
	batchSize  int
	maxRetries int
}

func NewPoller(ledger Ledger, pipeline *engine.Pipeline, logger *slog.Logger, interval time.Duration, batchSize, maxRetries int) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	if maxRetries <= 0 {
		maxRetries = 8
	}
	return &Poller{
		ledger:     ledger,
		pipeline:   pipeline,
		logger:     logger,
		interval:   interval,
		batchSize:  batchSize,
		maxRetries: maxRetries,
	}
}

func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("redeliver poller started",
		"interval", p.interval.String(),
		"batch_size", p.batchSize,
		"max_retries", p.maxRetries,
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				p.logger.Error("redeliver batch failed", "error", err)
			}
		}
	}
}

func (p *Poller) processBatch(ctx context.Context) error {
	records, err := p.ledger.ClaimRetryBatch(ctx, p.batchSize, p.maxRetries, engine.RetryableCategories())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	p.logger.Info("redelivering failed events", "count", len(records))

	for _, rec := range records {
		resp := p.pipeline.Redeliver(ctx, rec)
		eventsRedelivered.Inc()

		if resp.Outcome == engine.ResponseFailed {
			redeliverFailures.Inc()
			p.logger.Warn("redelivery failed again",
				"provider", rec.Provider,
				"event_id", rec.EventID,
				"event_type", rec.EventType,
				"retry_count", rec.RetryCount,
				"category", resp.Category,
			)
			continue
		}

		p.logger.Info("redelivery succeeded",
			"provider", rec.Provider,
			"event_id", rec.EventID,
			"event_type", rec.EventType,
			"outcome", resp.Outcome,
		)
	}

	return nil
}
