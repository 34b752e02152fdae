package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RateWindow keeps per-provider outcome counts in fixed-width time
// buckets covering a sliding window, so an error rate can be computed
// without retaining individual events.
type RateWindow struct {
	mu     sync.Mutex
	span   time.Duration
	bucket time.Duration
	byProv map[string][]rateBucket
	now    func() time.Time
}

type rateBucket struct {
	start  time.Time
	total  int
	failed int
}

func NewRateWindow(span time.Duration) *RateWindow {
	if span <= 0 {
		span = 5 * time.Minute
	}
	return &RateWindow{
		span:   span,
		bucket: span / 10,
		byProv: map[string][]rateBucket{},
		now:    time.Now,
	}
}

// Observe records one processing outcome for a provider.
func (w *RateWindow) Observe(provider string, failed bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	buckets := w.prune(w.byProv[provider], now)

	start := now.Truncate(w.bucket)
	if n := len(buckets); n > 0 && buckets[n-1].start.Equal(start) {
		buckets[n-1].total++
		if failed {
			buckets[n-1].failed++
		}
	} else {
		b := rateBucket{start: start, total: 1}
		if failed {
			b.failed = 1
		}
		buckets = append(buckets, b)
	}
	w.byProv[provider] = buckets
}

// Rate returns the failure fraction over the window and the number of
// observations it is based on.
func (w *RateWindow) Rate(provider string) (float64, int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	buckets := w.prune(w.byProv[provider], w.now())
	w.byProv[provider] = buckets

	total, failed := 0, 0
	for _, b := range buckets {
		total += b.total
		failed += b.failed
	}
	if total == 0 {
		return 0, 0
	}
	return float64(failed) / float64(total), total
}

// Providers lists providers with observations still inside the window.
func (w *RateWindow) Providers() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.byProv))
	for provider, buckets := range w.byProv {
		if len(w.prune(buckets, w.now())) > 0 {
			out = append(out, provider)
		}
	}
	return out
}

func (w *RateWindow) prune(buckets []rateBucket, now time.Time) []rateBucket {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(buckets) && buckets[i].start.Add(w.bucket).Before(cutoff) {
		i++
	}
	return buckets[i:]
}

// Evaluator polls the window and raises an alert signal when a
// provider's error rate crosses the threshold. It takes no automatic
// action beyond the signal; it is decoupled from the processing path.
type Evaluator struct {
	window    *RateWindow
	threshold float64
	minEvents int
	interval  time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	alerting map[string]bool
}

func NewEvaluator(window *RateWindow, threshold float64, interval time.Duration, logger *slog.Logger) *Evaluator {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Evaluator{
		window:    window,
		threshold: threshold,
		minEvents: 10,
		interval:  interval,
		logger:    logger,
		alerting:  map[string]bool{},
	}
}

func (e *Evaluator) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Evaluate(ctx)
		}
	}
}

// Evaluate performs one pass over all providers, flipping the alert
// signal on rate threshold crossings in either direction.
func (e *Evaluator) Evaluate(ctx context.Context) {
	for _, provider := range e.window.Providers() {
		rate, total := e.window.Rate(provider)
		above := total >= e.minEvents && rate > e.threshold

		e.mu.Lock()
		was := e.alerting[provider]
		e.alerting[provider] = above
		e.mu.Unlock()

		if above == was {
			continue
		}

		if above {
			errorRateAlert.WithLabelValues(provider).Set(1)
			e.logger.ErrorContext(ctx, "webhook error rate above threshold",
				"provider", provider,
				"rate", rate,
				"threshold", e.threshold,
				"events", total,
			)
		} else {
			errorRateAlert.WithLabelValues(provider).Set(0)
			e.logger.InfoContext(ctx, "webhook error rate recovered",
				"provider", provider,
				"rate", rate,
				"threshold", e.threshold,
			)
		}
	}
}

// Alerting reports the current alert signal for a provider.
func (e *Evaluator) Alerting(provider string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.alerting[provider]
}
