package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func frozenWindow(span time.Duration) (*RateWindow, *time.Time) {
	w := NewRateWindow(span)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }
	return w, &now
}

func TestRateWindowCountsWithinSpan(t *testing.T) {
	w, _ := frozenWindow(5 * time.Minute)

	for i := 0; i < 8; i++ {
		w.Observe("stripe", false)
	}
	w.Observe("stripe", true)
	w.Observe("stripe", true)

	rate, total := w.Rate("stripe")
	if total != 10 {
		t.Fatalf("total = %d, want 10", total)
	}
	if rate != 0.2 {
		t.Fatalf("rate = %v, want 0.2", rate)
	}
}

func TestRateWindowExpiresOldBuckets(t *testing.T) {
	w, now := frozenWindow(5 * time.Minute)

	w.Observe("stripe", true)
	w.Observe("stripe", true)

	*now = now.Add(6 * time.Minute)
	w.Observe("stripe", false)

	rate, total := w.Rate("stripe")
	if total != 1 {
		t.Fatalf("total = %d, want 1 after expiry", total)
	}
	if rate != 0 {
		t.Fatalf("rate = %v, want 0", rate)
	}
}

func TestRateWindowIsolatesProviders(t *testing.T) {
	w, _ := frozenWindow(5 * time.Minute)

	w.Observe("stripe", true)
	w.Observe("resend", false)

	if rate, _ := w.Rate("resend"); rate != 0 {
		t.Fatalf("resend rate = %v, want 0", rate)
	}
	if rate, _ := w.Rate("stripe"); rate != 1 {
		t.Fatalf("stripe rate = %v, want 1", rate)
	}
	if got := len(w.Providers()); got != 2 {
		t.Fatalf("providers = %d, want 2", got)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEvaluatorAlertsAboveThreshold(t *testing.T) {
	w, _ := frozenWindow(5 * time.Minute)
	e := NewEvaluator(w, 0.25, time.Second, discardLogger())

	for i := 0; i < 6; i++ {
		w.Observe("stripe", false)
	}
	for i := 0; i < 6; i++ {
		w.Observe("stripe", true)
	}

	e.Evaluate(context.Background())
	if !e.Alerting("stripe") {
		t.Fatal("50% failure rate over 12 events did not alert")
	}
}

func TestEvaluatorNeedsMinimumVolume(t *testing.T) {
	w, _ := frozenWindow(5 * time.Minute)
	e := NewEvaluator(w, 0.25, time.Second, discardLogger())

	// All failures, but too few events to be meaningful.
	for i := 0; i < 5; i++ {
		w.Observe("stripe", true)
	}

	e.Evaluate(context.Background())
	if e.Alerting("stripe") {
		t.Fatal("alerted on fewer events than the minimum")
	}
}

func TestEvaluatorRecovers(t *testing.T) {
	w, now := frozenWindow(5 * time.Minute)
	e := NewEvaluator(w, 0.25, time.Second, discardLogger())

	for i := 0; i < 12; i++ {
		w.Observe("stripe", true)
	}
	e.Evaluate(context.Background())
	if !e.Alerting("stripe") {
		t.Fatal("did not alert")
	}

	*now = now.Add(6 * time.Minute)
	w.Observe("stripe", false)
	e.Evaluate(context.Background())
	if e.Alerting("stripe") {
		t.Fatal("alert did not clear after the window rolled over")
	}
}
