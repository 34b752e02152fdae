// Package audit is the structured record of every event lifecycle
// transition: slog entries, prometheus metrics, an optional kafka audit
// stream, slow-call flagging, and the rolling error-rate signal.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine"
)

// StreamPublisher is the outbound audit stream, satisfied by the kafka
// producer. Publishing is best-effort and never blocks processing.
type StreamPublisher interface {
	SendMessage(ctx context.Context, key, value []byte) error
}

// Entry is the envelope published to the audit stream.
type Entry struct {
	Stage      string          `json:"stage"`
	Provider   string          `json:"provider"`
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	RecordID   string          `json:"record_id,omitempty"`
	Status     string          `json:"status,omitempty"`
	Category   string          `json:"category,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	At         time.Time       `json:"at"`
}

// Sink implements engine.Auditor.
type Sink struct {
	logger        *slog.Logger
	stream        StreamPublisher
	window        *RateWindow
	slowThreshold time.Duration
	queue         chan streamMessage
}

type streamMessage struct {
	key   []byte
	value []byte
}

// streamQueueDepth bounds memory held for a slow or down broker; entries
// past it are dropped and counted, never blocking the processing path.
const streamQueueDepth = 256

type SinkOption func(*Sink)

func WithStream(p StreamPublisher) SinkOption {
	return func(s *Sink) { s.stream = p }
}

func WithRateWindow(w *RateWindow) SinkOption {
	return func(s *Sink) { s.window = w }
}

func WithSlowThreshold(d time.Duration) SinkOption {
	return func(s *Sink) { s.slowThreshold = d }
}

func NewSink(logger *slog.Logger, opts ...SinkOption) *Sink {
	s := &Sink{
		logger:        logger,
		slowThreshold: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stream != nil {
		s.queue = make(chan streamMessage, streamQueueDepth)
		go s.sender()
	}
	return s
}

// sender is the single goroutine draining the stream queue, so a slow
// broker backs up into the bounded queue instead of spawning goroutines.
func (s *Sink) sender() {
	for msg := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.stream.SendMessage(ctx, msg.key, msg.value); err != nil {
			s.logger.Error("publish audit entry", "error", err)
		}
		cancel()
	}
}

func (s *Sink) Received(ctx context.Context, in engine.Inbound) {
	eventsReceived.WithLabelValues(string(in.Provider)).Inc()
	s.logger.InfoContext(ctx, "webhook received",
		"provider", in.Provider,
		"event_id", in.EventID,
		"event_type", in.EventType,
		"source_ip", in.Provenance.SourceIP,
	)
	s.publish(ctx, in, Entry{Stage: "received", Payload: Redact(in.Payload)})
}

func (s *Sink) Claimed(ctx context.Context, in engine.Inbound, recordID string) {
	s.logger.InfoContext(ctx, "webhook claimed",
		"provider", in.Provider,
		"event_id", in.EventID,
		"event_type", in.EventType,
		"record_id", recordID,
	)
	s.publish(ctx, in, Entry{Stage: "claimed", RecordID: recordID})
}

func (s *Sink) Duplicate(ctx context.Context, in engine.Inbound, existing event.Status) {
	eventsDuplicate.WithLabelValues(string(in.Provider)).Inc()
	s.logger.InfoContext(ctx, "webhook duplicate",
		"provider", in.Provider,
		"event_id", in.EventID,
		"event_type", in.EventType,
		"existing_status", existing,
	)
	s.publish(ctx, in, Entry{Stage: "duplicate", Status: string(existing)})
}

func (s *Sink) Outcome(ctx context.Context, in engine.Inbound, recordID string, status event.Status, category engine.Category, err error, duration time.Duration) {
	provider := string(in.Provider)
	eventOutcomes.WithLabelValues(provider, string(status)).Inc()
	processingDuration.WithLabelValues(provider).Observe(duration.Seconds())

	if s.window != nil {
		s.window.Observe(provider, status == event.StatusFailed)
	}

	attrs := []any{
		"provider", in.Provider,
		"event_id", in.EventID,
		"event_type", in.EventType,
		"record_id", recordID,
		"status", status,
		"duration_ms", duration.Milliseconds(),
	}

	entry := Entry{
		Stage:      "outcome",
		RecordID:   recordID,
		Status:     string(status),
		DurationMs: duration.Milliseconds(),
	}

	if err != nil {
		eventFailures.WithLabelValues(provider, string(category)).Inc()
		attrs = append(attrs, "category", category, "error", err.Error())
		entry.Category = string(category)
		entry.Error = err.Error()
		s.logger.Log(ctx, engine.Severity(category), "webhook processing failed", attrs...)
	} else {
		s.logger.InfoContext(ctx, "webhook processed", attrs...)
	}

	if s.slowThreshold > 0 && duration > s.slowThreshold {
		slowProcessing.WithLabelValues(provider).Inc()
		s.logger.WarnContext(ctx, "webhook processing slow",
			"provider", in.Provider,
			"event_id", in.EventID,
			"duration_ms", duration.Milliseconds(),
			"threshold_ms", s.slowThreshold.Milliseconds(),
		)
	}

	s.publish(ctx, in, entry)
}

// publish sends an entry to the audit stream without blocking the
// processing path.
func (s *Sink) publish(ctx context.Context, in engine.Inbound, entry Entry) {
	if s.stream == nil {
		return
	}

	entry.Provider = string(in.Provider)
	entry.EventID = in.EventID
	entry.EventType = in.EventType
	entry.At = time.Now().UTC()

	value, err := json.Marshal(entry)
	if err != nil {
		s.logger.ErrorContext(ctx, "marshal audit entry", "error", err)
		return
	}
	key := []byte(entry.Provider + ":" + entry.EventID)

	select {
	case s.queue <- streamMessage{key: key, value: value}:
	default:
		auditStreamDropped.WithLabelValues(entry.Provider).Inc()
		s.logger.WarnContext(ctx, "audit stream queue full, entry dropped",
			"provider", entry.Provider,
			"event_id", entry.EventID,
		)
	}
}
