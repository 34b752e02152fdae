package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_received_total",
		Help: "Inbound webhook notifications received, before dedup",
	}, []string{"provider"})

	eventsDuplicate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_duplicate_total",
		Help: "Notifications rejected as duplicates by the idempotency gate",
	}, []string{"provider"})

	eventOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_event_outcomes_total",
		Help: "Recorded outcomes per provider and ledger status",
	}, []string{"provider", "status"})

	eventFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_event_failures_total",
		Help: "Failed events per provider and error category",
	}, []string{"provider", "category"})

	processingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_processing_duration_seconds",
		Help:    "Handler processing duration per provider",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	slowProcessing = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_slow_processing_total",
		Help: "Events whose processing exceeded the slow threshold",
	}, []string{"provider"})

	auditStreamDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_audit_stream_dropped_total",
		Help: "Audit stream entries dropped because the publish queue was full",
	}, []string{"provider"})

	errorRateAlert = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webhook_error_rate_alert",
		Help: "1 while a provider's rolling error rate is above threshold",
	}, []string{"provider"})
)
