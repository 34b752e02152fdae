package event

import (
	"context"
	"encoding/json"
	"time"
)

// Status is the ledger status of an inbound event record.
// Lifecycle: pending -> processing -> {processed, failed, skipped}.
// A failed record may move back to processing for a retry attempt;
// processed and skipped are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Provider identifies which external system sent a notification.
type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderResend Provider = "resend"
	ProviderTwilio Provider = "twilio"
)

// Provenance is write-once request metadata captured at receive time.
type Provenance struct {
	Headers   map[string]string `json:"headers,omitempty"`
	SourceIP  string            `json:"source_ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
}

// Record is one row of the inbound event ledger. One record exists per
// unique (provider, event_id) pair; rows are never deleted.
type Record struct {
	ID                   string            `json:"id"`
	Provider             Provider          `json:"provider"`
	EventID              string            `json:"event_id"`
	EventType            string            `json:"event_type"`
	Payload              json.RawMessage   `json:"payload"`
	Status               Status            `json:"status"`
	ProcessedAt          *time.Time        `json:"processed_at,omitempty"`
	ProcessingDurationMs *int64            `json:"processing_duration_ms,omitempty"`
	ErrorMessage         string            `json:"error_message,omitempty"`
	ErrorCategory        string            `json:"error_category,omitempty"`
	RetryCount           int               `json:"retry_count"`
	HTTPHeaders          map[string]string `json:"http_headers,omitempty"`
	IPAddress            string            `json:"ip_address,omitempty"`
	UserAgent            string            `json:"user_agent,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// ClaimResult reports the outcome of an idempotency claim.
type ClaimResult struct {
	Duplicate      bool
	RecordID       string
	ExistingStatus Status
}

// Ledger is the idempotency gate plus outcome recorder over the event
// record table. Claim is the only code path that creates rows; the Mark
// methods are the only paths that mutate them.
type Ledger interface {
	// Claim atomically decides whether (provider, eventID) has been seen
	// before, inserting a pending record on first sighting.
	Claim(ctx context.Context, provider Provider, eventID, eventType string, payload json.RawMessage, prov Provenance) (ClaimResult, error)

	// MarkProcessing durably flips a pending or failed record to
	// processing before any domain mutation is attempted. A false return
	// means the record was not in a claimable state (a concurrent caller
	// won the flip, or the record already reached a terminal status).
	MarkProcessing(ctx context.Context, recordID string) (bool, error)

	MarkProcessed(ctx context.Context, recordID string, duration time.Duration) error
	MarkFailed(ctx context.Context, recordID string, errMsg, category string, duration time.Duration) error
	MarkSkipped(ctx context.Context, recordID string, duration time.Duration) error
}
