package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
)

// EventRepository is the inbound event ledger. Claim is the only path
// that inserts rows; the Mark methods are the only paths that update
// them. Both sides are single conditional statements so concurrent
// workers coordinate through the database, not through process memory.
type EventRepository struct {
	pool *pgxpool.Pool
	txm  Transactor
}

func NewEventRepository(pool *pgxpool.Pool, txm Transactor) *EventRepository {
	return &EventRepository{pool: pool, txm: txm}
}

// Claim inserts a pending record for (provider, eventID) or reports the
// existing one. The ON CONFLICT insert is the atomic first-sighting
// decision; the follow-up select only reads what a concurrent claimer
// already committed.
func (r *EventRepository) Claim(ctx context.Context, provider event.Provider, eventID, eventType string, payload json.RawMessage, prov event.Provenance) (event.ClaimResult, error) {
	headers, err := json.Marshal(prov.Headers)
	if err != nil {
		return event.ClaimResult{}, fmt.Errorf("marshal provenance headers: %w", err)
	}

	const insertSQL = `
		INSERT INTO inbound_events (
			id, provider, event_id, event_type, payload, status,
			http_headers, ip_address, user_agent, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7, $8, NOW(), NOW())
		ON CONFLICT (provider, event_id) DO NOTHING
	`
	const fetchSQL = `
		SELECT id, status
		FROM inbound_events
		WHERE provider = $1 AND event_id = $2
	`

	id := uuid.New().String()
	var result event.ClaimResult

	err = r.txm.WithinTransaction(ctx, func(txCtx context.Context) error {
		tx := GetTx(txCtx)

		tag, err := tx.Exec(txCtx, insertSQL,
			id, provider, eventID, eventType, payload,
			headers, nullIfEmpty(prov.SourceIP), nullIfEmpty(prov.UserAgent))
		if err != nil {
			return fmt.Errorf("insert inbound event: %w", err)
		}

		if tag.RowsAffected() > 0 {
			result = event.ClaimResult{RecordID: id}
			return nil
		}

		var existingID string
		var existingStatus event.Status
		if err := tx.QueryRow(txCtx, fetchSQL, provider, eventID).Scan(&existingID, &existingStatus); err != nil {
			return fmt.Errorf("fetch existing inbound event: %w", err)
		}
		result = event.ClaimResult{Duplicate: true, RecordID: existingID, ExistingStatus: existingStatus}
		return nil
	})
	if err != nil {
		return event.ClaimResult{}, fmt.Errorf("claim inbound event: %w", err)
	}

	return result, nil
}

// MarkProcessing flips a pending or failed record to processing. At most
// one concurrent caller observes true.
func (r *EventRepository) MarkProcessing(ctx context.Context, recordID string) (bool, error) {
	const sql = `
		UPDATE inbound_events
		SET status = 'processing', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'failed')
	`
	tag, err := r.exec(ctx, sql, recordID)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *EventRepository) MarkProcessed(ctx context.Context, recordID string, duration time.Duration) error {
	const sql = `
		UPDATE inbound_events
		SET status = 'processed',
		    processed_at = NOW(),
		    processing_duration_ms = $2,
		    error_message = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	tag, err := r.exec(ctx, sql, recordID, duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark processed: record %s not in processing status", recordID)
	}
	return nil
}

func (r *EventRepository) MarkFailed(ctx context.Context, recordID string, errMsg, category string, duration time.Duration) error {
	const sql = `
		UPDATE inbound_events
		SET status = 'failed',
		    error_message = $2,
		    error_category = $3,
		    processing_duration_ms = $4,
		    retry_count = retry_count + 1,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	tag, err := r.exec(ctx, sql, recordID, errMsg, category, duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark failed: record %s not in processing status", recordID)
	}
	return nil
}

func (r *EventRepository) MarkSkipped(ctx context.Context, recordID string, duration time.Duration) error {
	const sql = `
		UPDATE inbound_events
		SET status = 'skipped',
		    processed_at = NOW(),
		    processing_duration_ms = $2,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`
	tag, err := r.exec(ctx, sql, recordID, duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("mark skipped: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark skipped: record %s not in processing status", recordID)
	}
	return nil
}

// ClaimRetryBatch atomically flips up to limit failed records with a
// retryable error category back to processing and returns them for
// re-dispatch. SKIP LOCKED keeps concurrent workers off each other's
// batches.
func (r *EventRepository) ClaimRetryBatch(ctx context.Context, limit, maxRetries int, categories []string) ([]*event.Record, error) {
	const sql = `
		WITH claimed AS (
			SELECT id
			FROM inbound_events
			WHERE status = 'failed'
			  AND retry_count < $2
			  AND error_category = ANY($3)
			ORDER BY updated_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE inbound_events e
		SET status = 'processing', updated_at = NOW()
		FROM claimed c
		WHERE e.id = c.id
		RETURNING e.id, e.provider, e.event_id, e.event_type, e.payload, e.retry_count, e.created_at, e.updated_at
	`

	rows, err := r.pool.Query(ctx, sql, limit, maxRetries, categories)
	if err != nil {
		return nil, fmt.Errorf("claim retry batch: %w", err)
	}
	defer rows.Close()

	var records []*event.Record
	for rows.Next() {
		rec := &event.Record{Status: event.StatusProcessing}
		if err := rows.Scan(&rec.ID, &rec.Provider, &rec.EventID, &rec.EventType, &rec.Payload, &rec.RetryCount, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan retry record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read retry batch: %w", err)
	}

	return records, nil
}

// Get returns the ledger row for (provider, eventID), or nil if absent.
func (r *EventRepository) Get(ctx context.Context, provider event.Provider, eventID string) (*event.Record, error) {
	const sql = `
		SELECT id, provider, event_id, event_type, payload, status,
		       processed_at, processing_duration_ms,
		       COALESCE(error_message, ''), COALESCE(error_category, ''),
		       retry_count, COALESCE(ip_address::text, ''), COALESCE(user_agent, ''),
		       created_at, updated_at
		FROM inbound_events
		WHERE provider = $1 AND event_id = $2
	`

	rec := &event.Record{}
	err := r.pool.QueryRow(ctx, sql, provider, eventID).Scan(
		&rec.ID, &rec.Provider, &rec.EventID, &rec.EventType, &rec.Payload, &rec.Status,
		&rec.ProcessedAt, &rec.ProcessingDurationMs,
		&rec.ErrorMessage, &rec.ErrorCategory,
		&rec.RetryCount, &rec.IPAddress, &rec.UserAgent,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get inbound event: %w", err)
	}
	return rec, nil
}

func (r *EventRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	var executor interface {
		Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	} = r.pool

	if tx := GetTx(ctx); tx != nil {
		executor = tx
	}
	return executor.Exec(ctx, sql, args...)
}
