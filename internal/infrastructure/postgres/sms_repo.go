package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/sms"
)

type SMSRepository struct {
	pool *pgxpool.Pool
}

func NewSMSRepository(pool *pgxpool.Pool) *SMSRepository {
	return &SMSRepository{pool: pool}
}

func (r *SMSRepository) GetBySid(ctx context.Context, providerSid string) (*sms.Delivery, error) {
	const sql = `
		SELECT id, tenant_id, provider_sid, recipient, status, created_at, updated_at
		FROM sms_deliveries
		WHERE provider_sid = $1
	`

	var d sms.Delivery
	err := r.pool.QueryRow(ctx, sql, providerSid).Scan(
		&d.ID, &d.TenantID, &d.ProviderSid, &d.Recipient, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sms delivery by sid: %w", err)
	}
	return &d, nil
}

func (r *SMSRepository) UpdateStatus(ctx context.Context, id string, from, to sms.Status) (bool, error) {
	const sql = `
		UPDATE sms_deliveries
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	tag, err := r.pool.Exec(ctx, sql, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update sms delivery status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
