package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/email"
)

type EmailRepository struct {
	pool *pgxpool.Pool
}

func NewEmailRepository(pool *pgxpool.Pool) *EmailRepository {
	return &EmailRepository{pool: pool}
}

func (r *EmailRepository) GetByProviderID(ctx context.Context, providerEmailID string) (*email.Delivery, error) {
	const sql = `
		SELECT id, tenant_id, provider_email_id, recipient, subject, status, created_at, updated_at
		FROM email_deliveries
		WHERE provider_email_id = $1
	`

	var d email.Delivery
	err := r.pool.QueryRow(ctx, sql, providerEmailID).Scan(
		&d.ID, &d.TenantID, &d.ProviderEmailID, &d.Recipient, &d.Subject, &d.Status, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get email delivery by provider id: %w", err)
	}
	return &d, nil
}

func (r *EmailRepository) UpdateStatus(ctx context.Context, id string, from, to email.Status) (bool, error) {
	const sql = `
		UPDATE email_deliveries
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	tag, err := r.pool.Exec(ctx, sql, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update email delivery status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
