package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/payment"
)

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) GetByProviderID(ctx context.Context, providerPaymentID string) (*payment.Payment, error) {
	const sql = `
		SELECT id, tenant_id, provider_payment_id, status, amount, amount_refunded, currency, created_at, updated_at
		FROM payments
		WHERE provider_payment_id = $1
	`

	var p payment.Payment
	err := r.pool.QueryRow(ctx, sql, providerPaymentID).Scan(
		&p.ID, &p.TenantID, &p.ProviderPaymentID, &p.Status,
		&p.Amount, &p.AmountRefunded, &p.Currency, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment by provider id: %w", err)
	}
	return &p, nil
}

// UpdateStatus is a single conditional write: the status guard makes the
// transition atomic against concurrent deliveries.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, from, to payment.Status) (bool, error) {
	const sql = `
		UPDATE payments
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`
	tag, err := r.pool.Exec(ctx, sql, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update payment status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ApplyRefund moves the status and the refunded total together. The
// amount guard turns a re-delivered refund notification into a no-op.
func (r *PaymentRepository) ApplyRefund(ctx context.Context, id string, from, to payment.Status, amountRefunded int64) (bool, error) {
	const sql = `
		UPDATE payments
		SET status = $3, amount_refunded = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2 AND amount_refunded < $4
	`
	tag, err := r.pool.Exec(ctx, sql, id, from, to, amountRefunded)
	if err != nil {
		return false, fmt.Errorf("apply payment refund: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
