package payment

import (
	"context"
	"time"
)

// Status values for a payment. Legal moves between them are enforced by
// the statemachine package before any write.
type Status string

const (
	StatusPending           Status = "pending"
	StatusProcessing        Status = "processing"
	StatusRequiresAction    Status = "requires_action"
	StatusSucceeded         Status = "succeeded"
	StatusFailed            Status = "failed"
	StatusCanceled          Status = "canceled"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// Payment is the dashboard-side record of a provider payment. Amounts are
// in the smallest currency unit.
type Payment struct {
	ID                string    `json:"id"`
	TenantID          string    `json:"tenant_id"`
	ProviderPaymentID string    `json:"provider_payment_id"`
	Status            Status    `json:"status"`
	Amount            int64     `json:"amount"`
	AmountRefunded    int64     `json:"amount_refunded"`
	Currency          string    `json:"currency"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Repository is the mutation surface webhook handlers use. Status writes
// are single conditional statements; a false return means the stored
// status no longer matches the expected one.
type Repository interface {
	GetByProviderID(ctx context.Context, providerPaymentID string) (*Payment, error)

	// UpdateStatus moves a payment from one status to another. Returns
	// false when zero rows matched (concurrent modification).
	UpdateStatus(ctx context.Context, id string, from, to Status) (bool, error)

	// ApplyRefund records a refund total alongside the status move. The
	// amount guard makes re-applying the same refund notification a no-op.
	ApplyRefund(ctx context.Context, id string, from, to Status, amountRefunded int64) (bool, error)
}
