package email

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusSent       Status = "sent"
	StatusDelivered  Status = "delivered"
	StatusDelayed    Status = "delayed"
	StatusBounced    Status = "bounced"
	StatusOpened     Status = "opened"
	StatusClicked    Status = "clicked"
	StatusComplained Status = "complained"
	StatusFailed     Status = "failed"
)

// Delivery tracks one outbound email (invoice, reminder, client update)
// sent on behalf of a tenant.
type Delivery struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	ProviderEmailID string    `json:"provider_email_id"`
	Recipient       string    `json:"recipient"`
	Subject         string    `json:"subject"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Repository interface {
	GetByProviderID(ctx context.Context, providerEmailID string) (*Delivery, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) (bool, error)
}
