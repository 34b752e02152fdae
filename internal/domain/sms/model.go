package sms

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusQueued      Status = "queued"
	StatusSending     Status = "sending"
	StatusSent        Status = "sent"
	StatusDelivered   Status = "delivered"
	StatusUndelivered Status = "undelivered"
	StatusFailed      Status = "failed"
)

// Delivery tracks one outbound SMS (appointment reminders, mostly).
type Delivery struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	ProviderSid string    `json:"provider_sid"`
	Recipient   string    `json:"recipient"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Repository interface {
	GetBySid(ctx context.Context, providerSid string) (*Delivery, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) (bool, error)
}
