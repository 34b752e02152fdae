package handlers

import (
	"context"
	"encoding/json"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/email"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/statemachine"
)

// ResendHandlers applies email delivery lifecycle notifications.
type ResendHandlers struct {
	emails email.Repository
}

func NewResendHandlers(emails email.Repository) *ResendHandlers {
	return &ResendHandlers{emails: emails}
}

func (h *ResendHandlers) Register(r *engine.Router) error {
	targets := map[string]email.Status{
		"email.sent":             email.StatusSent,
		"email.delivered":        email.StatusDelivered,
		"email.delivery_delayed": email.StatusDelayed,
		"email.bounced":          email.StatusBounced,
		"email.opened":           email.StatusOpened,
		"email.clicked":          email.StatusClicked,
		"email.complained":       email.StatusComplained,
		"email.failed":           email.StatusFailed,
	}
	for eventType, target := range targets {
		if err := r.Register(event.ProviderResend, eventType, h.emailEvent(target)); err != nil {
			return err
		}
	}
	return nil
}

// emailEventPayload is the slice of Resend's data object we need. The
// ledger payload is the full provider envelope, so the handler unwraps
// data here.
type emailEventPayload struct {
	EmailID string `json:"email_id"`
}

func (h *ResendHandlers) emailEvent(target email.Status) engine.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (engine.Result, error) {
		var env struct {
			Data emailEventPayload `json:"data"`
		}
		if err := json.Unmarshal(payload, &env); err != nil {
			return engine.Result{}, engine.Validationf("malformed email payload: %v", err)
		}
		body := env.Data
		if body.EmailID == "" {
			return engine.Result{}, engine.Validationf("email payload missing email_id")
		}

		d, err := h.emails.GetByProviderID(ctx, body.EmailID)
		if err != nil {
			return engine.Result{}, err
		}
		if d == nil {
			return engine.Result{}, engine.NotFoundf("email delivery %s not found", body.EmailID)
		}

		if err := statemachine.Validate(statemachine.KindEmail, string(d.Status), string(target)); err != nil {
			return engine.Result{}, err
		}
		if d.Status == target {
			// Same terminal notification delivered twice; nothing to do
			// and nothing downstream fires again.
			return engine.Result{Outcome: engine.OutcomeProcessed, Detail: "already " + string(target)}, nil
		}

		updated, err := h.emails.UpdateStatus(ctx, d.ID, d.Status, target)
		if err != nil {
			return engine.Result{}, err
		}
		if !updated {
			return engine.Result{}, engine.WrapStorage("email status changed concurrently", nil)
		}
		return engine.Result{Outcome: engine.OutcomeProcessed}, nil
	}
}
