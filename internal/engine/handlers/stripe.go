// Package handlers contains the per-provider event handlers the router
// dispatches to. Each handler validates its own payload shape, runs the
// proposed status move through the state-machine validator, and only then
// mutates the domain resource with a single conditional write.
package handlers

import (
	"context"
	"encoding/json"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/payment"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/statemachine"
)

// StripeHandlers applies Stripe payment lifecycle notifications.
type StripeHandlers struct {
	payments payment.Repository
}

func NewStripeHandlers(payments payment.Repository) *StripeHandlers {
	return &StripeHandlers{payments: payments}
}

func (h *StripeHandlers) Register(r *engine.Router) error {
	intents := map[string]payment.Status{
		"payment_intent.processing":      payment.StatusProcessing,
		"payment_intent.requires_action": payment.StatusRequiresAction,
		"payment_intent.succeeded":       payment.StatusSucceeded,
		"payment_intent.payment_failed":  payment.StatusFailed,
		"payment_intent.canceled":        payment.StatusCanceled,
	}
	for eventType, target := range intents {
		if err := r.Register(event.ProviderStripe, eventType, h.paymentIntent(target)); err != nil {
			return err
		}
	}
	return r.Register(event.ProviderStripe, "charge.refunded", h.chargeRefunded)
}

// paymentIntentPayload is the slice of a payment_intent object we need.
// The ledger payload is the full provider envelope, so handlers unwrap
// data.object here.
type paymentIntentPayload struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (h *StripeHandlers) paymentIntent(target payment.Status) engine.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (engine.Result, error) {
		var env struct {
			Data struct {
				Object paymentIntentPayload `json:"object"`
			} `json:"data"`
		}
		if err := json.Unmarshal(payload, &env); err != nil {
			return engine.Result{}, engine.Validationf("malformed payment_intent payload: %v", err)
		}
		body := env.Data.Object
		if body.ID == "" {
			return engine.Result{}, engine.Validationf("payment_intent payload missing id")
		}

		p, err := h.payments.GetByProviderID(ctx, body.ID)
		if err != nil {
			return engine.Result{}, err
		}
		if p == nil {
			return engine.Result{}, engine.NotFoundf("payment %s not found", body.ID)
		}

		if err := statemachine.Validate(statemachine.KindPayment, string(p.Status), string(target)); err != nil {
			return engine.Result{}, err
		}
		if p.Status == target {
			return engine.Result{Outcome: engine.OutcomeProcessed, Detail: "already " + string(target)}, nil
		}

		updated, err := h.payments.UpdateStatus(ctx, p.ID, p.Status, target)
		if err != nil {
			return engine.Result{}, err
		}
		if !updated {
			return engine.Result{}, engine.WrapStorage("payment status changed concurrently", nil)
		}
		return engine.Result{Outcome: engine.OutcomeProcessed}, nil
	}
}

// chargeRefundedPayload carries refund totals from a charge object.
type chargeRefundedPayload struct {
	PaymentIntent  string `json:"payment_intent"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
}

func (h *StripeHandlers) chargeRefunded(ctx context.Context, payload json.RawMessage) (engine.Result, error) {
	var env struct {
		Data struct {
			Object chargeRefundedPayload `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return engine.Result{}, engine.Validationf("malformed charge payload: %v", err)
	}
	body := env.Data.Object
	if body.PaymentIntent == "" {
		return engine.Result{}, engine.Validationf("charge payload missing payment_intent")
	}
	if body.AmountRefunded <= 0 {
		return engine.Result{}, engine.Validationf("charge payload has no refunded amount")
	}

	p, err := h.payments.GetByProviderID(ctx, body.PaymentIntent)
	if err != nil {
		return engine.Result{}, err
	}
	if p == nil {
		return engine.Result{}, engine.NotFoundf("payment %s not found", body.PaymentIntent)
	}

	target := payment.StatusPartiallyRefunded
	if body.AmountRefunded >= p.Amount {
		target = payment.StatusRefunded
	}

	if err := statemachine.Validate(statemachine.KindPayment, string(p.Status), string(target)); err != nil {
		return engine.Result{}, err
	}
	if p.Status == target && p.AmountRefunded >= body.AmountRefunded {
		return engine.Result{Outcome: engine.OutcomeProcessed, Detail: "refund already recorded"}, nil
	}

	updated, err := h.payments.ApplyRefund(ctx, p.ID, p.Status, target, body.AmountRefunded)
	if err != nil {
		return engine.Result{}, err
	}
	if !updated {
		// The amount guard makes a re-applied refund a clean no-op.
		return engine.Result{Outcome: engine.OutcomeProcessed, Detail: "refund already recorded"}, nil
	}
	return engine.Result{Outcome: engine.OutcomeProcessed}, nil
}
