package handlers

import (
	"context"
	"encoding/json"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/sms"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/statemachine"
)

// TwilioHandlers applies SMS status callbacks.
type TwilioHandlers struct {
	messages sms.Repository
}

func NewTwilioHandlers(messages sms.Repository) *TwilioHandlers {
	return &TwilioHandlers{messages: messages}
}

func (h *TwilioHandlers) Register(r *engine.Router) error {
	targets := map[string]sms.Status{
		"sms.queued":      sms.StatusQueued,
		"sms.sending":     sms.StatusSending,
		"sms.sent":        sms.StatusSent,
		"sms.delivered":   sms.StatusDelivered,
		"sms.undelivered": sms.StatusUndelivered,
		"sms.failed":      sms.StatusFailed,
	}
	for eventType, target := range targets {
		if err := r.Register(event.ProviderTwilio, eventType, h.statusCallback(target)); err != nil {
			return err
		}
	}
	return nil
}

type smsCallbackPayload struct {
	MessageSid string `json:"message_sid"`
}

func (h *TwilioHandlers) statusCallback(target sms.Status) engine.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (engine.Result, error) {
		var body smsCallbackPayload
		if err := json.Unmarshal(payload, &body); err != nil {
			return engine.Result{}, engine.Validationf("malformed sms payload: %v", err)
		}
		if body.MessageSid == "" {
			return engine.Result{}, engine.Validationf("sms payload missing message_sid")
		}

		d, err := h.messages.GetBySid(ctx, body.MessageSid)
		if err != nil {
			return engine.Result{}, err
		}
		if d == nil {
			return engine.Result{}, engine.NotFoundf("sms delivery %s not found", body.MessageSid)
		}

		if err := statemachine.Validate(statemachine.KindSMS, string(d.Status), string(target)); err != nil {
			return engine.Result{}, err
		}
		if d.Status == target {
			return engine.Result{Outcome: engine.OutcomeProcessed, Detail: "already " + string(target)}, nil
		}

		updated, err := h.messages.UpdateStatus(ctx, d.ID, d.Status, target)
		if err != nil {
			return engine.Result{}, err
		}
		if !updated {
			return engine.Result{}, engine.WrapStorage("sms status changed concurrently", nil)
		}
		return engine.Result{Outcome: engine.OutcomeProcessed}, nil
	}
}
