package api

import (
	"encoding/json"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine"
)

// ParseStripeEnvelope reads Stripe's event envelope. The payload is the
// full verified body, so the ledger retains everything the provider sent
// for audit and replay; handlers unwrap data.object themselves.
func ParseStripeEnvelope(raw []byte) (engine.Inbound, error) {
	var env struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return engine.Inbound{}, engine.Validationf("malformed stripe envelope: %v", err)
	}
	if env.ID == "" {
		return engine.Inbound{}, engine.Validationf("stripe envelope missing id")
	}
	if env.Type == "" {
		return engine.Inbound{}, engine.Validationf("stripe envelope missing type")
	}
	return engine.Inbound{
		Provider:  event.ProviderStripe,
		EventID:   env.ID,
		EventType: env.Type,
		Payload:   raw,
	}, nil
}

// ParseResendEnvelope reads Resend's event envelope. The payload is the
// full verified body, same as the other providers.
func ParseResendEnvelope(raw []byte) (engine.Inbound, error) {
	var env struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return engine.Inbound{}, engine.Validationf("malformed resend envelope: %v", err)
	}
	if env.ID == "" {
		return engine.Inbound{}, engine.Validationf("resend envelope missing id")
	}
	if env.Type == "" {
		return engine.Inbound{}, engine.Validationf("resend envelope missing type")
	}
	return engine.Inbound{
		Provider:  event.ProviderResend,
		EventID:   env.ID,
		EventType: env.Type,
		Payload:   raw,
	}, nil
}

// ParseTwilioEnvelope reads a Twilio status callback. Twilio does not
// assign a distinct id per callback, so the idempotency key is derived
// from (message sid, reported status), the pair that makes a callback
// logically unique.
func ParseTwilioEnvelope(raw []byte) (engine.Inbound, error) {
	var env struct {
		MessageSid    string `json:"message_sid"`
		MessageStatus string `json:"message_status"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return engine.Inbound{}, engine.Validationf("malformed twilio callback: %v", err)
	}
	if env.MessageSid == "" {
		return engine.Inbound{}, engine.Validationf("twilio callback missing message_sid")
	}
	if env.MessageStatus == "" {
		return engine.Inbound{}, engine.Validationf("twilio callback missing message_status")
	}
	return engine.Inbound{
		Provider:  event.ProviderTwilio,
		EventID:   env.MessageSid + ":" + env.MessageStatus,
		EventType: "sms." + env.MessageStatus,
		Payload:   raw,
	}, nil
}
