package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/email"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/payment"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/sms"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine"
)

type fakePaymentRepo struct {
	byProviderID map[string]*payment.Payment
	updates      int
}

func (r *fakePaymentRepo) GetByProviderID(ctx context.Context, providerPaymentID string) (*payment.Payment, error) {
	p, ok := r.byProviderID[providerPaymentID]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (r *fakePaymentRepo) UpdateStatus(ctx context.Context, id string, from, to payment.Status) (bool, error) {
	for _, p := range r.byProviderID {
		if p.ID == id && p.Status == from {
			p.Status = to
			r.updates++
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePaymentRepo) ApplyRefund(ctx context.Context, id string, from, to payment.Status, amountRefunded int64) (bool, error) {
	for _, p := range r.byProviderID {
		if p.ID == id && p.Status == from && p.AmountRefunded < amountRefunded {
			p.Status = to
			p.AmountRefunded = amountRefunded
			r.updates++
			return true, nil
		}
	}
	return false, nil
}

func stripeRouter(t *testing.T, repo *fakePaymentRepo) *engine.Router {
	t.Helper()
	r := engine.NewRouter()
	if err := NewStripeHandlers(repo).Register(r); err != nil {
		t.Fatalf("register stripe handlers: %v", err)
	}
	return r
}

func TestPaymentIntentSucceededMovesStatus(t *testing.T) {
	repo := &fakePaymentRepo{byProviderID: map[string]*payment.Payment{
		"pi_1": {ID: "p1", ProviderPaymentID: "pi_1", Status: payment.StatusProcessing, Amount: 5000},
	}}
	r := stripeRouter(t, repo)

	payload := json.RawMessage(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"api_version": "2024-06-20",
		"created": 1719846000,
		"livemode": true,
		"data": {"object": {"id": "pi_1", "amount": 5000, "currency": "usd"}}
	}`)
	res, err := r.Dispatch(context.Background(), event.ProviderStripe, "payment_intent.succeeded", payload)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Outcome != engine.OutcomeProcessed {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if got := repo.byProviderID["pi_1"].Status; got != payment.StatusSucceeded {
		t.Fatalf("payment status = %s, want succeeded", got)
	}
}

func TestPaymentRegressionRejectedWithoutMutation(t *testing.T) {
	repo := &fakePaymentRepo{byProviderID: map[string]*payment.Payment{
		"pi_1": {ID: "p1", ProviderPaymentID: "pi_1", Status: payment.StatusSucceeded, Amount: 5000},
	}}
	r := stripeRouter(t, repo)

	// A stale processing notification arriving after succeeded must not
	// roll the payment back.
	_, err := r.Dispatch(context.Background(), event.ProviderStripe, "payment_intent.processing", json.RawMessage(`{"data":{"object":{"id":"pi_1"}}}`))
	if err == nil {
		t.Fatal("regression accepted")
	}
	if got := engine.Classify(err); got != engine.CategoryInvalidTransition {
		t.Fatalf("category = %q, want invalid_transition", got)
	}
	if repo.byProviderID["pi_1"].Status != payment.StatusSucceeded {
		t.Fatal("payment mutated despite rejected transition")
	}
	if repo.updates != 0 {
		t.Fatalf("updates = %d, want 0", repo.updates)
	}
}

func TestPaymentIntentUnknownPaymentNotFound(t *testing.T) {
	r := stripeRouter(t, &fakePaymentRepo{byProviderID: map[string]*payment.Payment{}})

	_, err := r.Dispatch(context.Background(), event.ProviderStripe, "payment_intent.succeeded", json.RawMessage(`{"data":{"object":{"id":"pi_missing"}}}`))
	if err == nil {
		t.Fatal("missing payment accepted")
	}
	if got := engine.Classify(err); got != engine.CategoryNotFound {
		t.Fatalf("category = %q, want not_found", got)
	}
}

func TestPaymentIntentMalformedPayload(t *testing.T) {
	r := stripeRouter(t, &fakePaymentRepo{byProviderID: map[string]*payment.Payment{}})

	cases := []json.RawMessage{
		json.RawMessage(`{not json`),
		json.RawMessage(`{"data":{"object":{"amount":5000}}}`),
	}
	for _, payload := range cases {
		_, err := r.Dispatch(context.Background(), event.ProviderStripe, "payment_intent.succeeded", payload)
		if err == nil {
			t.Fatalf("payload %s accepted", payload)
		}
		if got := engine.Classify(err); got != engine.CategoryValidation {
			t.Fatalf("payload %s: category = %q, want validation", payload, got)
		}
	}
}

func TestChargeRefundedFullAndPartial(t *testing.T) {
	repo := &fakePaymentRepo{byProviderID: map[string]*payment.Payment{
		"pi_1": {ID: "p1", ProviderPaymentID: "pi_1", Status: payment.StatusSucceeded, Amount: 5000},
	}}
	r := stripeRouter(t, repo)

	res, err := r.Dispatch(context.Background(), event.ProviderStripe, "charge.refunded", json.RawMessage(`{"data":{"object":{"payment_intent":"pi_1","amount":5000,"amount_refunded":2000}}}`))
	if err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if res.Outcome != engine.OutcomeProcessed {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if repo.byProviderID["pi_1"].Status != payment.StatusPartiallyRefunded {
		t.Fatalf("status = %s, want partially_refunded", repo.byProviderID["pi_1"].Status)
	}

	if _, err := r.Dispatch(context.Background(), event.ProviderStripe, "charge.refunded", json.RawMessage(`{"data":{"object":{"payment_intent":"pi_1","amount":5000,"amount_refunded":5000}}}`)); err != nil {
		t.Fatalf("full refund: %v", err)
	}
	if repo.byProviderID["pi_1"].Status != payment.StatusRefunded {
		t.Fatalf("status = %s, want refunded", repo.byProviderID["pi_1"].Status)
	}
	if repo.byProviderID["pi_1"].AmountRefunded != 5000 {
		t.Fatalf("amount_refunded = %d, want 5000", repo.byProviderID["pi_1"].AmountRefunded)
	}
}

func TestChargeRefundedRepeatIsNoOp(t *testing.T) {
	repo := &fakePaymentRepo{byProviderID: map[string]*payment.Payment{
		"pi_1": {ID: "p1", ProviderPaymentID: "pi_1", Status: payment.StatusRefunded, Amount: 5000, AmountRefunded: 5000},
	}}
	r := stripeRouter(t, repo)

	res, err := r.Dispatch(context.Background(), event.ProviderStripe, "charge.refunded", json.RawMessage(`{"data":{"object":{"payment_intent":"pi_1","amount":5000,"amount_refunded":5000}}}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Outcome != engine.OutcomeProcessed {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if repo.updates != 0 {
		t.Fatalf("updates = %d, want 0", repo.updates)
	}
}

type fakeEmailRepo struct {
	byProviderID map[string]*email.Delivery
	updates      int
}

func (r *fakeEmailRepo) GetByProviderID(ctx context.Context, providerEmailID string) (*email.Delivery, error) {
	d, ok := r.byProviderID[providerEmailID]
	if !ok {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}

func (r *fakeEmailRepo) UpdateStatus(ctx context.Context, id string, from, to email.Status) (bool, error) {
	for _, d := range r.byProviderID {
		if d.ID == id && d.Status == from {
			d.Status = to
			r.updates++
			return true, nil
		}
	}
	return false, nil
}

func resendRouter(t *testing.T, repo *fakeEmailRepo) *engine.Router {
	t.Helper()
	r := engine.NewRouter()
	if err := NewResendHandlers(repo).Register(r); err != nil {
		t.Fatalf("register resend handlers: %v", err)
	}
	return r
}

func TestEmailDeliveredMovesStatus(t *testing.T) {
	repo := &fakeEmailRepo{byProviderID: map[string]*email.Delivery{
		"em_1": {ID: "d1", ProviderEmailID: "em_1", Status: email.StatusSent},
	}}
	r := resendRouter(t, repo)

	res, err := r.Dispatch(context.Background(), event.ProviderResend, "email.delivered", json.RawMessage(`{"type":"email.delivered","created_at":"2026-03-14T12:00:00Z","data":{"email_id":"em_1"}}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Outcome != engine.OutcomeProcessed {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if repo.byProviderID["em_1"].Status != email.StatusDelivered {
		t.Fatalf("status = %s, want delivered", repo.byProviderID["em_1"].Status)
	}
}

func TestEmailDeliveredTwiceIsCleanNoOp(t *testing.T) {
	repo := &fakeEmailRepo{byProviderID: map[string]*email.Delivery{
		"em_1": {ID: "d1", ProviderEmailID: "em_1", Status: email.StatusDelivered},
	}}
	r := resendRouter(t, repo)

	res, err := r.Dispatch(context.Background(), event.ProviderResend, "email.delivered", json.RawMessage(`{"data":{"email_id":"em_1"}}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Outcome != engine.OutcomeProcessed {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if repo.updates != 0 {
		t.Fatalf("updates = %d, want 0", repo.updates)
	}
}

func TestEmailBouncedAfterDeliveredRejected(t *testing.T) {
	repo := &fakeEmailRepo{byProviderID: map[string]*email.Delivery{
		"em_1": {ID: "d1", ProviderEmailID: "em_1", Status: email.StatusDelivered},
	}}
	r := resendRouter(t, repo)

	_, err := r.Dispatch(context.Background(), event.ProviderResend, "email.bounced", json.RawMessage(`{"data":{"email_id":"em_1"}}`))
	if err == nil {
		t.Fatal("bounce after delivered accepted")
	}
	if got := engine.Classify(err); got != engine.CategoryInvalidTransition {
		t.Fatalf("category = %q, want invalid_transition", got)
	}
}

type fakeSMSRepo struct {
	bySid   map[string]*sms.Delivery
	updates int
}

func (r *fakeSMSRepo) GetBySid(ctx context.Context, messageSid string) (*sms.Delivery, error) {
	d, ok := r.bySid[messageSid]
	if !ok {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}

func (r *fakeSMSRepo) UpdateStatus(ctx context.Context, id string, from, to sms.Status) (bool, error) {
	for _, d := range r.bySid {
		if d.ID == id && d.Status == from {
			d.Status = to
			r.updates++
			return true, nil
		}
	}
	return false, nil
}

func TestSMSDeliveredMovesStatus(t *testing.T) {
	repo := &fakeSMSRepo{bySid: map[string]*sms.Delivery{
		"SM1": {ID: "s1", ProviderSid: "SM1", Status: sms.StatusSent},
	}}
	r := engine.NewRouter()
	if err := NewTwilioHandlers(repo).Register(r); err != nil {
		t.Fatalf("register twilio handlers: %v", err)
	}

	res, err := r.Dispatch(context.Background(), event.ProviderTwilio, "sms.delivered", json.RawMessage(`{"message_sid":"SM1"}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if res.Outcome != engine.OutcomeProcessed {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if repo.bySid["SM1"].Status != sms.StatusDelivered {
		t.Fatalf("status = %s, want delivered", repo.bySid["SM1"].Status)
	}
}

func TestSMSRegressionRejected(t *testing.T) {
	repo := &fakeSMSRepo{bySid: map[string]*sms.Delivery{
		"SM1": {ID: "s1", ProviderSid: "SM1", Status: sms.StatusDelivered},
	}}
	r := engine.NewRouter()
	if err := NewTwilioHandlers(repo).Register(r); err != nil {
		t.Fatalf("register twilio handlers: %v", err)
	}

	_, err := r.Dispatch(context.Background(), event.ProviderTwilio, "sms.queued", json.RawMessage(`{"message_sid":"SM1"}`))
	if err == nil {
		t.Fatal("regression accepted")
	}
	if got := engine.Classify(err); got != engine.CategoryInvalidTransition {
		t.Fatalf("category = %q, want invalid_transition", got)
	}
	if repo.updates != 0 {
		t.Fatalf("updates = %d, want 0", repo.updates)
	}
}
