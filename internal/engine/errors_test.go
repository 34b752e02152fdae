package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/statemachine"
)

type fakeNetErr struct{ timeout bool }

func (e *fakeNetErr) Error() string   { return "net trouble" }
func (e *fakeNetErr) Timeout() bool   { return e.timeout }
func (e *fakeNetErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, ""},
		{"categorized error", Validationf("bad payload"), CategoryValidation},
		{"not found", NotFoundf("payment pi_1"), CategoryNotFound},
		{"authentication", Authenticationf("bad signature"), CategoryAuthentication},
		{"storage wrapper", WrapStorage("insert", errors.New("broken")), CategoryStorage},
		{
			"wrapped categorized error",
			fmt.Errorf("handler: %w", NotFoundf("missing")),
			CategoryNotFound,
		},
		{
			"invalid transition",
			&statemachine.InvalidTransitionError{Kind: statemachine.KindPayment, Current: "succeeded", Proposed: "pending"},
			CategoryInvalidTransition,
		},
		{"deadline", context.DeadlineExceeded, CategoryTimeout},
		{"wrapped deadline", fmt.Errorf("dispatch: %w", context.DeadlineExceeded), CategoryTimeout},
		{"net timeout", &fakeNetErr{timeout: true}, CategoryTimeout},
		{"net failure", &fakeNetErr{}, CategoryNetwork},
		{"pg error", &pgconn.PgError{Code: "40001"}, CategoryStorage},
		{"plain error", errors.New("what even"), CategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

// Classification depends on the error type only, never on event content,
// so the same failure must classify identically every time.
func TestClassifyDeterministic(t *testing.T) {
	err := WrapStorage("update payments", errors.New("connection reset"))
	first := Classify(err)
	for i := 0; i < 100; i++ {
		if got := Classify(err); got != first {
			t.Fatalf("classification changed on call %d: %q then %q", i, first, got)
		}
	}
}

func TestRetryable(t *testing.T) {
	retryable := []Category{CategoryStorage, CategoryNetwork, CategoryTimeout, CategoryUnknown}
	permanent := []Category{CategoryAuthentication, CategoryValidation, CategoryInvalidTransition, CategoryNotFound}

	for _, c := range retryable {
		if !Retryable(c) {
			t.Errorf("Retryable(%s) = false, want true", c)
		}
	}
	for _, c := range permanent {
		if Retryable(c) {
			t.Errorf("Retryable(%s) = true, want false", c)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		category Category
		want     int
	}{
		{CategoryAuthentication, http.StatusUnauthorized},
		{CategoryValidation, http.StatusBadRequest},
		{CategoryInvalidTransition, http.StatusBadRequest},
		{CategoryNotFound, http.StatusNotFound},
		{CategoryStorage, http.StatusServiceUnavailable},
		{CategoryNetwork, http.StatusServiceUnavailable},
		{CategoryTimeout, http.StatusServiceUnavailable},
		{CategoryUnknown, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.category); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.category, got, tt.want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := WrapStorage("query", cause)
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause not reachable via errors.Is")
	}
	if err.Error() != "query: root cause" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
