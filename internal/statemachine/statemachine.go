// Package statemachine holds the transition tables that govern the status
// field of every webhook-driven domain resource, and the validator that
// gates status writes behind them.
package statemachine

import (
	"fmt"
	"sort"
	"sync"
)

// Kind names a resource type with a finite status domain.
type Kind string

const (
	KindPayment Kind = "payment"
	KindEmail   Kind = "email"
	KindSMS     Kind = "sms"
)

// InvalidTransitionError reports an edge not present in the transition
// table for the kind. The proposed write must not have happened.
type InvalidTransitionError struct {
	Kind     Kind
	Current  string
	Proposed string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Kind, e.Current, e.Proposed)
}

// UnknownKindError reports a kind with no registered transition table.
type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("no transition table registered for kind %q", e.Kind)
}

var (
	mu     sync.RWMutex
	tables = map[Kind]map[string][]string{
		KindPayment: {
			"pending":            {"processing", "canceled", "failed"},
			"processing":         {"requires_action", "succeeded", "failed", "canceled"},
			"requires_action":    {"processing", "succeeded", "failed", "canceled"},
			"succeeded":          {"refunded", "partially_refunded"},
			"partially_refunded": {"refunded"},
			"failed":             {},
			"canceled":           {},
			"refunded":           {},
		},
		KindEmail: {
			"pending":    {"sent", "failed"},
			"sent":       {"delivered", "delayed", "bounced", "failed"},
			"delivered":  {"opened", "clicked", "complained"},
			"opened":     {"clicked"},
			"delayed":    {},
			"bounced":    {},
			"clicked":    {},
			"complained": {},
			"failed":     {},
		},
		KindSMS: {
			"pending":     {"queued", "failed"},
			"queued":      {"sending", "failed"},
			"sending":     {"sent", "failed"},
			"sent":        {"delivered", "undelivered", "failed"},
			"delivered":   {},
			"undelivered": {},
			"failed":      {},
		},
	}
)

// Register installs a transition table for a new resource kind. Existing
// kinds cannot be overwritten.
func Register(kind Kind, table map[string][]string) error {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := tables[kind]; exists {
		return fmt.Errorf("transition table for kind %q already registered", kind)
	}
	tables[kind] = table
	return nil
}

// Validate reports whether current -> proposed is a legal move for the
// kind. A same-status transition is an idempotent no-op and always
// succeeds, including for terminal statuses; providers legitimately
// re-deliver terminal notifications.
func Validate(kind Kind, current, proposed string) error {
	if current == proposed {
		return nil
	}

	mu.RLock()
	table, ok := tables[kind]
	mu.RUnlock()
	if !ok {
		return &UnknownKindError{Kind: kind}
	}

	for _, next := range table[current] {
		if next == proposed {
			return nil
		}
	}
	return &InvalidTransitionError{Kind: kind, Current: current, Proposed: proposed}
}

// Terminal reports whether the status has no outgoing edges for the kind.
func Terminal(kind Kind, status string) bool {
	mu.RLock()
	defer mu.RUnlock()
	table, ok := tables[kind]
	if !ok {
		return false
	}
	next, known := table[status]
	return known && len(next) == 0
}

// Statuses returns the sorted status domain of a kind.
func Statuses(kind Kind) []string {
	mu.RLock()
	defer mu.RUnlock()
	table, ok := tables[kind]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(table))
	for s := range table {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
