package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
)

// Outcome is what a handler produced for a claimed event.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
)

// Result is the successful return of a handler.
type Result struct {
	Outcome Outcome
	Detail  string
}

// HandlerFunc processes the payload of one event type. Handlers validate
// their required payload shape before touching storage and must be
// side-effect-free when they return an error.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (Result, error)

// Router maps (provider, eventType) to the handler for it.
type Router struct {
	mu       sync.RWMutex
	handlers map[event.Provider]map[string]HandlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: map[event.Provider]map[string]HandlerFunc{}}
}

func (r *Router) Register(provider event.Provider, eventType string, fn HandlerFunc) error {
	if eventType == "" {
		return fmt.Errorf("router: empty event type")
	}
	if fn == nil {
		return fmt.Errorf("router: nil handler for %s %s", provider, eventType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	byType, ok := r.handlers[provider]
	if !ok {
		byType = map[string]HandlerFunc{}
		r.handlers[provider] = byType
	}
	if _, exists := byType[eventType]; exists {
		return fmt.Errorf("router: handler already registered for %s %s", provider, eventType)
	}
	byType[eventType] = fn
	return nil
}

// Dispatch invokes the handler for the event type. An unrecognized type
// is a deliberate successful no-op so providers can add event types
// without breaking us.
func (r *Router) Dispatch(ctx context.Context, provider event.Provider, eventType string, payload json.RawMessage) (Result, error) {
	r.mu.RLock()
	fn := r.handlers[provider][eventType]
	r.mu.RUnlock()

	if fn == nil {
		return Result{Outcome: OutcomeSkipped, Detail: "unhandled event type"}, nil
	}
	return fn(ctx, payload)
}
