package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
)

// Inbound is a verified notification handed to the engine by the
// transport layer. Signature verification has already happened; the
// engine never sees unauthenticated payloads. Payload is the full
// original body as the provider sent it, retained in the ledger for
// audit and replay.
type Inbound struct {
	Provider   event.Provider
	EventID    string
	EventType  string
	Payload    json.RawMessage
	Provenance event.Provenance
}

// Response is the transport-generic processing outcome. StatusCode uses
// HTTP semantics: 2xx acknowledge, 4xx tell the provider to stop
// retrying, 503 asks it to retry later.
type Response struct {
	StatusCode int
	Outcome    string
	RecordID   string
	Category   Category
	Detail     string
}

const (
	ResponseProcessed = "processed"
	ResponseDuplicate = "duplicate"
	ResponseSkipped   = "skipped"
	ResponseFailed    = "failed"
)

// DuplicateCache is an optional fast path in front of the ledger claim.
// Implementations are best-effort; the ledger stays authoritative.
type DuplicateCache interface {
	Seen(ctx context.Context, provider event.Provider, eventID string) (event.Status, bool)
	Remember(ctx context.Context, provider event.Provider, eventID string, status event.Status)
}

// Auditor observes every lifecycle transition of an event.
type Auditor interface {
	Received(ctx context.Context, in Inbound)
	Claimed(ctx context.Context, in Inbound, recordID string)
	Duplicate(ctx context.Context, in Inbound, existing event.Status)
	Outcome(ctx context.Context, in Inbound, recordID string, status event.Status, category Category, err error, duration time.Duration)
}

// Pipeline runs a claimed event through dispatch and records exactly one
// outcome per claim.
type Pipeline struct {
	ledger         event.Ledger
	router         *Router
	audit          Auditor
	cache          DuplicateCache
	handlerTimeout time.Duration
}

type PipelineOption func(*Pipeline)

func WithAuditor(a Auditor) PipelineOption {
	return func(p *Pipeline) { p.audit = a }
}

func WithDuplicateCache(c DuplicateCache) PipelineOption {
	return func(p *Pipeline) { p.cache = c }
}

func WithHandlerTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.handlerTimeout = d }
}

func NewPipeline(ledger event.Ledger, router *Router, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		ledger:         ledger,
		router:         router,
		handlerTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process takes one verified notification through the full engine:
// claim, mark processing, dispatch, record outcome.
//
// Re-delivery of an event that is processed, skipped, or currently
// processing is acknowledged as a duplicate without further work. A
// pending or failed record may be re-claimed: the conditional flip to
// processing decides atomically which caller proceeds.
func (p *Pipeline) Process(ctx context.Context, in Inbound) Response {
	if p.audit != nil {
		p.audit.Received(ctx, in)
	}

	if in.EventID == "" {
		return p.reject(ctx, in, Validationf("missing provider event id"))
	}
	if in.EventType == "" {
		return p.reject(ctx, in, Validationf("missing event type"))
	}

	if p.cache != nil {
		if status, ok := p.cache.Seen(ctx, in.Provider, in.EventID); ok {
			if p.audit != nil {
				p.audit.Duplicate(ctx, in, status)
			}
			return Response{StatusCode: http.StatusOK, Outcome: ResponseDuplicate, Detail: string(status)}
		}
	}

	claim, err := p.ledger.Claim(ctx, in.Provider, in.EventID, in.EventType, in.Payload, in.Provenance)
	if err != nil {
		return p.reject(ctx, in, WrapStorage("claim event", err))
	}

	if claim.Duplicate {
		switch claim.ExistingStatus {
		case event.StatusPending, event.StatusFailed:
			// Provider re-delivery is the retry mechanism for failed
			// (and crash-orphaned pending) records. The conditional
			// update below is the atomic re-claim.
		default:
			if p.audit != nil {
				p.audit.Duplicate(ctx, in, claim.ExistingStatus)
			}
			if claim.ExistingStatus == event.StatusProcessed || claim.ExistingStatus == event.StatusSkipped {
				p.remember(ctx, in, claim.ExistingStatus)
			}
			return Response{
				StatusCode: http.StatusOK,
				Outcome:    ResponseDuplicate,
				RecordID:   claim.RecordID,
				Detail:     string(claim.ExistingStatus),
			}
		}
	}

	ok, err := p.ledger.MarkProcessing(ctx, claim.RecordID)
	if err != nil {
		return p.reject(ctx, in, WrapStorage("mark processing", err))
	}
	if !ok {
		// Lost the re-claim race; another caller is processing it.
		if p.audit != nil {
			p.audit.Duplicate(ctx, in, event.StatusProcessing)
		}
		return Response{
			StatusCode: http.StatusOK,
			Outcome:    ResponseDuplicate,
			RecordID:   claim.RecordID,
			Detail:     string(event.StatusProcessing),
		}
	}

	if p.audit != nil {
		p.audit.Claimed(ctx, in, claim.RecordID)
	}

	start := time.Now()
	res, err := p.run(ctx, in)
	return p.finish(ctx, in, claim.RecordID, start, res, err)
}

// Redeliver re-runs an already re-claimed ledger record, used by the
// internal retry worker. The record is in processing status.
func (p *Pipeline) Redeliver(ctx context.Context, rec *event.Record) Response {
	in := Inbound{
		Provider:  rec.Provider,
		EventID:   rec.EventID,
		EventType: rec.EventType,
		Payload:   rec.Payload,
	}
	start := time.Now()
	res, err := p.run(ctx, in)
	return p.finish(ctx, in, rec.ID, start, res, err)
}

// run dispatches under the handler time budget and converts panics into
// classified failures so exactly one outcome is always recorded.
func (p *Pipeline) run(ctx context.Context, in Inbound) (res Result, err error) {
	hctx := ctx
	if p.handlerTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, p.handlerTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = &Error{Category: CategoryUnknown, Message: fmt.Sprintf("handler panic: %v", r)}
		}
	}()

	res, err = p.router.Dispatch(hctx, in.Provider, in.EventType, in.Payload)
	if err == nil && hctx.Err() != nil {
		err = hctx.Err()
	}
	return res, err
}

// finish records the single outcome for a claimed event.
func (p *Pipeline) finish(ctx context.Context, in Inbound, recordID string, start time.Time, res Result, err error) Response {
	elapsed := time.Since(start)

	if err != nil {
		category := Classify(err)
		if mErr := p.ledger.MarkFailed(ctx, recordID, err.Error(), string(category), elapsed); mErr != nil {
			return p.reject(ctx, in, WrapStorage("record failure outcome", mErr))
		}
		if p.audit != nil {
			p.audit.Outcome(ctx, in, recordID, event.StatusFailed, category, err, elapsed)
		}
		return Response{
			StatusCode: HTTPStatus(category),
			Outcome:    ResponseFailed,
			RecordID:   recordID,
			Category:   category,
			Detail:     string(category),
		}
	}

	if res.Outcome == OutcomeSkipped {
		if mErr := p.ledger.MarkSkipped(ctx, recordID, elapsed); mErr != nil {
			return p.reject(ctx, in, WrapStorage("record skipped outcome", mErr))
		}
		if p.audit != nil {
			p.audit.Outcome(ctx, in, recordID, event.StatusSkipped, "", nil, elapsed)
		}
		p.remember(ctx, in, event.StatusSkipped)
		return Response{StatusCode: http.StatusOK, Outcome: ResponseSkipped, RecordID: recordID, Detail: res.Detail}
	}

	if mErr := p.ledger.MarkProcessed(ctx, recordID, elapsed); mErr != nil {
		return p.reject(ctx, in, WrapStorage("record processed outcome", mErr))
	}
	if p.audit != nil {
		p.audit.Outcome(ctx, in, recordID, event.StatusProcessed, "", nil, elapsed)
	}
	p.remember(ctx, in, event.StatusProcessed)
	return Response{StatusCode: http.StatusOK, Outcome: ResponseProcessed, RecordID: recordID, Detail: res.Detail}
}

func (p *Pipeline) reject(ctx context.Context, in Inbound, err *Error) Response {
	if p.audit != nil {
		p.audit.Outcome(ctx, in, "", event.StatusFailed, err.Category, err, 0)
	}
	return Response{
		StatusCode: HTTPStatus(err.Category),
		Outcome:    ResponseFailed,
		Category:   err.Category,
		Detail:     err.Message,
	}
}

func (p *Pipeline) remember(ctx context.Context, in Inbound, status event.Status) {
	if p.cache != nil {
		p.cache.Remember(ctx, in.Provider, in.EventID, status)
	}
}
