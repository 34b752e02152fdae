package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nitinthakurcode/weddingflo-sub009/internal/audit"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/domain/event"
	"github.com/nitinthakurcode/weddingflo-sub009/internal/engine"
)

// ProviderConfig wires one provider endpoint: which header carries the
// signature, the shared secret, and the verifier that authenticates and
// parses the body.
type ProviderConfig struct {
	SignatureHeader string
	Secret          string
	Verify          VerifyFunc
}

// RecordStore is the read side of the ledger, backing the operator
// lookup endpoint.
type RecordStore interface {
	Get(ctx context.Context, provider event.Provider, eventID string) (*event.Record, error)
}

type Handlers struct {
	pipeline  *engine.Pipeline
	records   RecordStore
	providers map[event.Provider]ProviderConfig
	maxBody   int64
	logger    *slog.Logger
}

func NewHandlers(pipeline *engine.Pipeline, records RecordStore, maxBody int64, logger *slog.Logger) *Handlers {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handlers{
		pipeline:  pipeline,
		records:   records,
		providers: map[event.Provider]ProviderConfig{},
		maxBody:   maxBody,
		logger:    logger,
	}
}

func (h *Handlers) Configure(provider event.Provider, cfg ProviderConfig) {
	h.providers[provider] = cfg
}

// Receive is the single webhook endpoint: authenticate, parse, hand to
// the engine, translate the engine response. Internal error detail never
// leaves this process; providers only see the outcome and status code.
func (h *Handlers) Receive(w http.ResponseWriter, r *http.Request) {
	provider := event.Provider(chi.URLParam(r, "provider"))
	cfg, ok := h.providers[provider]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown provider"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBody+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	if int64(len(body)) > h.maxBody {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
		return
	}

	in, err := cfg.Verify(body, r.Header.Get(cfg.SignatureHeader), cfg.Secret)
	if err != nil {
		category := engine.Classify(err)
		h.logger.WarnContext(r.Context(), "webhook rejected before processing",
			"provider", provider,
			"category", category,
		)
		writeJSON(w, engine.HTTPStatus(category), map[string]string{"error": string(category)})
		return
	}

	in.Provenance = provenanceFrom(r)

	resp := h.pipeline.Process(r.Context(), in)
	writeJSON(w, resp.StatusCode, map[string]string{
		"status": resp.Outcome,
		"detail": resp.Detail,
	})
}

// Event looks up the ledger record for (provider, event id), for
// operators chasing a delivery. The stored payload is redacted on the
// way out.
func (h *Handlers) Event(w http.ResponseWriter, r *http.Request) {
	provider := event.Provider(chi.URLParam(r, "provider"))
	eventID := chi.URLParam(r, "eventID")

	rec, err := h.records.Get(r.Context(), provider, eventID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "ledger lookup failed",
			"provider", provider,
			"event_id", eventID,
			"error", err,
		)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage"})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown event"})
		return
	}

	rec.Payload = audit.Redact(rec.Payload)
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// provenanceFrom captures write-once request metadata for the ledger.
// Only a fixed allowlist of headers is retained.
func provenanceFrom(r *http.Request) event.Provenance {
	headers := map[string]string{}
	for _, name := range []string{"Content-Type", "User-Agent", "X-Request-Id", "X-Forwarded-For"} {
		if v := r.Header.Get(name); v != "" {
			headers[name] = v
		}
	}
	return event.Provenance{
		Headers:   headers,
		SourceIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
