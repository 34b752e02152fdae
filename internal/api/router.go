package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.Health)
	r.Post("/webhooks/{provider}", h.Receive)
	r.Get("/webhooks/{provider}/events/{eventID}", h.Event)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
