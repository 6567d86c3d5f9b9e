// Package api exposes the KPI engine over HTTP. Handlers stay thin: they
// parse the request, call into the report assembler and translate the one
// surfaced error; everything else arrives as a degraded-but-complete
// report.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/opsdash/servicekpi/internal/diag"
	"github.com/opsdash/servicekpi/internal/report"
	"github.com/opsdash/servicekpi/internal/session"
)

// Handler carries the dependencies shared by all routes.
type Handler struct {
	assembler *report.Assembler
	store     *session.Store
	diag      *diag.Collector
	maxUpload int64
	logger    zerolog.Logger
}

// NewHandler creates the API handler.
func NewHandler(assembler *report.Assembler, store *session.Store, collector *diag.Collector, maxUpload int64, logger zerolog.Logger) *Handler {
	return &Handler{
		assembler: assembler,
		store:     store,
		diag:      collector,
		maxUpload: maxUpload,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers all API routes on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/diagnostics", h.handleDiagnostics)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.handleCreateSession)
			r.Get("/", h.handleListSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", h.handleDeleteSession)
				r.Get("/report", h.handleReport)
				r.Get("/technicians", h.handleTechnicians)
				r.Get("/table", h.handleTable)
				r.Get("/details", h.handleDetails)
				r.Get("/analytics", h.handleAnalytics)
				r.Get("/summary", h.handleSummary)
				r.Get("/export", h.handleExport)
			})
		})
	})
}

// sessionFromRequest resolves the {id} route param. A miss writes the 404
// itself and returns ok=false.
func (h *Handler) sessionFromRequest(w http.ResponseWriter, r *http.Request) (*report.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, ok := h.store.Get(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (h *Handler) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.diag.GetSnapshot())
}
