// Package alertapi exposes the investigation queue over HTTP.
package alertapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/caseq/internal/alerts"
)

// AlertService defines the business operations alertapi needs.
type AlertService interface {
	List(ctx context.Context, q alerts.Query) (*alerts.Page, error)
	Get(ctx context.Context, id string) (*alerts.Alert, error)
	GetByCode(ctx context.Context, code string) (*alerts.Alert, error)
	Stats(ctx context.Context) (*alerts.Stats, error)
	UpdateStatus(ctx context.Context, id string, req alerts.TransitionRequest) (*alerts.Alert, error)
	BulkUpdateStatus(ctx context.Context, ids []string, req alerts.TransitionRequest) (*alerts.BulkResult, error)
	FindSimilarCases(ctx context.Context, id string) ([]alerts.SimilarCase, error)
	AuditTrail(ctx context.Context, id, action string) ([]alerts.AuditEntry, error)
	AddNote(ctx context.Context, id, analyst, content string) (*alerts.Note, error)
	Notes(ctx context.Context, id string) ([]alerts.Note, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    AlertService
}

// New creates a new API handler.
func New(logger log.Logger, svc AlertService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("alert service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/alerts", func(r chi.Router) {
		r.Get("/", a.handleListAlerts)
		r.Get("/stats", a.handleStats)
		r.Get("/export", a.handleExport)
		r.Post("/bulk-close", a.handleBulkClose)
		r.Get("/by-code/{code}", a.handleGetAlertByCode)
		r.Get("/{id}", a.handleGetAlert)
		r.Patch("/{id}/status", a.handleUpdateStatus)
		r.Get("/{id}/similar", a.handleSimilarCases)
		r.Get("/{id}/audit", a.handleAuditTrail)
		r.Get("/{id}/notes", a.handleListNotes)
		r.Post("/{id}/notes", a.handleAddNote)
	})
}

func (a *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error(ctx, err, "failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// serveError maps service errors onto HTTP statuses: ErrNotFound is a 404,
// everything else is logged and served as a 500.
func (a *API) serveError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if errors.Is(err, alerts.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	a.logger.Error(r.Context(), err, msg)
	writeError(w, http.StatusInternalServerError, "internal error")
}
