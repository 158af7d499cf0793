package alertapi

import (
	"encoding/json"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/caseq/internal/alerts"
)

type statusUpdateRequest struct {
	Status     string  `json:"status"`
	Analyst    string  `json:"analyst"`
	Rationale  string  `json:"rationale"`
	Resolution *string `json:"resolution,omitempty"`
}

func (a *API) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("caseq.alert.id", id))

	var req statusUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Analyst == "" {
		writeError(w, http.StatusBadRequest, "analyst is required")
		return
	}

	status, err := alerts.ParseStatus(req.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	span.SetAttributes(attribute.String("caseq.alert.status", string(status)))

	al, err := a.svc.UpdateStatus(r.Context(), id, alerts.TransitionRequest{
		Status:     status,
		Analyst:    req.Analyst,
		Rationale:  req.Rationale,
		Resolution: req.Resolution,
	})
	if err != nil {
		a.serveError(w, r, err, "failed to update status")
		return
	}

	a.writeJSON(r.Context(), w, http.StatusOK, al)
}

type bulkCloseRequest struct {
	AlertIDs   []string `json:"alert_ids"`
	Analyst    string   `json:"analyst"`
	Rationale  string   `json:"rationale"`
	Resolution string   `json:"resolution"`
}

func (a *API) handleBulkClose(w http.ResponseWriter, r *http.Request) {
	var req bulkCloseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if len(req.AlertIDs) == 0 {
		writeError(w, http.StatusBadRequest, "alert_ids is required")
		return
	}
	if req.Analyst == "" || req.Resolution == "" {
		writeError(w, http.StatusBadRequest, "analyst and resolution are required")
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("caseq.bulk.requested", len(req.AlertIDs)))

	res, err := a.svc.BulkUpdateStatus(r.Context(), req.AlertIDs, alerts.TransitionRequest{
		Status:     alerts.StatusClosed,
		Analyst:    req.Analyst,
		Rationale:  req.Rationale,
		Resolution: &req.Resolution,
	})
	if err != nil {
		a.serveError(w, r, err, "bulk close failed")
		return
	}

	span.SetAttributes(attribute.Int("caseq.bulk.updated", res.Updated))
	a.writeJSON(r.Context(), w, http.StatusOK, res)
}

func decodeBody(r *http.Request, dst any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	return json.NewDecoder(r.Body).Decode(dst)
}
