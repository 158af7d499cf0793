package alertapi

import (
	"fmt"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/caseq/internal/alerts"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := a.svc.List(r.Context(), q)
	if err != nil {
		a.serveError(w, r, err, "failed to list alerts")
		return
	}

	a.writeJSON(r.Context(), w, http.StatusOK, page)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.svc.Stats(r.Context())
	if err != nil {
		a.serveError(w, r, err, "failed to compute stats")
		return
	}
	a.writeJSON(r.Context(), w, http.StatusOK, stats)
}

func (a *API) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("caseq.alert.id", id))

	al, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.serveError(w, r, err, "failed to get alert")
		return
	}

	span.SetAttributes(attribute.String("caseq.alert.status", string(al.Status)))
	a.writeJSON(r.Context(), w, http.StatusOK, al)
}

func (a *API) handleGetAlertByCode(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("caseq.alert.code", code))

	al, err := a.svc.GetByCode(r.Context(), code)
	if err != nil {
		a.serveError(w, r, err, "failed to get alert by code")
		return
	}
	a.writeJSON(r.Context(), w, http.StatusOK, al)
}

func (a *API) handleSimilarCases(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("caseq.alert.id", id))

	cases, err := a.svc.FindSimilarCases(r.Context(), id)
	if err != nil {
		a.serveError(w, r, err, "failed to find similar cases")
		return
	}
	if cases == nil {
		cases = []alerts.SimilarCase{}
	}
	a.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"similar_cases": cases})
}

func (a *API) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	action := r.URL.Query().Get("action")

	entries, err := a.svc.AuditTrail(r.Context(), id, action)
	if err != nil {
		a.serveError(w, r, err, "failed to read audit trail")
		return
	}
	a.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"entries": entries})
}

func (a *API) handleListNotes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	notes, err := a.svc.Notes(r.Context(), id)
	if err != nil {
		a.serveError(w, r, err, "failed to list notes")
		return
	}
	a.writeJSON(r.Context(), w, http.StatusOK, map[string]any{"notes": notes})
}

type addNoteRequest struct {
	Analyst string `json:"analyst"`
	Content string `json:"content"`
}

func (a *API) handleAddNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req addNoteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Analyst == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "analyst and content are required")
		return
	}

	note, err := a.svc.AddNote(r.Context(), id, req.Analyst, req.Content)
	if err != nil {
		a.serveError(w, r, err, "failed to add note")
		return
	}
	a.writeJSON(r.Context(), w, http.StatusCreated, note)
}

// parseListQuery turns query-string parameters into an alerts.Query. Status
// labels are validated here; everything downstream holds only the five
// recognized states.
func parseListQuery(r *http.Request) (alerts.Query, error) {
	vals := r.URL.Query()

	var q alerts.Query
	q.Filter.Typology = vals.Get("typology")
	q.Filter.Resolution = vals.Get("resolution")
	q.Filter.AssignedAnalyst = vals.Get("assigned_analyst")
	q.Filter.Search = vals.Get("search")

	statuses, err := alerts.ParseStatusList(vals.Get("status"))
	if err != nil {
		return alerts.Query{}, err
	}
	q.Filter.Statuses = statuses

	if q.Filter.RiskMin, err = intParam(vals.Get("risk_min"), 0, 100); err != nil {
		return alerts.Query{}, fmt.Errorf("risk_min: %w", err)
	}
	if q.Filter.RiskMax, err = intParam(vals.Get("risk_max"), 0, 100); err != nil {
		return alerts.Query{}, fmt.Errorf("risk_max: %w", err)
	}

	q.Sort = alerts.NewSort(vals.Get("sort_by"), vals.Get("sort_order"))

	offset, err := intParam(vals.Get("offset"), 0, -1)
	if err != nil {
		return alerts.Query{}, fmt.Errorf("offset: %w", err)
	}
	if offset != nil {
		q.Offset = *offset
	}

	limit, err := intParam(vals.Get("limit"), 1, maxPageSize)
	if err != nil {
		return alerts.Query{}, fmt.Errorf("limit: %w", err)
	}
	q.Limit = defaultPageSize
	if limit != nil {
		q.Limit = *limit
	}

	return q, nil
}

// intParam parses an optional integer query parameter with inclusive bounds.
// A max of -1 means unbounded above.
func intParam(raw string, min, max int) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	if n < min || (max >= 0 && n > max) {
		return nil, fmt.Errorf("value %d out of range", n)
	}
	return &n, nil
}
