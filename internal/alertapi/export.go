package alertapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/linnemanlabs/caseq/internal/export"
)

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Exports cover the whole filtered set, not the page window.
	q.Offset = 0
	q.Limit = 0

	page, err := a.svc.List(r.Context(), q)
	if err != nil {
		a.serveError(w, r, err, "failed to list alerts for export")
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}
	filename := fmt.Sprintf("alert-queue-%s.%s", time.Now().UTC().Format("2006-01-02"), format)

	var body []byte
	var contentType string
	switch format {
	case "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		body, err = export.Workbook(page.Alerts)
	case "csv":
		contentType = "text/csv"
		body, err = export.CSV(page.Alerts)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
		return
	}
	if err != nil {
		a.serveError(w, r, err, "failed to render export")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(body); err != nil {
		a.logger.Error(r.Context(), err, "failed to write export response")
	}
}
