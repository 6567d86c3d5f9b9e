package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/opsdash/servicekpi/internal/report"
	"github.com/opsdash/servicekpi/internal/table"
)

// queryFromRequest parses the shared technician/date-range parameters.
// Dates use YYYY-MM-DD; the "to" bound is inclusive of its whole day.
func queryFromRequest(r *http.Request) (report.Query, error) {
	q := report.Query{Technician: r.URL.Query().Get("technician")}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return q, err
		}
		q.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return q, err
		}
		q.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	return q, nil
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	q, err := queryFromRequest(r)
	if err != nil {
		http.Error(w, "invalid date range", http.StatusBadRequest)
		return
	}
	h.respondJSON(w, http.StatusOK, h.assembler.Snapshot(sess, q))
}

func (h *Handler) handleTechnicians(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"technicians": h.assembler.Technicians(sess)})
}

// tablePayload is the JSON shape of a table view. Missing cells encode as
// null to keep them distinct from present-but-empty strings.
type tablePayload struct {
	Columns []string             `json:"columns"`
	Records []map[string]*string `json:"records"`
}

func tableToPayload(t *table.Table) tablePayload {
	cols := t.Columns()
	payload := tablePayload{Columns: cols, Records: make([]map[string]*string, 0, t.Len())}
	for _, rec := range t.Records() {
		row := make(map[string]*string, len(cols))
		for _, col := range cols {
			if v := rec.Get(col); v.Present {
				raw := v.Raw
				row[col] = &raw
			} else {
				row[col] = nil
			}
		}
		payload.Records = append(payload.Records, row)
	}
	return payload
}

func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	q, err := queryFromRequest(r)
	if err != nil {
		http.Error(w, "invalid date range", http.StatusBadRequest)
		return
	}
	h.respondJSON(w, http.StatusOK, tableToPayload(h.assembler.View(sess, q)))
}

func (h *Handler) handleDetails(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	q, err := queryFromRequest(r)
	if err != nil {
		http.Error(w, "invalid date range", http.StatusBadRequest)
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"jobs": h.assembler.Details(sess, q, limit)})
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	q, err := queryFromRequest(r)
	if err != nil {
		http.Error(w, "invalid date range", http.StatusBadRequest)
		return
	}
	h.respondJSON(w, http.StatusOK, h.assembler.Analyze(sess, q))
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	q, err := queryFromRequest(r)
	if err != nil {
		http.Error(w, "invalid date range", http.StatusBadRequest)
		return
	}
	h.respondJSON(w, http.StatusOK, h.assembler.Summarize(sess, q))
}

// handleExport streams the CSV export: section=table (default) for the
// round-trippable unified table, section=report for the two-section
// document with the KPI summary appended.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFromRequest(w, r)
	if !ok {
		return
	}
	q, err := queryFromRequest(r)
	if err != nil {
		http.Error(w, "invalid date range", http.StatusBadRequest)
		return
	}

	var write func(io.Writer, *report.Session, report.Query) error
	switch r.URL.Query().Get("section") {
	case "", "table":
		write = h.assembler.WriteTable
	case "report":
		write = h.assembler.WriteReport
	default:
		http.Error(w, "unknown section", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="service_dashboard.csv"`)
	if err := write(w, sess, q); err != nil {
		h.logger.Error().Err(err).Str("session_id", sess.ID).Msg("export failed")
	}
}
