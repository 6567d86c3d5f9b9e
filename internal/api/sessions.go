package api

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opsdash/servicekpi/internal/loader"
	"github.com/opsdash/servicekpi/internal/merge"
	"github.com/opsdash/servicekpi/internal/table"
)

// Multipart file field names, one per source.
const (
	fieldAppointments  = "appointments"
	fieldItemsSold     = "items_sold"
	fieldOpportunities = "opportunities"
	fieldJobTimes      = "job_times"
)

type createSessionResponse struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	Merge     *merge.Info `json:"merge"`
}

// handleCreateSession loads the uploaded sources, merges them and registers
// the resulting session. Only a missing appointments file fails the load.
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	src := merge.Sources{}
	var loadErr error
	src.Appointments, loadErr = h.readSource(r, fieldAppointments)
	if loadErr != nil {
		http.Error(w, fmt.Sprintf("appointments: %v", loadErr), http.StatusBadRequest)
		return
	}
	for _, f := range []struct {
		field string
		dst   **table.Table
	}{
		{fieldItemsSold, &src.ItemsSold},
		{fieldOpportunities, &src.Opportunities},
		{fieldJobTimes, &src.JobTimes},
	} {
		t, err := h.readSource(r, f.field)
		if err != nil {
			// Optional sources that fail to parse are skipped, not fatal.
			h.logger.Warn().Err(err).Str("source", f.field).Msg("optional source unreadable, skipped")
			continue
		}
		*f.dst = t
	}

	sess, err := h.assembler.NewSession(src)
	if err != nil {
		if errors.Is(err, merge.ErrMissingBaseData) {
			http.Error(w, "appointments report is required", http.StatusBadRequest)
			return
		}
		h.logger.Error().Err(err).Msg("merge failed")
		http.Error(w, "merge failed", http.StatusInternalServerError)
		return
	}
	h.store.Put(sess)

	h.logger.Info().
		Str("session_id", sess.ID).
		Int("rows", sess.Info.Rows).
		Strs("joined", sess.Info.Joined).
		Msg("session created")
	h.respondJSON(w, http.StatusCreated, createSessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Merge:     sess.Info,
	})
}

// readSource parses one uploaded file field into a table. A field that was
// not uploaded at all returns (nil, error) with http.ErrMissingFile inside.
func (h *Handler) readSource(r *http.Request, field string) (*table.Table, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(file)

	res, err := loader.Read(file)
	if err != nil {
		return nil, err
	}
	h.diag.RecordLoad(len(res.Warnings))
	if len(res.Warnings) > 0 {
		h.logger.Warn().
			Str("source", field).
			Str("filename", header.Filename).
			Int("warnings", len(res.Warnings)).
			Msg("source loaded with warnings")
	}
	return res.Table, nil
}

func closeQuietly(f multipart.File) {
	_ = f.Close()
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{"sessions": h.store.IDs()})
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.Delete(id) {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	h.logger.Info().Str("session_id", id).Msg("session deleted")
	w.WriteHeader(http.StatusNoContent)
}
