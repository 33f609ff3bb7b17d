package server

import (
	"errors"
	"image"
	"io"
	"net/http"
	"strconv"

	_ "image/jpeg"
	_ "image/png"
)

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.Start(r.Context()); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJson(w, map[string]any{"active": h.controller.Active()})
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.controller.Stop()
	writeJson(w, map[string]any{"active": false})
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	status, lastErr := h.lastStatus, h.lastError
	h.mu.Unlock()

	writeJson(w, map[string]any{
		"active":     h.controller.Active(),
		"status":     status,
		"last_error": lastErr,
	})
}

// handleDecode accepts a still image (multipart field "image" or the
// raw request body) and runs it through the same processing path as
// live capture.
func (h *Handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	img, err := h.readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	fields, err := h.controller.DecodeImage(r.Context(), img)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJson(w, map[string]any{"fields": fields})
}

func (h *Handler) readImage(r *http.Request) (image.Image, error) {
	var reader io.Reader = r.Body
	if file, _, err := r.FormFile("image"); err == nil {
		defer file.Close()
		reader = file
	}

	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, errors.New("request does not contain a decodable image")
	}
	return img, nil
}

// errHistoryDisabled is returned when the service runs without a
// history DSN configured.
var errHistoryDisabled = errors.New("scan history is disabled")

func (h *Handler) handleListScans(w http.ResponseWriter, r *http.Request) {
	if h.scans == nil {
		writeError(w, http.StatusNotFound, errHistoryDisabled)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	scans, err := h.scans.ListScans(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJson(w, map[string]any{"scans": scans})
}

func (h *Handler) handleExportScans(w http.ResponseWriter, r *http.Request) {
	if h.scans == nil || h.exporter == nil {
		writeError(w, http.StatusNotFound, errHistoryDisabled)
		return
	}

	data, err := h.exporter.ExportScansXLSX(r.Context(), 1000)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="scans.xlsx"`)
	w.Write(data)
}

func (h *Handler) handleForm(w http.ResponseWriter, r *http.Request) {
	values := make(map[string]string, len(h.targets))
	for _, t := range h.targets {
		values[t.Name()] = t.Value()
	}
	writeJson(w, map[string]any{"fields": values})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJson(w, map[string]any{"status": "ok"})
}
