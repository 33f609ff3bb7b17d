// Package server exposes the scanner over HTTP: session control, still
// image decoding, scan history, and the populated form.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/dpazeto/scanform/internal/common"
	"github.com/dpazeto/scanform/internal/decode"
	"github.com/dpazeto/scanform/internal/events"
	"github.com/dpazeto/scanform/internal/export"
	"github.com/dpazeto/scanform/internal/form"
	"github.com/dpazeto/scanform/internal/repository"
	"github.com/dpazeto/scanform/internal/scan"
	"github.com/dpazeto/scanform/internal/validate"
)

type Handler struct {
	controller *scan.Controller
	scans      repository.ScanRepository
	exporter   *export.Service
	targets    []*form.ValueTarget

	mu         sync.Mutex
	lastStatus string
	lastError  string
}

// New builds the handler and subscribes it to the controller's events
// so session state can be reported without polling the camera.
func New(controller *scan.Controller, scans repository.ScanRepository, exporter *export.Service, targets []*form.ValueTarget) *Handler {
	h := &Handler{
		controller: controller,
		scans:      scans,
		exporter:   exporter,
		targets:    targets,
	}

	em := controller.Events()
	em.Subscribe(events.KindStatus, func(ev events.Event) {
		h.mu.Lock()
		h.lastStatus = ev.Status
		h.mu.Unlock()
	})
	em.Subscribe(events.KindError, func(ev events.Event) {
		h.mu.Lock()
		h.lastError = ev.Err.Error()
		h.mu.Unlock()
	})
	em.Subscribe(events.KindReset, func(events.Event) {
		h.mu.Lock()
		h.lastStatus = ""
		h.lastError = ""
		h.mu.Unlock()
	})

	return h
}

func (h *Handler) Attach(r chi.Router) {
	r.Post("/v1/session/start", h.handleStart)
	r.Post("/v1/session/stop", h.handleStop)
	r.Get("/v1/session", h.handleSession)

	r.Post("/v1/decode", h.handleDecode)

	r.Get("/v1/scans", h.handleListScans)
	r.Get("/v1/scans/export", h.handleExportScans)

	r.Get("/v1/form", h.handleForm)

	r.Get("/healthz", h.handleHealth)
}

func writeJson(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	body := map[string]string{"error": http.StatusText(code)}
	if err != nil {
		body["error"] = err.Error()
		if c := common.CodeOf(err); c != "" {
			body["code"] = c
		}
	}
	json.NewEncoder(w).Encode(body)
}

// statusForError maps the error taxonomy onto HTTP: payload problems
// are the client's fault, parser problems are upstream, session
// problems mean the service is not ready.
func statusForError(err error) int {
	var verr *validate.Error
	if errors.As(err, &verr) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, decode.ErrNotFound) {
		return http.StatusUnprocessableEntity
	}
	switch common.CodeOf(err) {
	case common.CodeParserError:
		return http.StatusBadGateway
	case common.CodeNotInitialized,
		common.CodeNoCameraAvailable,
		common.CodeCameraOpenFailed,
		common.CodeCameraTimeout:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
