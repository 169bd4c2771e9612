package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/chaos-ops/display-server-go/internal/service"
)

// DisplayHandler serves the unauthenticated device-facing surface: a kiosk
// initializes itself, polls its status, and lets an on-site operator
// disconnect or reset it.
type DisplayHandler struct {
	displayService *service.DisplayService
}

func NewDisplayHandler(displayService *service.DisplayService) *DisplayHandler {
	return &DisplayHandler{displayService: displayService}
}

func (h *DisplayHandler) Init(w http.ResponseWriter, r *http.Request) {
	result, err := h.displayService.Init(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize display")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *DisplayHandler) Status(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	result, err := h.displayService.Status(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *DisplayHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	device, err := h.displayService.Disconnect(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

func (h *DisplayHandler) Reset(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	result, err := h.displayService.Reset(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
