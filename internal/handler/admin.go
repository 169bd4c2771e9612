package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/chaos-ops/display-server-go/internal/errors"
	"github.com/chaos-ops/display-server-go/internal/service"
)

// AdminHandler serves the authenticated admin surface: claiming pairing
// codes and managing day-plan assignments.
type AdminHandler struct {
	pairingService    *service.PairingService
	assignmentService *service.AssignmentService
	displayService    *service.DisplayService
}

func NewAdminHandler(
	pairingService *service.PairingService,
	assignmentService *service.AssignmentService,
	displayService *service.DisplayService,
) *AdminHandler {
	return &AdminHandler{
		pairingService:    pairingService,
		assignmentService: assignmentService,
		displayService:    displayService,
	}
}

func (h *AdminHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PairingCode    string  `json:"pairingCode"`
		OrganisationID string  `json:"organisationId"`
		DeviceName     *string `json:"deviceName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	device, err := h.pairingService.Register(r.Context(), req.PairingCode, req.OrganisationID, req.DeviceName)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	organisationID := r.URL.Query().Get("organisationId")

	devices, err := h.displayService.ListByOrganisation(r.Context(), organisationID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"total":   len(devices),
	})
}

func (h *AdminHandler) AssignPlan(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	var req struct {
		DayPlanID string `json:"dayPlanId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.ValidationError("Invalid request body"))
		return
	}

	device, err := h.assignmentService.AssignDayPlan(r.Context(), deviceID, req.DayPlanID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}

func (h *AdminHandler) ClearPlan(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	device, err := h.assignmentService.ClearDayPlan(r.Context(), deviceID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, device)
}
