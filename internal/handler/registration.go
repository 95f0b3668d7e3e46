package handler

import (
	"net/http"

	"github.com/forgo/gather/api/internal/middleware"
	"github.com/forgo/gather/api/internal/model"
	"github.com/forgo/gather/api/internal/service"
)

// RegistrationHandler handles seat registration endpoints
type RegistrationHandler struct {
	registrationService *service.RegistrationService
}

// NewRegistrationHandler creates a new registration handler
func NewRegistrationHandler(registrationService *service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{registrationService: registrationService}
}

// Register handles POST /v1/events/{eventId}/register - claim a seat
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	eventID := r.PathValue("eventId")

	snapshot, err := h.registrationService.Register(r.Context(), eventID, userID)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteData(w, http.StatusCreated, snapshot, map[string]string{
		"event": "/v1/events/" + eventID,
	})
}

// Unregister handles DELETE /v1/events/{eventId}/register - release a seat
func (h *RegistrationHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	eventID := r.PathValue("eventId")

	snapshot, err := h.registrationService.Unregister(r.Context(), eventID, userID)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteData(w, http.StatusOK, snapshot, nil)
}

// ListRegistrations handles GET /v1/events/{eventId}/registrations -
// the organizer's view of who holds seats
func (h *RegistrationHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	eventID := r.PathValue("eventId")

	regs, err := h.registrationService.ListByEvent(r.Context(), eventID, userID)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteData(w, http.StatusOK, regs, nil)
}

// MyRegistrations handles GET /v1/users/me/registrations
func (h *RegistrationHandler) MyRegistrations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	regs, err := h.registrationService.MyRegistrations(r.Context(), userID)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteData(w, http.StatusOK, regs, nil)
}
