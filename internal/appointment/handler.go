package appointment

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/clinicore/clinical-records-service/internal/auth"
	"github.com/clinicore/clinical-records-service/internal/tenantctx"
	"github.com/gorilla/mux"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

type AppointmentSuccessResponse struct {
	Success     bool         `json:"success"`
	Message     string       `json:"message,omitempty"`
	Appointment *Appointment `json:"appointment,omitempty"`
}

type AppointmentListResponse struct {
	Success      bool          `json:"success"`
	Appointments []Appointment `json:"appointments"`
	Total        int           `json:"total"`
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	var req BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	booked, err := h.service.Book(r.Context(), tenantID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AppointmentSuccessResponse{
		Success:     true,
		Message:     "Appointment booked successfully",
		Appointment: booked,
	})
}

func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	var req BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	booked, err := h.service.Reschedule(r.Context(), tenantID, id, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AppointmentSuccessResponse{
		Success:     true,
		Message:     "Appointment rescheduled successfully",
		Appointment: booked,
	})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}
	if req.Status == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "status is required")
		return
	}

	updated, err := h.service.UpdateStatus(r.Context(), tenantID, id, Status(req.Status))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AppointmentSuccessResponse{
		Success:     true,
		Message:     "Appointment status updated",
		Appointment: updated,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	found, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AppointmentSuccessResponse{Success: true, Appointment: found})
}

func (h *Handler) ListDay(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	doctorID := mux.Vars(r)["id"]
	date := r.URL.Query().Get("date")
	if date == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "date query parameter is required")
		return
	}

	appointments, err := h.service.ListDay(r.Context(), tenantID, doctorID, date)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AppointmentListResponse{
		Success:      true,
		Appointments: appointments,
		Total:        len(appointments),
	})
}

func (h *Handler) ListForPatient(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	mobile := r.URL.Query().Get("mobile")
	firstName := r.URL.Query().Get("first_name")
	appointments, err := h.service.ListForPatient(r.Context(), tenantID, mobile, firstName)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AppointmentListResponse{
		Success:      true,
		Appointments: appointments,
		Total:        len(appointments),
	})
}

func tenantFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "User not authenticated")
		return "", false
	}
	if principal.TenantID == "" {
		respondError(w, http.StatusBadRequest, "missing_tenant", "Tenant information not found in token")
		return "", false
	}
	return principal.TenantID, true
}

func respondServiceError(w http.ResponseWriter, err error) {
	var (
		conflict   *SlotConflictError
		transition *InvalidTransitionError
	)
	switch {
	case errors.As(err, &conflict):
		respondConflict(w, conflict)
	case errors.As(err, &transition):
		respondError(w, http.StatusConflict, "invalid_transition", transition.Error())
	case errors.Is(err, ErrOutsideAvailability):
		respondError(w, http.StatusUnprocessableEntity, "outside_availability", err.Error())
	case errors.Is(err, ErrPatientNotFound):
		respondError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrMissingDoctor), errors.Is(err, ErrMissingPatient),
		errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidStartTime),
		errors.Is(err, ErrInvalidDuration):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, ErrForbidden):
		log.Printf("[SECURITY] Cross-tenant write rejected: %v", err)
		respondError(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, tenantctx.ErrInvalidTenantContext):
		respondError(w, http.StatusBadRequest, "invalid_tenant", err.Error())
	case errors.Is(err, tenantctx.ErrPoolExhausted):
		respondError(w, http.StatusServiceUnavailable, "pool_exhausted", "Service busy, retry with backoff")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func respondConflict(w http.ResponseWriter, conflict *SlotConflictError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusConflict)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":                   "slot_conflict",
		"message":                 conflict.Error(),
		"conflicting_appointment": conflict.ConflictingID,
	})
}

func respondError(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   errorType,
		"message": message,
	})
}
