package doctor

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

type DoctorSuccessResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	Doctor  *Doctor `json:"doctor,omitempty"`
}

type DoctorListResponse struct {
	Success bool     `json:"success"`
	Doctors []Doctor `json:"doctors"`
	Total   int      `json:"total"`
}

type OfficeSuccessResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	Office  *Office `json:"office,omitempty"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	var req CreateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), tenantID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(DoctorSuccessResponse{
		Success: true,
		Message: "Doctor created successfully",
		Doctor:  created,
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
	json.NewEncoder(w).Encode(DoctorSuccessResponse{Success: true, Doctor: found})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	doctors, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(DoctorListResponse{
		Success: true,
		Doctors: doctors,
		Total:   len(doctors),
	})
}

func (h *Handler) AddOffice(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	doctorID := mux.Vars(r)["id"]
	var req CreateOfficeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	created, err := h.service.AddOffice(r.Context(), tenantID, doctorID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(OfficeSuccessResponse{
		Success: true,
		Message: "Office added successfully",
		Office:  created,
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
	switch {
	case errors.Is(err, ErrDuplicateLicense):
		respondError(w, http.StatusConflict, "duplicate_license", err.Error())
	case errors.Is(err, ErrPlanLimitExceeded):
		respondError(w, http.StatusForbidden, "plan_limit_exceeded", err.Error())
	case errors.Is(err, ErrMissingFirstName), errors.Is(err, ErrMissingLastName),
		errors.Is(err, ErrMissingLicense), errors.Is(err, ErrMissingOfficeName),
		errors.Is(err, ErrInvalidSchedule):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
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

func respondError(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   errorType,
		"message": message,
	})
}
