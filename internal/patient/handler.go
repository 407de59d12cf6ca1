package patient

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

type PatientSuccessResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Patient *Patient `json:"patient,omitempty"`
}

type FamilyListResponse struct {
	Success bool      `json:"success"`
	Family  []Patient `json:"family"`
	Total   int       `json:"total"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	var req RegisterPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	created, err := h.service.Register(r.Context(), tenantID, req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(PatientSuccessResponse{
		Success: true,
		Message: "Patient registered successfully",
		Patient: created,
	})
}

func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	mobile := r.URL.Query().Get("mobile")
	firstName := r.URL.Query().Get("first_name")
	if mobile == "" || firstName == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "mobile and first_name query parameters are required")
		return
	}

	found, err := h.service.Lookup(r.Context(), tenantID, mobile, firstName)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PatientSuccessResponse{Success: true, Patient: found})
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
	json.NewEncoder(w).Encode(PatientSuccessResponse{Success: true, Patient: found})
}

func (h *Handler) ListFamily(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	mobile := r.URL.Query().Get("mobile")
	if mobile == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "mobile query parameter is required")
		return
	}

	family, err := h.service.ListFamily(r.Context(), tenantID, mobile)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(FamilyListResponse{
		Success: true,
		Family:  family,
		Total:   len(family),
	})
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	id := mux.Vars(r)["id"]
	var (
		updated *Patient
		err     error
		message string
	)
	if active {
		updated, err = h.service.Reactivate(r.Context(), tenantID, id)
		message = "Patient reactivated successfully"
	} else {
		updated, err = h.service.Deactivate(r.Context(), tenantID, id)
		message = "Patient deactivated successfully"
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PatientSuccessResponse{
		Success: true,
		Message: message,
		Patient: updated,
	})
}

// tenantFromRequest extracts the caller's tenant id from the verified
// principal. The tenant id never comes from request input.
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
	case errors.Is(err, ErrDuplicateIdentity):
		respondError(w, http.StatusConflict, "duplicate_identity", err.Error())
	case errors.Is(err, ErrPrimaryMemberRequired):
		respondError(w, http.StatusBadRequest, "primary_member_required", err.Error())
	case errors.Is(err, ErrPrimaryMemberExists):
		respondError(w, http.StatusBadRequest, "primary_member_exists", err.Error())
	case errors.Is(err, ErrFamilyLimitExceeded):
		respondError(w, http.StatusBadRequest, "family_limit_exceeded", err.Error())
	case errors.Is(err, ErrMissingMobile), errors.Is(err, ErrMissingFirstName), errors.Is(err, ErrInvalidRelationship):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrAlreadyActive), errors.Is(err, ErrAlreadyInactive):
		respondError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, ErrForbidden):
		// A write rejected by the row-isolation check means a bug or an
		// attack, not a validation slip.
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
