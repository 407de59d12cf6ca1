package tenant

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/clinicore/clinical-records-service/internal/doctor"
	"github.com/clinicore/clinical-records-service/internal/pagination"
	"github.com/clinicore/clinical-records-service/internal/tenantctx"
	"github.com/gorilla/mux"
)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

type RegisterResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Result  *RegisterResult `json:"result"`
}

type TenantSuccessResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message,omitempty"`
	Tenant  *Tenant `json:"tenant,omitempty"`
}

type TenantListResponse struct {
	Success bool            `json:"success"`
	Tenants []Tenant        `json:"tenants"`
	Meta    pagination.Meta `json:"meta"`
}

// Register bootstraps a clinic. This is the one unauthenticated write
// endpoint: the caller has no tenant yet.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterClinicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	result, err := h.service.RegisterClinic(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(RegisterResponse{
		Success: true,
		Message: "Clinic registered successfully",
		Result:  result,
	})
}

type LoginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// Login verifies credentials and returns the account with its tenant id.
// Token issuance stays with the identity provider; this endpoint is the
// lookup that tells a client which tenant to request a token for.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{
		Success: true,
		Message: "Login successful",
		User:    user,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	found, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TenantSuccessResponse{Success: true, Tenant: found})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := pagination.ParseParams(r)
	tenants, meta, err := h.service.List(r.Context(), params)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TenantListResponse{
		Success: true,
		Tenants: tenants,
		Meta:    meta,
	})
}

func (h *Handler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req ChangePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	updated, err := h.service.ChangePlan(r.Context(), id, req.Plan)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TenantSuccessResponse{
		Success: true,
		Message: "Subscription plan updated",
		Tenant:  updated,
	})
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := mux.Vars(r)["id"]
	var (
		updated *Tenant
		err     error
		message string
	)
	if active {
		updated, err = h.service.Reactivate(r.Context(), id)
		message = "Tenant reactivated successfully"
	} else {
		updated, err = h.service.Deactivate(r.Context(), id)
		message = "Tenant deactivated successfully"
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TenantSuccessResponse{
		Success: true,
		Message: message,
		Tenant:  updated,
	})
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrDuplicateUsername):
		respondError(w, http.StatusConflict, "duplicate", err.Error())
	case errors.Is(err, ErrMissingName), errors.Is(err, ErrMissingOwner),
		errors.Is(err, ErrInvalidPlan),
		errors.Is(err, doctor.ErrMissingFirstName), errors.Is(err, doctor.ErrMissingLastName),
		errors.Is(err, doctor.ErrMissingLicense), errors.Is(err, doctor.ErrInvalidSchedule):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, ErrTenantDeactivated):
		respondError(w, http.StatusForbidden, "tenant_deactivated", err.Error())
	case errors.Is(err, ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrAlreadyActive), errors.Is(err, ErrAlreadyInactive):
		respondError(w, http.StatusConflict, "invalid_state", err.Error())
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
