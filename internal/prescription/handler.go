package prescription

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

type TemplateSuccessResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message,omitempty"`
	Template *Template `json:"template,omitempty"`
}

type TemplateListResponse struct {
	Success   bool       `json:"success"`
	Templates []Template `json:"templates"`
	Total     int        `json:"total"`
}

type ResolveResponse struct {
	Success  bool      `json:"success"`
	Resolved bool      `json:"resolved"`
	Template *Template `json:"template"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	var req CreateTemplateRequest
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
	json.NewEncoder(w).Encode(TemplateSuccessResponse{
		Success:  true,
		Message:  "Template created successfully",
		Template: created,
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
	json.NewEncoder(w).Encode(TemplateSuccessResponse{Success: true, Template: found})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	templates, err := h.service.List(r.Context(), tenantID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TemplateListResponse{
		Success:   true,
		Templates: templates,
		Total:     len(templates),
	})
}

// Resolve answers "which template should this printout use". When the
// chain finds nothing the hard-coded presentation default is returned so
// callers always get something printable.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantFromRequest(w, r)
	if !ok {
		return
	}

	doctorID := r.URL.Query().Get("doctor_id")
	officeID := r.URL.Query().Get("office_id")

	resolved, err := h.service.Resolve(r.Context(), tenantID, doctorID, officeID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	response := ResolveResponse{Success: true, Resolved: resolved != nil}
	if resolved != nil {
		response.Template = resolved
	} else {
		response.Template = FallbackTemplate(tenantID)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
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
	case errors.Is(err, ErrDefaultExists):
		respondError(w, http.StatusConflict, "default_exists", err.Error())
	case errors.Is(err, ErrMissingName), errors.Is(err, ErrOfficeNeedsDoctor):
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
