package prescription

import (
	"encoding/json"
	"time"
)

// Template is a prescription print template. DoctorID and OfficeID narrow
// its scope: both empty means a tenant-wide template, a doctor alone means
// a personal template, and doctor plus office pins it to one location.
type Template struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	DoctorID   string          `json:"doctor_id,omitempty"`
	OfficeID   string          `json:"office_id,omitempty"`
	Name       string          `json:"name"`
	HeaderText string          `json:"header_text,omitempty"`
	FooterText string          `json:"footer_text,omitempty"`
	Layout     json.RawMessage `json:"layout"`
	IsDefault  bool            `json:"is_default"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
}

// CreateTemplateRequest represents the request to create a template
type CreateTemplateRequest struct {
	DoctorID   string          `json:"doctor_id"`
	OfficeID   string          `json:"office_id"`
	Name       string          `json:"name"`
	HeaderText string          `json:"header_text"`
	FooterText string          `json:"footer_text"`
	Layout     json.RawMessage `json:"layout"`
	IsDefault  bool            `json:"is_default"`
}

func (r *CreateTemplateRequest) Validate() error {
	if r.Name == "" {
		return ErrMissingName
	}
	if r.OfficeID != "" && r.DoctorID == "" {
		return ErrOfficeNeedsDoctor
	}
	return nil
}

// FallbackTemplate is the hard-coded presentation default used when the
// resolution chain finds nothing.
func FallbackTemplate(tenantID string) *Template {
	return &Template{
		TenantID:  tenantID,
		Name:      "standard",
		Layout:    json.RawMessage(`{}`),
		IsDefault: false,
	}
}
