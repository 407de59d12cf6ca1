package patient

import "time"

// Relationship of a family member to the primary contact. Every family
// (rows sharing one mobile number) contains exactly one "self" row; the
// other values hang off it.
const (
	RelationshipSelf    = "self"
	RelationshipSpouse  = "spouse"
	RelationshipChild   = "child"
	RelationshipParent  = "parent"
	RelationshipSibling = "sibling"
	RelationshipOther   = "other"
)

// ValidRelationships enumerates the accepted relationship values.
var ValidRelationships = map[string]bool{
	RelationshipSelf:    true,
	RelationshipSpouse:  true,
	RelationshipChild:   true,
	RelationshipParent:  true,
	RelationshipSibling: true,
	RelationshipOther:   true,
}

// Patient is the authoritative record. Its identity is the composite
// (mobile_number, first_name) pair; the surrogate ID exists only so other
// tables can reference a patient without repeating two string columns.
type Patient struct {
	ID                   string     `json:"id"`
	TenantID             string     `json:"tenant_id"`
	MobileNumber         string     `json:"mobile_number"`
	FirstName            string     `json:"first_name"`
	LastName             string     `json:"last_name,omitempty"`
	DateOfBirth          *string    `json:"date_of_birth,omitempty"`
	Gender               string     `json:"gender,omitempty"`
	Relationship         string     `json:"relationship"`
	PrimaryContactMobile string     `json:"primary_contact_mobile,omitempty"`
	IsActive             bool       `json:"is_active"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// RegisterPatientRequest represents the request to register a new patient
type RegisterPatientRequest struct {
	MobileNumber         string `json:"mobile_number"`
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	DateOfBirth          string `json:"date_of_birth"` // Format: YYYY-MM-DD
	Gender               string `json:"gender"`
	Relationship         string `json:"relationship"`
	PrimaryContactMobile string `json:"primary_contact_mobile"`
}

// Validate checks required fields and relationship values.
func (r *RegisterPatientRequest) Validate() error {
	if r.MobileNumber == "" {
		return ErrMissingMobile
	}
	if r.FirstName == "" {
		return ErrMissingFirstName
	}
	if r.Relationship == "" {
		r.Relationship = RelationshipSelf
	}
	if !ValidRelationships[r.Relationship] {
		return ErrInvalidRelationship
	}
	return nil
}
