package messaging

import "time"

// Event routing keys as constants
const (
	// Tenant events
	EventTenantRegistered    = "tenant.registered"
	EventTenantDeactivated   = "tenant.deactivated"
	EventTenantPlanChanged   = "tenant.plan_changed"

	// Patient events
	EventPatientRegistered   = "patient.registered"
	EventPatientDeactivated  = "patient.deactivated"
	EventPatientReactivated  = "patient.reactivated"

	// Appointment events
	EventAppointmentBooked      = "appointment.booked"
	EventAppointmentRescheduled = "appointment.rescheduled"
	EventAppointmentStatus      = "appointment.status_changed"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType   string    `json:"event_type"`
	EventID     string    `json:"event_id"`
	TenantID    string    `json:"tenant_id"`
	Timestamp   time.Time `json:"timestamp"`
	ServiceName string    `json:"service_name"`
}

// NewBaseEvent fills the common envelope for an event.
func NewBaseEvent(eventType, eventID, tenantID string) BaseEvent {
	return BaseEvent{
		EventType:   eventType,
		EventID:     eventID,
		TenantID:    tenantID,
		Timestamp:   time.Now().UTC(),
		ServiceName: "clinical-records-service",
	}
}

// TenantRegisteredEvent announces a new clinic tenant
type TenantRegisteredEvent struct {
	BaseEvent
	Data TenantRegisteredData `json:"data"`
}

type TenantRegisteredData struct {
	TenantCode string `json:"tenant_code"`
	Name       string `json:"name"`
	Plan       string `json:"plan"`
	OwnerID    string `json:"owner_id"`
}

// PatientRegisteredEvent announces a new patient identity
type PatientRegisteredEvent struct {
	BaseEvent
	Data PatientRegisteredData `json:"data"`
}

type PatientRegisteredData struct {
	PatientID    string `json:"patient_id"`
	MobileNumber string `json:"mobile_number"`
	FirstName    string `json:"first_name"`
	Relationship string `json:"relationship"`
}

// AppointmentBookedEvent announces a booked slot
type AppointmentBookedEvent struct {
	BaseEvent
	Data AppointmentBookedData `json:"data"`
}

type AppointmentBookedData struct {
	AppointmentID string `json:"appointment_id"`
	DoctorID      string `json:"doctor_id"`
	PatientID     string `json:"patient_id"`
	Date          string `json:"date"`
	StartMinute   int    `json:"start_minute"`
	Duration      int    `json:"duration_minutes"`
}

// AppointmentStatusEvent announces a status transition
type AppointmentStatusEvent struct {
	BaseEvent
	Data AppointmentStatusData `json:"data"`
}

type AppointmentStatusData struct {
	AppointmentID string `json:"appointment_id"`
	FromStatus    string `json:"from_status"`
	ToStatus      string `json:"to_status"`
}
