package doctor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockRange is a half-open [Start, End) range in "HH:MM" clock time.
type ClockRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeeklySchedule maps a lowercase weekday name ("monday") to the ranges a
// doctor consults during. An absent day means no availability.
type WeeklySchedule map[string][]ClockRange

// Doctor is a tenant-owned practitioner profile.
type Doctor struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	UserID        string         `json:"user_id,omitempty"`
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	LicenseNumber string         `json:"license_number"`
	Specialty     string         `json:"specialty,omitempty"`
	Availability  WeeklySchedule `json:"availability"`
	Offices       []Office       `json:"offices,omitempty"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     *time.Time     `json:"updated_at,omitempty"`
}

// Office is a clinic location a doctor consults from.
type Office struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	DoctorID  string    `json:"doctor_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateDoctorRequest represents the request to create a doctor profile
type CreateDoctorRequest struct {
	FirstName     string         `json:"first_name"`
	LastName      string         `json:"last_name"`
	LicenseNumber string         `json:"license_number"`
	Specialty     string         `json:"specialty"`
	Availability  WeeklySchedule `json:"availability"`
}

// CreateOfficeRequest represents the request to add an office to a doctor
type CreateOfficeRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Validate checks required fields and that every schedule range parses.
func (r *CreateDoctorRequest) Validate() error {
	if r.FirstName == "" {
		return ErrMissingFirstName
	}
	if r.LastName == "" {
		return ErrMissingLastName
	}
	if r.LicenseNumber == "" {
		return ErrMissingLicense
	}
	for day, ranges := range r.Availability {
		if !validWeekdays[day] {
			return fmt.Errorf("%w: unknown day %q", ErrInvalidSchedule, day)
		}
		for _, cr := range ranges {
			start, err := ParseClock(cr.Start)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
			}
			end, err := ParseClock(cr.End)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
			}
			if end <= start {
				return fmt.Errorf("%w: range %s-%s is empty", ErrInvalidSchedule, cr.Start, cr.End)
			}
		}
	}
	return nil
}

var validWeekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// Covers reports whether the schedule has a range fully containing the
// half-open [startMinute, startMinute+duration) slot on the given weekday.
func (ws WeeklySchedule) Covers(day time.Weekday, startMinute, durationMinutes int) bool {
	ranges, ok := ws[strings.ToLower(day.String())]
	if !ok {
		return false
	}
	end := startMinute + durationMinutes
	for _, cr := range ranges {
		rs, err1 := ParseClock(cr.Start)
		re, err2 := ParseClock(cr.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if startMinute >= rs && end <= re {
			return true
		}
	}
	return false
}

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
