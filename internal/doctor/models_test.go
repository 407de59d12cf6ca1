package doctor

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:00", 540, false},
		{"09:15", 555, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"9", 0, true},
		{"", 0, true},
		{"ab:cd", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error, got %d", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestWeeklySchedule_Covers(t *testing.T) {
	ws := WeeklySchedule{
		"monday": {{Start: "09:00", End: "12:00"}, {Start: "14:00", End: "17:00"}},
	}

	tests := []struct {
		name     string
		day      time.Weekday
		start    int
		duration int
		want     bool
	}{
		{"inside morning range", time.Monday, 540, 30, true},
		{"exactly fills morning range", time.Monday, 540, 180, true},
		{"slot ending at range end", time.Monday, 690, 30, true},
		{"slot running past range end", time.Monday, 700, 30, false},
		{"slot starting before range", time.Monday, 530, 30, false},
		{"slot in lunch gap", time.Monday, 750, 30, false},
		{"afternoon range", time.Monday, 900, 60, true},
		{"day without availability", time.Tuesday, 540, 30, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ws.Covers(tt.day, tt.start, tt.duration); got != tt.want {
				t.Errorf("Covers(%v, %d, %d) = %v, want %v", tt.day, tt.start, tt.duration, got, tt.want)
			}
		})
	}
}

func TestCreateDoctorRequest_Validate(t *testing.T) {
	valid := CreateDoctorRequest{
		FirstName:     "Sara",
		LastName:      "Haddad",
		LicenseNumber: "LIC-1001",
		Availability: WeeklySchedule{
			"monday": {{Start: "09:00", End: "17:00"}},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	missingLicense := valid
	missingLicense.LicenseNumber = ""
	if err := missingLicense.Validate(); err != ErrMissingLicense {
		t.Errorf("expected ErrMissingLicense, got %v", err)
	}

	badDay := valid
	badDay.Availability = WeeklySchedule{"funday": {{Start: "09:00", End: "17:00"}}}
	if err := badDay.Validate(); err == nil {
		t.Error("expected error for unknown weekday")
	}

	emptyRange := valid
	emptyRange.Availability = WeeklySchedule{"monday": {{Start: "09:00", End: "09:00"}}}
	if err := emptyRange.Validate(); err == nil {
		t.Error("expected error for empty range")
	}

	reversed := valid
	reversed.Availability = WeeklySchedule{"monday": {{Start: "17:00", End: "09:00"}}}
	if err := reversed.Validate(); err == nil {
		t.Error("expected error for reversed range")
	}
}
