package appointment

import "testing"

func existingAt(id string, start, duration int, status Status) Appointment {
	return Appointment{
		ID:              id,
		StartMinute:     start,
		DurationMinutes: duration,
		Status:          status,
	}
}

func TestFindConflict_Overlap(t *testing.T) {
	// 09:00 for 30 minutes.
	existing := []Appointment{existingAt("a1", 540, 30, StatusScheduled)}

	tests := []struct {
		name     string
		start    int
		duration int
		wantID   string
	}{
		{"overlapping start at 09:15", 555, 30, "a1"},
		{"back-to-back at 09:30", 570, 30, ""},
		{"back-to-back before at 08:30", 510, 30, ""},
		{"candidate swallows existing", 530, 60, "a1"},
		{"candidate inside existing", 550, 10, "a1"},
		{"identical slot", 540, 30, "a1"},
		{"well clear", 600, 30, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindConflict(existing, tt.start, tt.duration, "")
			if tt.wantID == "" {
				if got != nil {
					t.Errorf("expected no conflict, got %s", got.ID)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a conflict, got none")
			}
			if got.ID != tt.wantID {
				t.Errorf("expected conflict with %s, got %s", tt.wantID, got.ID)
			}
		})
	}
}

func TestFindConflict_NonBlockingStatusesIgnored(t *testing.T) {
	existing := []Appointment{
		existingAt("cancelled", 540, 30, StatusCancelled),
		existingAt("completed", 540, 30, StatusCompleted),
		existingAt("noshow", 540, 30, StatusNoShow),
		existingAt("moved", 540, 30, StatusRescheduled),
	}
	if got := FindConflict(existing, 540, 30, ""); got != nil {
		t.Errorf("non-blocking appointments should not conflict, got %s", got.ID)
	}

	existing = append(existing, existingAt("live", 540, 30, StatusInProgress))
	got := FindConflict(existing, 540, 30, "")
	if got == nil || got.ID != "live" {
		t.Errorf("expected conflict with in-progress appointment, got %v", got)
	}
}

func TestFindConflict_ExcludeID(t *testing.T) {
	existing := []Appointment{
		existingAt("self", 540, 30, StatusScheduled),
		existingAt("other", 560, 30, StatusConfirmed),
	}

	// Moving "self" within its own slot must not collide with itself.
	if got := FindConflict(existing, 540, 15, "self"); got != nil {
		t.Errorf("expected no conflict when excluding self, got %s", got.ID)
	}

	got := FindConflict(existing, 540, 30, "self")
	if got == nil || got.ID != "other" {
		t.Errorf("expected conflict with other, got %v", got)
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusScheduled, StatusConfirmed},
		{StatusScheduled, StatusInProgress},
		{StatusScheduled, StatusCancelled},
		{StatusScheduled, StatusRescheduled},
		{StatusConfirmed, StatusInProgress},
		{StatusConfirmed, StatusNoShow},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusCancelled},
		{StatusInProgress, StatusNoShow},
	}
	for _, tt := range allowed {
		if !CanTransition(tt.from, tt.to) {
			t.Errorf("expected %s -> %s to be allowed", tt.from, tt.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusScheduled, StatusCompleted},
		{StatusCompleted, StatusScheduled},
		{StatusCancelled, StatusConfirmed},
		{StatusNoShow, StatusScheduled},
		{StatusRescheduled, StatusConfirmed},
		{StatusInProgress, StatusRescheduled},
	}
	for _, tt := range denied {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("expected %s -> %s to be denied", tt.from, tt.to)
		}
	}
}
