package appointment

// FindConflict scans a doctor's appointments for the day and returns the
// first one overlapping the half-open [startMinute, startMinute+duration)
// candidate slot. Two slots overlap when the candidate starts before an
// existing slot ends and ends after it starts, so back-to-back bookings
// never collide. Appointments in non-blocking states are skipped, as is
// the appointment whose id equals excludeID (used when rescheduling).
func FindConflict(existing []Appointment, startMinute, durationMinutes int, excludeID string) *Appointment {
	end := startMinute + durationMinutes
	for i := range existing {
		a := &existing[i]
		if a.ID == excludeID {
			continue
		}
		if !a.Status.Blocks() {
			continue
		}
		if startMinute < a.EndMinute() && end > a.StartMinute {
			return a
		}
	}
	return nil
}
