package availability

import "github.com/lfmorais/agendo/services/scheduling-service/internal/model"

// HasConflict reports whether candidate overlaps any slot-holding
// appointment in existing. excludeID skips the appointment being
// rescheduled; pass "" when creating.
func HasConflict(candidate Interval, existing []model.Appointment, excludeID string) bool {
	for _, a := range existing {
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if !a.Status.HoldsSlot() {
			continue
		}
		if candidate.Overlaps(Interval{Start: a.StartTime, End: a.EndTime}) {
			return true
		}
	}
	return false
}
