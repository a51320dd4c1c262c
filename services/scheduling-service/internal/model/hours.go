package model

import "time"

// WorkingHours is a provider's daily schedule, stored as minutes from
// midnight in the provider's local day. A break with start >= end means no
// break. The slot generator never hard-codes business hours; everything it
// needs lives here.
type WorkingHours struct {
	DayStartMinute   int
	DayEndMinute     int
	BreakStartMinute int
	BreakEndMinute   int
}

// DefaultWorkingHours is 08:00-18:00 with a 12:00-13:00 lunch break.
func DefaultWorkingHours() WorkingHours {
	return WorkingHours{
		DayStartMinute:   8 * 60,
		DayEndMinute:     18 * 60,
		BreakStartMinute: 12 * 60,
		BreakEndMinute:   13 * 60,
	}
}

// DayWindow anchors the working hours to a concrete day. The day argument is
// truncated to midnight in its own location.
func (w WorkingHours) DayWindow(day time.Time) (start, end time.Time) {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return midnight.Add(time.Duration(w.DayStartMinute) * time.Minute),
		midnight.Add(time.Duration(w.DayEndMinute) * time.Minute)
}

// BreakWindow anchors the break to a concrete day. ok is false when no break
// is configured.
func (w WorkingHours) BreakWindow(day time.Time) (start, end time.Time, ok bool) {
	if w.BreakEndMinute <= w.BreakStartMinute {
		return time.Time{}, time.Time{}, false
	}
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return midnight.Add(time.Duration(w.BreakStartMinute) * time.Minute),
		midnight.Add(time.Duration(w.BreakEndMinute) * time.Minute), true
}
