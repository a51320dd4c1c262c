package availability

import (
	"iter"
	"time"

	"github.com/lfmorais/agendo/services/scheduling-service/internal/model"
)

// SlotStep is the grid on which candidate slots start. Service durations are
// rounded up to a multiple of it so slots always align.
const SlotStep = 15 * time.Minute

// SlotWidth rounds a service duration up to the nearest SlotStep multiple.
func SlotWidth(serviceDuration time.Duration) time.Duration {
	if serviceDuration <= 0 {
		return 0
	}
	steps := (serviceDuration + SlotStep - 1) / SlotStep
	return steps * SlotStep
}

// Slots enumerates candidate start times for one day, ascending. A candidate
// is dropped when its slot would end after closing, overlap the break, or
// conflict with an existing slot-holding appointment. The sequence is finite
// and can be ranged over more than once; an empty day yields no values and
// is not an error.
func Slots(day time.Time, hours model.WorkingHours, serviceDuration time.Duration, existing []model.Appointment) iter.Seq[time.Time] {
	width := SlotWidth(serviceDuration)
	open, close := hours.DayWindow(day)
	brkStart, brkEnd, hasBreak := hours.BreakWindow(day)

	return func(yield func(time.Time) bool) {
		if width <= 0 || !close.After(open) {
			return
		}
		for t := open; !t.Add(width).After(close); t = t.Add(SlotStep) {
			candidate := Interval{Start: t, End: t.Add(width)}
			if hasBreak && candidate.Overlaps(Interval{Start: brkStart, End: brkEnd}) {
				continue
			}
			if HasConflict(candidate, existing, "") {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}
