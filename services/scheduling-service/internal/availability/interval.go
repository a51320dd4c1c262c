// Package availability is the temporal core: half-open intervals, the
// conflict detector, and the slot generator. Everything here is pure; the
// same conflict code runs for slot listing and for booking so the two can
// never disagree.
package availability

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Valid() bool {
	return iv.End.After(iv.Start)
}

// Overlaps uses half-open semantics: [a,b) and [b,c) touch but do not
// overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}
