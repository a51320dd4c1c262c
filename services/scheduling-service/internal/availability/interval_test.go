package availability

import (
	"testing"
	"time"
)

func iv(startMin, endMin int) Interval {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return Interval{
		Start: day.Add(time.Duration(startMin) * time.Minute),
		End:   day.Add(time.Duration(endMin) * time.Minute),
	}
}

func TestOverlaps_HalfOpen(t *testing.T) {
	cases := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", iv(540, 570), iv(600, 630), false},
		{"identical", iv(540, 570), iv(540, 570), true},
		{"partial", iv(540, 570), iv(555, 585), true},
		{"contained", iv(540, 600), iv(550, 560), true},
		{"touching endpoints do not overlap", iv(540, 570), iv(570, 600), false},
		{"touching the other way", iv(570, 600), iv(540, 570), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			// Overlap is symmetric.
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Fatalf("Overlaps (reversed) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestContains(t *testing.T) {
	window := iv(540, 570)
	if !window.Contains(window.Start) {
		t.Fatalf("interval must contain its own start")
	}
	if window.Contains(window.End) {
		t.Fatalf("half-open interval must not contain its end")
	}
	if !window.Contains(window.Start.Add(15 * time.Minute)) {
		t.Fatalf("interval must contain an interior point")
	}
	if window.Contains(window.Start.Add(-time.Minute)) {
		t.Fatalf("interval must not contain a point before start")
	}
}

func TestValid(t *testing.T) {
	if !iv(540, 570).Valid() {
		t.Fatalf("forward interval should be valid")
	}
	if iv(570, 570).Valid() {
		t.Fatalf("empty interval should be invalid")
	}
	if iv(570, 540).Valid() {
		t.Fatalf("reversed interval should be invalid")
	}
}
