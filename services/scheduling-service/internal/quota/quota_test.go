package quota

import (
	"testing"
	"time"

	"github.com/lfmorais/agendo/services/scheduling-service/internal/model"
)

func TestWithinQuota(t *testing.T) {
	cases := []struct {
		name  string
		plan  model.Plan
		count int
		want  bool
	}{
		{"free under limit", model.PlanFree, 0, true},
		{"free one below limit", model.PlanFree, FreeMonthlyAppointments - 1, true},
		{"free at limit", model.PlanFree, FreeMonthlyAppointments, false},
		{"free over limit", model.PlanFree, FreeMonthlyAppointments + 5, false},
		{"basic unmetered", model.PlanBasic, 10_000, true},
		{"pro unmetered", model.PlanPro, 10_000, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WithinQuota(tc.plan, tc.count); got != tc.want {
				t.Fatalf("WithinQuota(%s, %d) = %v, want %v", tc.plan, tc.count, got, tc.want)
			}
		})
	}
}

func TestMonthlyLimit(t *testing.T) {
	if limit, limited := MonthlyLimit(model.PlanFree); !limited || limit != FreeMonthlyAppointments {
		t.Fatalf("free plan limit = %d, %v", limit, limited)
	}
	if _, limited := MonthlyLimit(model.PlanBasic); limited {
		t.Fatalf("basic plan should be unmetered")
	}
	if _, limited := MonthlyLimit(model.PlanPro); limited {
		t.Fatalf("pro plan should be unmetered")
	}
}

func TestMonthWindow(t *testing.T) {
	at := time.Date(2026, 3, 17, 14, 30, 0, 0, time.UTC)
	start, end := MonthWindow(at)

	if want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("start = %v, want %v", start, want)
	}
	if want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("end = %v, want %v", end, want)
	}

	// Year rollover.
	_, end = MonthWindow(time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC))
	if want := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("december window end = %v, want %v", end, want)
	}
}
