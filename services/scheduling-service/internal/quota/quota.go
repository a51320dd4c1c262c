// Package quota evaluates plan-based appointment creation limits.
package quota

import (
	"time"

	"github.com/lfmorais/agendo/services/scheduling-service/internal/model"
)

// FreeMonthlyAppointments is the free-tier cap. Paid tiers are unlimited;
// only this constant is enforced by the engine.
const FreeMonthlyAppointments = 10

// MonthlyLimit returns the appointment cap for a plan. limited is false for
// unmetered plans.
func MonthlyLimit(p model.Plan) (limit int, limited bool) {
	if p == model.PlanFree {
		return FreeMonthlyAppointments, true
	}
	return 0, false
}

// WithinQuota reports whether one more appointment may be created given the
// count already created in the current billing window.
func WithinQuota(p model.Plan, countInWindow int) bool {
	limit, limited := MonthlyLimit(p)
	if !limited {
		return true
	}
	return countInWindow < limit
}

// MonthWindow returns the half-open calendar-month window containing at,
// in at's location.
func MonthWindow(at time.Time) (start, end time.Time) {
	start = time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
	return start, start.AddDate(0, 1, 0)
}
