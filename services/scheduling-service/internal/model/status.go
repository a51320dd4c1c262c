package model

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusScheduled, StatusConfirmed, StatusCanceled, StatusCompleted, StatusNoShow:
		return Status(s), true
	}
	return "", false
}

// HoldsSlot reports whether an appointment in this state still occupies its
// interval for conflict purposes. Canceled and no-show free the slot.
func (s Status) HoldsSlot() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// Terminal states accept no further transitions; the record can only be
// deleted outright.
func (s Status) Terminal() bool {
	switch s {
	case StatusCanceled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// CanTransitionTo implements the lifecycle table:
//
//	scheduled -> confirmed | canceled | completed | no_show
//	confirmed -> canceled | completed | no_show
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusScheduled:
		return next == StatusConfirmed || next == StatusCanceled ||
			next == StatusCompleted || next == StatusNoShow
	case StatusConfirmed:
		return next == StatusCanceled || next == StatusCompleted || next == StatusNoShow
	}
	return false
}
