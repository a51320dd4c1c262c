package booking

import (
	"context"
	"time"

	"github.com/lfmorais/agendo/services/scheduling-service/internal/availability"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/model"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/outbox"
)

// Store is the scheduling persistence boundary. Atomic runs fn as one unit
// of work: everything fn does through the Tx commits together or not at all.
// The implementation must guarantee that two units of work inserting
// overlapping slot-holding appointments for the same provider cannot both
// commit (the Postgres store uses an exclusion constraint for this).
type Store interface {
	Atomic(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the unit-of-work surface the engine drives. Implementations return
// ErrNotFound for absent or foreign-owned records and ErrSlotUnavailable for
// overlap-constraint or serialization failures on writes.
type Tx interface {
	GetProvider(ctx context.Context, providerID string) (model.Provider, error)
	GetService(ctx context.Context, providerID, serviceID string) (model.Service, error)

	// GetAppointmentForUpdate loads an appointment and locks its row for the
	// remainder of the unit of work.
	GetAppointmentForUpdate(ctx context.Context, providerID, appointmentID string) (model.Appointment, error)

	// FindOverlapping returns the provider's slot-holding appointments whose
	// intervals overlap iv, locked against concurrent modification.
	// excludeID omits the appointment being rescheduled.
	FindOverlapping(ctx context.Context, providerID string, iv availability.Interval, excludeID string) ([]model.Appointment, error)

	// ListOverlapping is the unlocked variant of FindOverlapping for
	// advisory reads (slot listing). Booking never relies on it.
	ListOverlapping(ctx context.Context, providerID string, iv availability.Interval) ([]model.Appointment, error)

	// CountCreatedInWindow counts appointments created in [start, end).
	CountCreatedInWindow(ctx context.Context, providerID string, start, end time.Time) (int, error)

	InsertAppointment(ctx context.Context, appt *model.Appointment) error
	UpdateAppointment(ctx context.Context, appt *model.Appointment) error
	UpdateStatus(ctx context.Context, providerID, appointmentID string, status model.Status) (model.Appointment, error)
	DeleteAppointment(ctx context.Context, providerID, appointmentID string) error

	// AppendEvent stages a notification event in the same unit of work.
	AppendEvent(ctx context.Context, evt outbox.Event) error
}
