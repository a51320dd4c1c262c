// Package booking is the appointment lifecycle engine. It composes the slot
// generator, conflict detector, and quota policy over a transactional store,
// and is the only place booking decisions are made.
package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lfmorais/agendo/services/scheduling-service/internal/availability"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/model"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/outbox"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/quota"
)

type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewEngine(store Store, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger, now: time.Now}
}

// BookRequest creates an appointment. Public marks bookings arriving through
// the unauthenticated booking link, which additionally require an active
// service.
type BookRequest struct {
	ProviderID   string
	ServiceID    string
	StartTime    time.Time
	ClientName   string
	ClientEmail  string
	ClientPhone  string
	Notes        string
	CustomFields map[string]any
	Public       bool
}

// Book runs the whole check-and-write sequence in one unit of work:
// re-fetch overlapping appointments, detect conflicts, evaluate the quota,
// then insert. A race lost at commit time surfaces as ErrSlotUnavailable,
// same as a pre-detected conflict.
func (e *Engine) Book(ctx context.Context, req BookRequest) (model.Appointment, error) {
	if req.StartTime.IsZero() {
		return model.Appointment{}, ErrInvalidInterval
	}

	var out model.Appointment
	err := e.store.Atomic(ctx, func(tx Tx) error {
		provider, err := tx.GetProvider(ctx, req.ProviderID)
		if err != nil {
			return err
		}
		svc, err := tx.GetService(ctx, req.ProviderID, req.ServiceID)
		if err != nil {
			return err
		}
		if req.Public && !svc.IsActive {
			return ErrNotFound
		}
		if svc.DurationMinutes <= 0 {
			return ErrInvalidInterval
		}

		iv := availability.Interval{Start: req.StartTime, End: req.StartTime.Add(svc.Duration())}
		existing, err := tx.FindOverlapping(ctx, req.ProviderID, iv, "")
		if err != nil {
			return err
		}
		if availability.HasConflict(iv, existing, "") {
			return ErrSlotUnavailable
		}

		if _, limited := quota.MonthlyLimit(provider.Plan); limited {
			winStart, winEnd := quota.MonthWindow(e.now())
			count, err := tx.CountCreatedInWindow(ctx, req.ProviderID, winStart, winEnd)
			if err != nil {
				return err
			}
			if !quota.WithinQuota(provider.Plan, count) {
				return ErrQuotaExceeded
			}
		}

		now := e.now().UTC()
		appt := model.Appointment{
			ID:           uuid.NewString(),
			ProviderID:   req.ProviderID,
			ServiceID:    svc.ID,
			StartTime:    iv.Start,
			EndTime:      iv.End,
			Status:       model.StatusScheduled,
			ClientName:   req.ClientName,
			ClientEmail:  req.ClientEmail,
			ClientPhone:  req.ClientPhone,
			Notes:        req.Notes,
			CustomFields: req.CustomFields,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.InsertAppointment(ctx, &appt); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, bookedEvent(appt)); err != nil {
			return err
		}
		out = appt
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return out, nil
}

// RescheduleRequest updates an appointment. Nil pointer fields are left
// unchanged. A new start time or service re-derives the end time and
// re-runs conflict detection; other fields pass through without it.
type RescheduleRequest struct {
	AppointmentID string
	ProviderID    string
	StartTime     *time.Time
	ServiceID     *string
	ClientName    *string
	ClientEmail   *string
	ClientPhone   *string
	Notes         *string
	CustomFields  map[string]any
}

func (e *Engine) Reschedule(ctx context.Context, req RescheduleRequest) (model.Appointment, error) {
	var out model.Appointment
	err := e.store.Atomic(ctx, func(tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, req.ProviderID, req.AppointmentID)
		if err != nil {
			return err
		}

		if req.StartTime != nil || req.ServiceID != nil {
			serviceID := appt.ServiceID
			if req.ServiceID != nil {
				serviceID = *req.ServiceID
			}
			svc, err := tx.GetService(ctx, req.ProviderID, serviceID)
			if err != nil {
				return err
			}
			if svc.DurationMinutes <= 0 {
				return ErrInvalidInterval
			}

			start := appt.StartTime
			if req.StartTime != nil {
				if req.StartTime.IsZero() {
					return ErrInvalidInterval
				}
				start = *req.StartTime
			}
			iv := availability.Interval{Start: start, End: start.Add(svc.Duration())}

			existing, err := tx.FindOverlapping(ctx, req.ProviderID, iv, appt.ID)
			if err != nil {
				return err
			}
			if availability.HasConflict(iv, existing, appt.ID) {
				return ErrSlotUnavailable
			}

			appt.ServiceID = svc.ID
			appt.StartTime = iv.Start
			appt.EndTime = iv.End
		}

		if req.ClientName != nil {
			appt.ClientName = *req.ClientName
		}
		if req.ClientEmail != nil {
			appt.ClientEmail = *req.ClientEmail
		}
		if req.ClientPhone != nil {
			appt.ClientPhone = *req.ClientPhone
		}
		if req.Notes != nil {
			appt.Notes = *req.Notes
		}
		if req.CustomFields != nil {
			appt.CustomFields = req.CustomFields
		}
		appt.UpdatedAt = e.now().UTC()

		if err := tx.UpdateAppointment(ctx, &appt); err != nil {
			return err
		}
		out = appt
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return out, nil
}

// TransitionStatus applies the lifecycle table. Re-canceling an already
// canceled appointment is an idempotent no-op success; every other
// transition missing from the table is ErrInvalidTransition.
func (e *Engine) TransitionStatus(ctx context.Context, providerID, appointmentID string, next model.Status) (model.Appointment, error) {
	var out model.Appointment
	err := e.store.Atomic(ctx, func(tx Tx) error {
		appt, err := tx.GetAppointmentForUpdate(ctx, providerID, appointmentID)
		if err != nil {
			return err
		}
		if appt.Status == model.StatusCanceled && next == model.StatusCanceled {
			out = appt
			return nil
		}
		if !appt.Status.CanTransitionTo(next) {
			return ErrInvalidTransition
		}

		updated, err := tx.UpdateStatus(ctx, providerID, appointmentID, next)
		if err != nil {
			return err
		}
		if next == model.StatusCanceled {
			if err := tx.AppendEvent(ctx, canceledEvent(updated, e.now().UTC())); err != nil {
				return err
			}
		}
		out = updated
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return out, nil
}

// Remove deletes an appointment outright, regardless of status. Ownership is
// enforced by scoping the lookup to the provider.
func (e *Engine) Remove(ctx context.Context, providerID, appointmentID string) error {
	return e.store.Atomic(ctx, func(tx Tx) error {
		if _, err := tx.GetAppointmentForUpdate(ctx, providerID, appointmentID); err != nil {
			return err
		}
		return tx.DeleteAppointment(ctx, providerID, appointmentID)
	})
}

// AvailableSlots enumerates bookable intervals for a service on one day.
// The read is advisory: nothing is locked, and booking re-runs the
// authoritative check. An empty day returns an empty slice.
func (e *Engine) AvailableSlots(ctx context.Context, providerID, serviceID string, day time.Time, public bool) ([]availability.Interval, error) {
	var slots []availability.Interval
	err := e.store.Atomic(ctx, func(tx Tx) error {
		provider, err := tx.GetProvider(ctx, providerID)
		if err != nil {
			return err
		}
		svc, err := tx.GetService(ctx, providerID, serviceID)
		if err != nil {
			return err
		}
		if public && !svc.IsActive {
			return ErrNotFound
		}

		open, close := provider.Hours.DayWindow(day)
		existing, err := tx.ListOverlapping(ctx, providerID, availability.Interval{Start: open, End: close})
		if err != nil {
			return err
		}

		width := availability.SlotWidth(svc.Duration())
		for start := range availability.Slots(day, provider.Hours, svc.Duration(), existing) {
			slots = append(slots, availability.Interval{Start: start, End: start.Add(width)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}

func bookedEvent(appt model.Appointment) outbox.Event {
	payload, _ := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"provider_id":    appt.ProviderID,
		"service_id":     appt.ServiceID,
		"client_name":    appt.ClientName,
		"client_email":   appt.ClientEmail,
		"client_phone":   appt.ClientPhone,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
	})
	return outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentBooked,
		Payload:       payload,
	}
}

func canceledEvent(appt model.Appointment, canceledAt time.Time) outbox.Event {
	payload, _ := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"provider_id":    appt.ProviderID,
		"service_id":     appt.ServiceID,
		"client_email":   appt.ClientEmail,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
		"canceled_at":    canceledAt.Format(time.RFC3339),
	})
	return outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentCanceled,
		Payload:       payload,
	}
}
