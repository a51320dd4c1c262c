// Package handlers is the HTTP binding of the scheduling engine. It parses
// and validates transport input, delegates every decision to the engine, and
// maps the engine's error kinds to stable response codes.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lfmorais/agendo/libs/httpx"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/availability"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/booking"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/model"
)

// Scheduler is the engine surface the handlers drive.
type Scheduler interface {
	Book(ctx context.Context, req booking.BookRequest) (model.Appointment, error)
	Reschedule(ctx context.Context, req booking.RescheduleRequest) (model.Appointment, error)
	TransitionStatus(ctx context.Context, providerID, appointmentID string, next model.Status) (model.Appointment, error)
	Remove(ctx context.Context, providerID, appointmentID string) error
	AvailableSlots(ctx context.Context, providerID, serviceID string, day time.Time, public bool) ([]availability.Interval, error)
}

// AppointmentReader serves the listing endpoints outside the engine.
type AppointmentReader interface {
	GetAppointment(ctx context.Context, providerID, appointmentID string) (model.Appointment, error)
	ListByProvider(ctx context.Context, providerID string, limit int) ([]model.Appointment, error)
	ListUpcoming(ctx context.Context, providerID string, from time.Time, limit int) ([]model.Appointment, error)
	ListByRange(ctx context.Context, providerID string, start, end time.Time) ([]model.Appointment, error)
}

type SchedulingHandler struct {
	engine Scheduler
	reader AppointmentReader
	logger *slog.Logger
}

func NewSchedulingHandler(engine Scheduler, reader AppointmentReader, logger *slog.Logger) *SchedulingHandler {
	return &SchedulingHandler{engine: engine, reader: reader, logger: logger}
}

// ProviderIDHeader carries the authenticated provider identity, stamped by
// the auth layer in front of this service.
const ProviderIDHeader = "X-Provider-Id"

func providerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(ProviderIDHeader))
}

type appointmentView struct {
	ID           string         `json:"id"`
	ProviderID   string         `json:"provider_id"`
	ServiceID    string         `json:"service_id"`
	StartTime    string         `json:"start_time"`
	EndTime      string         `json:"end_time"`
	Status       string         `json:"status"`
	ClientName   string         `json:"client_name"`
	ClientEmail  string         `json:"client_email"`
	ClientPhone  string         `json:"client_phone,omitempty"`
	Notes        string         `json:"notes,omitempty"`
	CustomFields map[string]any `json:"custom_fields,omitempty"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

func viewOf(appt model.Appointment) appointmentView {
	return appointmentView{
		ID:           appt.ID,
		ProviderID:   appt.ProviderID,
		ServiceID:    appt.ServiceID,
		StartTime:    appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:      appt.EndTime.UTC().Format(time.RFC3339),
		Status:       string(appt.Status),
		ClientName:   appt.ClientName,
		ClientEmail:  appt.ClientEmail,
		ClientPhone:  appt.ClientPhone,
		Notes:        appt.Notes,
		CustomFields: appt.CustomFields,
		CreatedAt:    appt.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    appt.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func viewsOf(appts []model.Appointment) []appointmentView {
	views := make([]appointmentView, 0, len(appts))
	for _, appt := range appts {
		views = append(views, viewOf(appt))
	}
	return views
}

type slotView struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func slotViews(slots []availability.Interval) []slotView {
	views := make([]slotView, 0, len(slots))
	for _, s := range slots {
		views = append(views, slotView{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
		})
	}
	return views
}

// writeEngineError is the single mapping from engine error kinds to response
// codes. 402 for quota follows the billing convention used elsewhere in the
// platform.
func (h *SchedulingHandler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, booking.ErrInvalidInterval):
		httpx.WriteError(w, http.StatusBadRequest, "invalid time interval")
	case errors.Is(err, booking.ErrSlotUnavailable):
		httpx.WriteError(w, http.StatusConflict, "time slot is no longer available")
	case errors.Is(err, booking.ErrQuotaExceeded):
		httpx.WriteError(w, http.StatusPaymentRequired, "monthly appointment limit reached (upgrade required)")
	case errors.Is(err, booking.ErrInvalidTransition):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "status transition not allowed")
	default:
		h.logger.Error("scheduling engine error", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseDay(raw string) (time.Time, bool) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(raw), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func parseRFC3339(raw string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
