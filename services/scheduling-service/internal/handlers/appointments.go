package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lfmorais/agendo/libs/httpx"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/booking"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/model"
)

type createAppointmentRequest struct {
	ServiceID    string         `json:"service_id"`
	StartTime    string         `json:"start_time"`
	ClientName   string         `json:"client_name"`
	ClientEmail  string         `json:"client_email"`
	ClientPhone  string         `json:"client_phone"`
	Notes        string         `json:"notes"`
	CustomFields map[string]any `json:"custom_fields"`
}

func (req *createAppointmentRequest) toBookRequest(providerID string, public bool) (booking.BookRequest, string) {
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.ClientName = strings.TrimSpace(req.ClientName)
	req.ClientEmail = strings.TrimSpace(req.ClientEmail)
	if req.ServiceID == "" || req.ClientName == "" || req.ClientEmail == "" {
		return booking.BookRequest{}, "service_id, client_name and client_email are required"
	}
	start, ok := parseRFC3339(req.StartTime)
	if !ok {
		return booking.BookRequest{}, "invalid start_time"
	}
	return booking.BookRequest{
		ProviderID:   providerID,
		ServiceID:    req.ServiceID,
		StartTime:    start,
		ClientName:   req.ClientName,
		ClientEmail:  req.ClientEmail,
		ClientPhone:  strings.TrimSpace(req.ClientPhone),
		Notes:        strings.TrimSpace(req.Notes),
		CustomFields: req.CustomFields,
		Public:       public,
	}, ""
}

// Appointments serves GET (listing) and POST (owner booking) on
// /api/v1/appointments.
func (h *SchedulingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listAppointments(w, r)
	case http.MethodPost:
		h.createAppointment(w, r)
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *SchedulingHandler) createAppointment(w http.ResponseWriter, r *http.Request) {
	pid := providerID(r)
	if pid == "" {
		httpx.WriteError(w, http.StatusBadRequest, "provider identity missing")
		return
	}
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	bookReq, msg := req.toBookRequest(pid, false)
	if msg != "" {
		httpx.WriteError(w, http.StatusBadRequest, msg)
		return
	}
	appt, err := h.engine.Book(r.Context(), bookReq)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, viewOf(appt))
}

func (h *SchedulingHandler) listAppointments(w http.ResponseWriter, r *http.Request) {
	pid := providerID(r)
	if pid == "" {
		httpx.WriteError(w, http.StatusBadRequest, "provider identity missing")
		return
	}

	q := r.URL.Query()
	if id := strings.TrimSpace(q.Get("id")); id != "" {
		appt, err := h.reader.GetAppointment(r.Context(), pid, id)
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, viewOf(appt))
		return
	}

	limit := 50
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var (
		appts []model.Appointment
		err   error
	)
	switch {
	case q.Get("upcoming") == "true":
		appts, err = h.reader.ListUpcoming(r.Context(), pid, time.Now().UTC(), limit)
	case q.Get("start") != "" || q.Get("end") != "":
		start, okStart := parseRFC3339(q.Get("start"))
		end, okEnd := parseRFC3339(q.Get("end"))
		if !okStart || !okEnd || !end.After(start) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid start/end range")
			return
		}
		appts, err = h.reader.ListByRange(r.Context(), pid, start, end)
	default:
		appts, err = h.reader.ListByProvider(r.Context(), pid, limit)
	}
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewsOf(appts))
}

type updateAppointmentRequest struct {
	AppointmentID string         `json:"appointment_id"`
	StartTime     *string        `json:"start_time"`
	ServiceID     *string        `json:"service_id"`
	ClientName    *string        `json:"client_name"`
	ClientEmail   *string        `json:"client_email"`
	ClientPhone   *string        `json:"client_phone"`
	Notes         *string        `json:"notes"`
	CustomFields  map[string]any `json:"custom_fields"`
}

// Update reschedules and/or edits an appointment. Time and service changes
// are re-validated by the engine; other fields pass through.
func (h *SchedulingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	pid := providerID(r)
	if pid == "" {
		httpx.WriteError(w, http.StatusBadRequest, "provider identity missing")
		return
	}
	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "appointment_id required")
		return
	}

	resReq := booking.RescheduleRequest{
		AppointmentID: req.AppointmentID,
		ProviderID:    pid,
		ServiceID:     req.ServiceID,
		ClientName:    req.ClientName,
		ClientEmail:   req.ClientEmail,
		ClientPhone:   req.ClientPhone,
		Notes:         req.Notes,
		CustomFields:  req.CustomFields,
	}
	if req.StartTime != nil {
		start, ok := parseRFC3339(*req.StartTime)
		if !ok {
			httpx.WriteError(w, http.StatusBadRequest, "invalid start_time")
			return
		}
		resReq.StartTime = &start
	}

	appt, err := h.engine.Reschedule(r.Context(), resReq)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewOf(appt))
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

func (h *SchedulingHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	pid := providerID(r)
	if pid == "" {
		httpx.WriteError(w, http.StatusBadRequest, "provider identity missing")
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	status, ok := model.ParseStatus(strings.TrimSpace(req.Status))
	if req.AppointmentID == "" || !ok {
		httpx.WriteError(w, http.StatusBadRequest, "appointment_id and a valid status are required")
		return
	}

	appt, err := h.engine.TransitionStatus(r.Context(), pid, req.AppointmentID, status)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, viewOf(appt))
}

type deleteRequest struct {
	AppointmentID string `json:"appointment_id"`
}

func (h *SchedulingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	pid := providerID(r)
	if pid == "" {
		httpx.WriteError(w, http.StatusBadRequest, "provider identity missing")
		return
	}
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "appointment_id required")
		return
	}

	if err := h.engine.Remove(r.Context(), pid, req.AppointmentID); err != nil {
		h.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Slots lists bookable slots for the authenticated provider (inactive
// services included, unlike the public variant).
func (h *SchedulingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	pid := providerID(r)
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	day, okDay := parseDay(r.URL.Query().Get("date"))
	if pid == "" || serviceID == "" || !okDay {
		httpx.WriteError(w, http.StatusBadRequest, "provider identity, service_id and date are required")
		return
	}

	slots, err := h.engine.AvailableSlots(r.Context(), pid, serviceID, day, false)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slotViews(slots))
}
