package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lfmorais/agendo/libs/httpx"
)

// The public surface has no authenticated session: the provider id arrives
// in the request, resolved externally from the provider's public booking
// link. Validation and conflict rules are identical to the owner surface;
// only active services are bookable here.

type publicBookRequest struct {
	ProviderID string `json:"provider_id"`
	createAppointmentRequest
}

func (h *SchedulingHandler) PublicBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req publicBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" {
		httpx.WriteError(w, http.StatusBadRequest, "provider_id required")
		return
	}
	bookReq, msg := req.toBookRequest(req.ProviderID, true)
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

func (h *SchedulingHandler) PublicSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	pid := strings.TrimSpace(q.Get("provider_id"))
	serviceID := strings.TrimSpace(q.Get("service_id"))
	day, okDay := parseDay(q.Get("date"))
	if pid == "" || serviceID == "" || !okDay {
		httpx.WriteError(w, http.StatusBadRequest, "provider_id, service_id and date are required")
		return
	}

	slots, err := h.engine.AvailableSlots(r.Context(), pid, serviceID, day, true)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slotViews(slots))
}
