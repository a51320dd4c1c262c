package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lfmorais/agendo/services/scheduling-service/internal/availability"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/model"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/outbox"
)

// memStore is an in-memory Store with the same commit discipline as the
// Postgres implementation: units of work are serialized, a failed fn rolls
// everything back, and inserts/updates enforce the no-overlap constraint so
// a race lost at write time surfaces as ErrSlotUnavailable.
type memStore struct {
	mu           sync.Mutex
	providers    map[string]model.Provider
	services     map[string]model.Service
	appointments []model.Appointment
	events       []outbox.Event

	// afterFind, when set, runs after FindOverlapping returns. Tests use it
	// to slip a competing write in between the conflict check and the
	// insert.
	afterFind func(s *memStore)
}

func newMemStore() *memStore {
	return &memStore{
		providers: map[string]model.Provider{},
		services:  map[string]model.Service{},
	}
}

func (s *memStore) Atomic(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	savedAppts := append([]model.Appointment(nil), s.appointments...)
	savedEvents := append([]outbox.Event(nil), s.events...)
	if err := fn(&memTx{s: s}); err != nil {
		s.appointments = savedAppts
		s.events = savedEvents
		return err
	}
	return nil
}

type memTx struct {
	s *memStore
}

func (t *memTx) GetProvider(_ context.Context, providerID string) (model.Provider, error) {
	p, ok := t.s.providers[providerID]
	if !ok {
		return model.Provider{}, ErrNotFound
	}
	return p, nil
}

func (t *memTx) GetService(_ context.Context, providerID, serviceID string) (model.Service, error) {
	svc, ok := t.s.services[providerID+"/"+serviceID]
	if !ok {
		return model.Service{}, ErrNotFound
	}
	return svc, nil
}

func (t *memTx) GetAppointmentForUpdate(_ context.Context, providerID, appointmentID string) (model.Appointment, error) {
	for _, a := range t.s.appointments {
		if a.ProviderID == providerID && a.ID == appointmentID {
			return a, nil
		}
	}
	return model.Appointment{}, ErrNotFound
}

func (t *memTx) overlapping(providerID string, iv availability.Interval, excludeID string) []model.Appointment {
	var out []model.Appointment
	for _, a := range t.s.appointments {
		if a.ProviderID != providerID || !a.Status.HoldsSlot() {
			continue
		}
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if iv.Overlaps(availability.Interval{Start: a.StartTime, End: a.EndTime}) {
			out = append(out, a)
		}
	}
	return out
}

func (t *memTx) FindOverlapping(_ context.Context, providerID string, iv availability.Interval, excludeID string) ([]model.Appointment, error) {
	out := t.overlapping(providerID, iv, excludeID)
	if t.s.afterFind != nil {
		hook := t.s.afterFind
		t.s.afterFind = nil
		hook(t.s)
	}
	return out, nil
}

func (t *memTx) ListOverlapping(_ context.Context, providerID string, iv availability.Interval) ([]model.Appointment, error) {
	return t.overlapping(providerID, iv, ""), nil
}

func (t *memTx) CountCreatedInWindow(_ context.Context, providerID string, start, end time.Time) (int, error) {
	n := 0
	for _, a := range t.s.appointments {
		if a.ProviderID == providerID && !a.CreatedAt.Before(start) && a.CreatedAt.Before(end) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertAppointment(_ context.Context, appt *model.Appointment) error {
	iv := availability.Interval{Start: appt.StartTime, End: appt.EndTime}
	if appt.Status.HoldsSlot() && len(t.overlapping(appt.ProviderID, iv, appt.ID)) > 0 {
		return ErrSlotUnavailable
	}
	t.s.appointments = append(t.s.appointments, *appt)
	return nil
}

func (t *memTx) UpdateAppointment(_ context.Context, appt *model.Appointment) error {
	iv := availability.Interval{Start: appt.StartTime, End: appt.EndTime}
	if appt.Status.HoldsSlot() && len(t.overlapping(appt.ProviderID, iv, appt.ID)) > 0 {
		return ErrSlotUnavailable
	}
	for i, a := range t.s.appointments {
		if a.ProviderID == appt.ProviderID && a.ID == appt.ID {
			t.s.appointments[i] = *appt
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) UpdateStatus(_ context.Context, providerID, appointmentID string, status model.Status) (model.Appointment, error) {
	for i, a := range t.s.appointments {
		if a.ProviderID == providerID && a.ID == appointmentID {
			t.s.appointments[i].Status = status
			t.s.appointments[i].UpdatedAt = time.Now().UTC()
			return t.s.appointments[i], nil
		}
	}
	return model.Appointment{}, ErrNotFound
}

func (t *memTx) DeleteAppointment(_ context.Context, providerID, appointmentID string) error {
	for i, a := range t.s.appointments {
		if a.ProviderID == providerID && a.ID == appointmentID {
			t.s.appointments = append(t.s.appointments[:i], t.s.appointments[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) AppendEvent(_ context.Context, evt outbox.Event) error {
	t.s.events = append(t.s.events, evt)
	return nil
}

var testNow = time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func newTestEngine(store *memStore) *Engine {
	store.providers["p1"] = model.Provider{ID: "p1", Plan: model.PlanFree, Hours: model.DefaultWorkingHours()}
	store.services["p1/s1"] = model.Service{ID: "s1", ProviderID: "p1", Name: "Consultation", DurationMinutes: 30, IsActive: true}
	store.services["p1/s2"] = model.Service{ID: "s2", ProviderID: "p1", Name: "Legacy", DurationMinutes: 45, IsActive: false}

	e := NewEngine(store, slog.New(slog.DiscardHandler))
	e.now = func() time.Time { return testNow }
	return e
}

func mustBook(t *testing.T, e *Engine, req BookRequest) model.Appointment {
	t.Helper()
	appt, err := e.Book(context.Background(), req)
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	return appt
}

func TestBook_Success(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	appt := mustBook(t, e, BookRequest{
		ProviderID:  "p1",
		ServiceID:   "s1",
		StartTime:   at(10, 0),
		ClientName:  "Ana Souza",
		ClientEmail: "ana@example.com",
	})

	if appt.Status != model.StatusScheduled {
		t.Fatalf("status = %s, want scheduled", appt.Status)
	}
	if !appt.EndTime.Equal(at(10, 30)) {
		t.Fatalf("end = %v, want %v", appt.EndTime, at(10, 30))
	}
	if appt.ID == "" {
		t.Fatalf("appointment id not assigned")
	}

	if len(store.events) != 1 || store.events[0].EventType != outbox.EventAppointmentBooked {
		t.Fatalf("events = %+v, want one booked event", store.events)
	}
	if store.events[0].AggregateID != appt.ID {
		t.Fatalf("event aggregate = %s, want %s", store.events[0].AggregateID, appt.ID)
	}
}

func TestBook_Conflict(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Ana"})

	_, err := e.Book(context.Background(), BookRequest{
		ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 15), ClientName: "Bia",
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}

	// Touching slots are fine.
	mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 30), ClientName: "Bia"})
}

func TestBook_CanceledSlotIsReusable(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	first := mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Ana"})
	if _, err := e.TransitionStatus(context.Background(), "p1", first.ID, model.StatusCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Bia"})
}

func TestBook_NotFound(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	if _, err := e.Book(context.Background(), BookRequest{ProviderID: "nope", ServiceID: "s1", StartTime: at(10, 0)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown provider: err = %v, want ErrNotFound", err)
	}
	if _, err := e.Book(context.Background(), BookRequest{ProviderID: "p1", ServiceID: "nope", StartTime: at(10, 0)}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown service: err = %v, want ErrNotFound", err)
	}
}

func TestBook_InactiveService(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	// Public booking links only see active services.
	_, err := e.Book(context.Background(), BookRequest{
		ProviderID: "p1", ServiceID: "s2", StartTime: at(10, 0), Public: true,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("public inactive: err = %v, want ErrNotFound", err)
	}

	// The owner can still book it directly.
	mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s2", StartTime: at(10, 0), ClientName: "Ana"})
}

func TestBook_ZeroStartTime(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	if _, err := e.Book(context.Background(), BookRequest{ProviderID: "p1", ServiceID: "s1"}); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("err = %v, want ErrInvalidInterval", err)
	}
}

func TestBook_FreePlanQuota(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	// Fill the free-tier allowance, each in its own slot. Canceled
	// appointments still count: the quota meters creations, not holds.
	for i := 0; i < 10; i++ {
		appt := mustBook(t, e, BookRequest{
			ProviderID: "p1", ServiceID: "s1",
			StartTime:  at(8, 0).Add(time.Duration(i) * 30 * time.Minute),
			ClientName: "Client",
		})
		if i == 0 {
			if _, err := e.TransitionStatus(context.Background(), "p1", appt.ID, model.StatusCanceled); err != nil {
				t.Fatalf("cancel: %v", err)
			}
		}
	}

	_, err := e.Book(context.Background(), BookRequest{
		ProviderID: "p1", ServiceID: "s1", StartTime: at(16, 0), ClientName: "Client",
	})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}

	// A paid plan lifts the cap immediately.
	p := store.providers["p1"]
	p.Plan = model.PlanPro
	store.providers["p1"] = p
	mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(16, 0), ClientName: "Client"})
}

func TestBook_QuotaWindowIsCalendarMonth(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	// Ten creations last month do not count against this month.
	for i := 0; i < 10; i++ {
		store.appointments = append(store.appointments, model.Appointment{
			ID:         "old" + string(rune('a'+i)),
			ProviderID: "p1",
			ServiceID:  "s1",
			StartTime:  at(8, 0).AddDate(0, -1, 0),
			EndTime:    at(8, 30).AddDate(0, -1, 0),
			Status:     model.StatusCompleted,
			CreatedAt:  testNow.AddDate(0, -1, 0),
		})
	}

	mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Ana"})
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Book(context.Background(), BookRequest{
				ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Racer",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, unavailable int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrSlotUnavailable):
			unavailable++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || unavailable != n-1 {
		t.Fatalf("got %d successes and %d conflicts, want 1 and %d", ok, unavailable, n-1)
	}
}

func TestBook_RaceLostAtWrite(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	// A competing booking lands between the conflict check and our write.
	// The constraint rejects the insert and the whole unit of work rolls
	// back, including the staged event.
	store.afterFind = func(s *memStore) {
		s.appointments = append(s.appointments, model.Appointment{
			ID: "rival", ProviderID: "p1", ServiceID: "s1",
			StartTime: at(10, 0), EndTime: at(10, 30),
			Status: model.StatusScheduled, CreatedAt: testNow,
		})
	}

	_, err := e.Book(context.Background(), BookRequest{
		ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Ana",
	})
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}
	if len(store.events) != 0 {
		t.Fatalf("rolled-back booking must not leave events, got %d", len(store.events))
	}
}

func TestReschedule(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	first := mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Ana"})
	mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(11, 0), ClientName: "Bia"})

	// Shifting within the appointment's own interval is allowed.
	start := at(10, 15)
	appt, err := e.Reschedule(context.Background(), RescheduleRequest{
		AppointmentID: first.ID, ProviderID: "p1", StartTime: &start,
	})
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if !appt.StartTime.Equal(at(10, 15)) || !appt.EndTime.Equal(at(10, 45)) {
		t.Fatalf("interval = [%v, %v), want [10:15, 10:45)", appt.StartTime, appt.EndTime)
	}

	// Moving onto another appointment is not.
	start = at(11, 15)
	if _, err := e.Reschedule(context.Background(), RescheduleRequest{
		AppointmentID: first.ID, ProviderID: "p1", StartTime: &start,
	}); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("err = %v, want ErrSlotUnavailable", err)
	}
}

func TestReschedule_ServiceChangeRederivesEnd(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	first := mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Ana"})

	svc := "s2"
	appt, err := e.Reschedule(context.Background(), RescheduleRequest{
		AppointmentID: first.ID, ProviderID: "p1", ServiceID: &svc,
	})
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if appt.ServiceID != "s2" || !appt.EndTime.Equal(at(10, 45)) {
		t.Fatalf("service = %s end = %v, want s2 ending 10:45", appt.ServiceID, appt.EndTime)
	}
}

func TestReschedule_DetailsOnlySkipsConflictCheck(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	first := mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Ana"})

	notes := "bring referral letter"
	appt, err := e.Reschedule(context.Background(), RescheduleRequest{
		AppointmentID: first.ID, ProviderID: "p1", Notes: &notes,
	})
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if appt.Notes != notes {
		t.Fatalf("notes = %q, want %q", appt.Notes, notes)
	}
	if !appt.StartTime.Equal(first.StartTime) || appt.ClientName != "Ana" {
		t.Fatalf("untouched fields changed: %+v", appt)
	}
}

func TestReschedule_WrongProvider(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)
	store.providers["p2"] = model.Provider{ID: "p2", Plan: model.PlanFree, Hours: model.DefaultWorkingHours()}

	first := mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Ana"})

	if _, err := e.Reschedule(context.Background(), RescheduleRequest{
		AppointmentID: first.ID, ProviderID: "p2",
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTransitionStatus(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	appt := mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Ana"})

	confirmed, err := e.TransitionStatus(context.Background(), "p1", appt.ID, model.StatusConfirmed)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != model.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", confirmed.Status)
	}

	if _, err := e.TransitionStatus(context.Background(), "p1", appt.ID, model.StatusScheduled); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("confirmed->scheduled: err = %v, want ErrInvalidTransition", err)
	}

	if _, err := e.TransitionStatus(context.Background(), "p1", appt.ID, model.StatusCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if n := len(store.events); n != 2 || store.events[1].EventType != outbox.EventAppointmentCanceled {
		t.Fatalf("events = %d, want booked then canceled", n)
	}

	// Re-canceling is an idempotent success and stages no second event.
	again, err := e.TransitionStatus(context.Background(), "p1", appt.ID, model.StatusCanceled)
	if err != nil {
		t.Fatalf("re-cancel: %v", err)
	}
	if again.Status != model.StatusCanceled || len(store.events) != 2 {
		t.Fatalf("re-cancel must be a no-op, status = %s events = %d", again.Status, len(store.events))
	}

	// Every other transition out of a terminal state stays rejected.
	if _, err := e.TransitionStatus(context.Background(), "p1", appt.ID, model.StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("canceled->completed: err = %v, want ErrInvalidTransition", err)
	}
}

func TestRemove(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	appt := mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Ana"})

	if err := e.Remove(context.Background(), "p1", appt.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := e.Remove(context.Background(), "p1", appt.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove: err = %v, want ErrNotFound", err)
	}

	// The slot is free again.
	mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Bia"})
}

func TestAvailableSlots_AgreesWithBooking(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: at(10, 0), ClientName: "Ana"})

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	slots, err := e.AvailableSlots(context.Background(), "p1", "s1", day, false)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	if len(slots) == 0 {
		t.Fatalf("expected available slots")
	}

	for _, s := range slots {
		if s.Overlaps(availability.Interval{Start: at(10, 0), End: at(10, 30)}) {
			t.Fatalf("slot %v overlaps the booked appointment", s)
		}
		if s.Overlaps(availability.Interval{Start: at(12, 0), End: at(13, 0)}) {
			t.Fatalf("slot %v overlaps the break", s)
		}
	}

	// Every advertised slot is actually bookable.
	mustBook(t, e, BookRequest{ProviderID: "p1", ServiceID: "s1", StartTime: slots[0].Start, ClientName: "Bia"})
}

func TestAvailableSlots_PublicRequiresActiveService(t *testing.T) {
	store := newMemStore()
	e := newTestEngine(store)

	if _, err := e.AvailableSlots(context.Background(), "p1", "s2", at(0, 0), true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := e.AvailableSlots(context.Background(), "p1", "s2", at(0, 0), false); err != nil {
		t.Fatalf("owner slot listing: %v", err)
	}
}
