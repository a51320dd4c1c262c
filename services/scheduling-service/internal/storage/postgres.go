// Package storage is the Postgres implementation of the scheduling store.
//
// The no-double-booking invariant is enforced at two levels: the engine's
// conflict check runs against rows locked FOR UPDATE inside the transaction,
// and the appointments table carries a btree_gist exclusion constraint on
// (provider_id, tstzrange(start_time, end_time)) limited to slot-holding
// statuses. The constraint closes the phantom-insert race the row locks
// cannot see; its violation (SQLSTATE 23P01) and serialization failures
// (40001) both surface as booking.ErrSlotUnavailable.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lfmorais/agendo/libs/db"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/availability"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/booking"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/model"
	"github.com/lfmorais/agendo/services/scheduling-service/internal/outbox"
)

type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func New(pool *db.Pool, outboxRepo *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: outboxRepo}
}

var _ booking.Store = (*Store)(nil)

func (s *Store) Atomic(ctx context.Context, fn func(tx booking.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx, outbox: s.outbox}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapWriteError(err)
	}
	return nil
}

type pgTx struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

const appointmentColumns = `
	id::text, provider_id::text, service_id::text, start_time, end_time, status,
	client_name, client_email, COALESCE(client_phone, ''), COALESCE(notes, ''),
	custom_fields, created_at, updated_at`

func (t *pgTx) GetProvider(ctx context.Context, providerID string) (model.Provider, error) {
	var p model.Provider
	var plan string
	err := t.tx.QueryRow(ctx, `
		SELECT id::text, plan, day_start_minute, day_end_minute, break_start_minute, break_end_minute
		FROM providers
		WHERE id = $1
	`, providerID).Scan(&p.ID, &plan,
		&p.Hours.DayStartMinute, &p.Hours.DayEndMinute,
		&p.Hours.BreakStartMinute, &p.Hours.BreakEndMinute)
	if err != nil {
		return model.Provider{}, mapReadError(err)
	}
	parsed, ok := model.ParsePlan(plan)
	if !ok {
		parsed = model.PlanFree
	}
	p.Plan = parsed
	return p, nil
}

func (t *pgTx) GetService(ctx context.Context, providerID, serviceID string) (model.Service, error) {
	var svc model.Service
	err := t.tx.QueryRow(ctx, `
		SELECT id::text, provider_id::text, name, duration_minutes, is_active
		FROM services
		WHERE id = $1 AND provider_id = $2
	`, serviceID, providerID).Scan(&svc.ID, &svc.ProviderID, &svc.Name, &svc.DurationMinutes, &svc.IsActive)
	if err != nil {
		return model.Service{}, mapReadError(err)
	}
	return svc, nil
}

func (t *pgTx) GetAppointmentForUpdate(ctx context.Context, providerID, appointmentID string) (model.Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND provider_id = $2
		FOR UPDATE
	`, appointmentID, providerID)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, mapReadError(err)
	}
	return appt, nil
}

func (t *pgTx) FindOverlapping(ctx context.Context, providerID string, iv availability.Interval, excludeID string) ([]model.Appointment, error) {
	return t.overlapping(ctx, providerID, iv, excludeID, true)
}

func (t *pgTx) ListOverlapping(ctx context.Context, providerID string, iv availability.Interval) ([]model.Appointment, error) {
	return t.overlapping(ctx, providerID, iv, "", false)
}

func (t *pgTx) overlapping(ctx context.Context, providerID string, iv availability.Interval, excludeID string, lock bool) ([]model.Appointment, error) {
	q := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE provider_id = $1
			AND status IN ('scheduled', 'confirmed')
			AND start_time < $3
			AND end_time > $2
			AND ($4 = '' OR id::text <> $4)
		ORDER BY start_time`
	if lock {
		q += `
		FOR UPDATE`
	}
	rows, err := t.tx.Query(ctx, q, providerID, iv.Start, iv.End, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

func (t *pgTx) CountCreatedInWindow(ctx context.Context, providerID string, start, end time.Time) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE provider_id = $1
			AND created_at >= $2
			AND created_at < $3
	`, providerID, start, end).Scan(&count)
	return count, err
}

func (t *pgTx) InsertAppointment(ctx context.Context, appt *model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, provider_id, service_id, start_time, end_time, status,
			 client_name, client_email, client_phone, notes, custom_fields,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, '{}'::jsonb), $12, $13)
	`, appt.ID, appt.ProviderID, appt.ServiceID, appt.StartTime, appt.EndTime, appt.Status,
		appt.ClientName, appt.ClientEmail, nullable(appt.ClientPhone), nullable(appt.Notes),
		appt.CustomFields, appt.CreatedAt, appt.UpdatedAt)
	return mapWriteError(err)
}

func (t *pgTx) UpdateAppointment(ctx context.Context, appt *model.Appointment) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET service_id = $3,
			start_time = $4,
			end_time = $5,
			client_name = $6,
			client_email = $7,
			client_phone = $8,
			notes = $9,
			custom_fields = COALESCE($10, '{}'::jsonb),
			updated_at = $11
		WHERE id = $1 AND provider_id = $2
	`, appt.ID, appt.ProviderID, appt.ServiceID, appt.StartTime, appt.EndTime,
		appt.ClientName, appt.ClientEmail, nullable(appt.ClientPhone), nullable(appt.Notes),
		appt.CustomFields, appt.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *pgTx) UpdateStatus(ctx context.Context, providerID, appointmentID string, status model.Status) (model.Appointment, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
			updated_at = now()
		WHERE id = $1 AND provider_id = $2
		RETURNING `+appointmentColumns, appointmentID, providerID, status)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, mapReadError(mapWriteError(err))
	}
	return appt, nil
}

func (t *pgTx) DeleteAppointment(ctx context.Context, providerID, appointmentID string) error {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1 AND provider_id = $2
	`, appointmentID, providerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *pgTx) AppendEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row rowScanner) (model.Appointment, error) {
	var appt model.Appointment
	err := row.Scan(
		&appt.ID,
		&appt.ProviderID,
		&appt.ServiceID,
		&appt.StartTime,
		&appt.EndTime,
		&appt.Status,
		&appt.ClientName,
		&appt.ClientEmail,
		&appt.ClientPhone,
		&appt.Notes,
		&appt.CustomFields,
		&appt.CreatedAt,
		&appt.UpdatedAt,
	)
	return appt, err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func mapReadError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return booking.ErrNotFound
	}
	return err
}

// mapWriteError folds the two "someone else got there first" SQLSTATEs into
// the engine's single race failure mode.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23P01": // exclusion_violation
			return booking.ErrSlotUnavailable
		case "40001": // serialization_failure
			return booking.ErrSlotUnavailable
		}
	}
	return err
}
