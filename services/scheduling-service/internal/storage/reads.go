package storage

import (
	"context"
	"time"

	"github.com/lfmorais/agendo/services/scheduling-service/internal/model"
)

// Read-path queries run directly on the pool; they are listings, not part of
// any booking decision.

func (s *Store) GetAppointment(ctx context.Context, providerID, appointmentID string) (model.Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND provider_id = $2
	`, appointmentID, providerID)
	appt, err := scanAppointment(row)
	if err != nil {
		return model.Appointment{}, mapReadError(err)
	}
	return appt, nil
}

func (s *Store) ListByProvider(ctx context.Context, providerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, providerID, limit)
}

func (s *Store) ListUpcoming(ctx context.Context, providerID string, from time.Time, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
			AND status IN ('scheduled', 'confirmed')
			AND start_time >= $2
		ORDER BY start_time ASC
		LIMIT $3
	`, providerID, from, limit)
}

func (s *Store) ListByRange(ctx context.Context, providerID string, start, end time.Time) ([]model.Appointment, error) {
	return s.list(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
			AND start_time >= $2
			AND start_time < $3
		ORDER BY start_time ASC
	`, providerID, start, end)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
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

// UpsertProviderPlan applies a plan change received from the billing system.
// Unknown providers get a row with default working hours so a plan event
// arriving before first use is not lost.
func (s *Store) UpsertProviderPlan(ctx context.Context, providerID string, plan model.Plan) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO providers (id, plan)
		VALUES ($1, $2)
		ON CONFLICT (id)
		DO UPDATE SET plan = EXCLUDED.plan,
		              updated_at = now()
	`, providerID, plan)
	return err
}
