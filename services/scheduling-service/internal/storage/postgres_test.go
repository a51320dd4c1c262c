package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lfmorais/agendo/services/scheduling-service/internal/booking"
)

func TestMapWriteError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"exclusion violation", &pgconn.PgError{Code: "23P01"}, booking.ErrSlotUnavailable},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, booking.ErrSlotUnavailable},
		{"wrapped exclusion violation", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "23P01"}), booking.ErrSlotUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapWriteError(tc.in)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("mapWriteError = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Fatalf("mapWriteError = %v, want %v", got, tc.want)
			}
		})
	}

	// Other SQLSTATEs pass through untouched.
	unique := &pgconn.PgError{Code: "23505"}
	if got := mapWriteError(unique); !errors.As(got, new(*pgconn.PgError)) {
		t.Fatalf("mapWriteError(%v) = %v, want passthrough", unique, got)
	}
}

func TestMapReadError(t *testing.T) {
	if got := mapReadError(pgx.ErrNoRows); !errors.Is(got, booking.ErrNotFound) {
		t.Fatalf("mapReadError(ErrNoRows) = %v, want ErrNotFound", got)
	}
	if got := mapReadError(fmt.Errorf("scan: %w", pgx.ErrNoRows)); !errors.Is(got, booking.ErrNotFound) {
		t.Fatalf("wrapped ErrNoRows = %v, want ErrNotFound", got)
	}
	other := errors.New("connection reset")
	if got := mapReadError(other); got != other {
		t.Fatalf("mapReadError(%v) = %v, want passthrough", other, got)
	}
}

func TestNullable(t *testing.T) {
	if v := nullable(""); v != nil {
		t.Fatalf("nullable(\"\") = %v, want nil", v)
	}
	if v := nullable("x"); v != "x" {
		t.Fatalf("nullable(\"x\") = %v", v)
	}
}
