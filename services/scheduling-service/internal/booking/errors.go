package booking

import "errors"

// The closed set of failure kinds the engine reports. Handlers translate
// these to response codes; the engine never formats presentation text and
// never retries on its own.
var (
	// ErrNotFound covers an absent provider, service, or appointment, and
	// records not owned by the calling provider.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInterval covers non-positive durations and start >= end.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrSlotUnavailable means the interval conflicts with an existing
	// slot-holding appointment, including races lost at commit time.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrQuotaExceeded means the free-plan monthly creation limit is reached.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrInvalidTransition means the requested status is unreachable from
	// the appointment's current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)
