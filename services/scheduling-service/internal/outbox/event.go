// Package outbox implements the transactional outbox: domain events are
// written in the same transaction as the state change, then relayed to Kafka
// by a background publisher. Notification delivery therefore never blocks a
// booking and never rolls one back.
package outbox

// Topic per event type.
const (
	EventAppointmentBooked   = "scheduling.appointment.booked.v1"
	EventAppointmentCanceled = "scheduling.appointment.canceled.v1"
)

// Event is the envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
