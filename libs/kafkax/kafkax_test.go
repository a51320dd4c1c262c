package kafkax

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestExtractEventMeta(t *testing.T) {
	msg := kafka.Message{
		Topic: "scheduling.appointment.booked.v1",
		Key:   []byte("agg-1"),
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte("evt-1")},
			{Key: "event_type", Value: []byte("custom.type")},
		},
	}
	meta := ExtractEventMeta(msg)
	if meta.EventID != "evt-1" || meta.EventType != "custom.type" {
		t.Fatalf("meta = %+v", meta)
	}

	// Headers are optional; key and topic are the fallbacks.
	meta = ExtractEventMeta(kafka.Message{Topic: "t1", Key: []byte("k1")})
	if meta.EventID != "k1" || meta.EventType != "t1" {
		t.Fatalf("fallback meta = %+v", meta)
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" kafka-1:9092, ,kafka-2:9092 ")
	if len(got) != 2 || got[0] != "kafka-1:9092" || got[1] != "kafka-2:9092" {
		t.Fatalf("SplitBrokers = %v", got)
	}
	if got := SplitBrokers(""); got != nil {
		t.Fatalf("SplitBrokers(\"\") = %v, want nil", got)
	}
}
