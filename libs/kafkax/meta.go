package kafkax

import (
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Header keys producers attach to every event.
const (
	HeaderEventID    = "event_id"
	HeaderEventType  = "event_type"
	HeaderOccurredAt = "occurred_at"
)

// EventMeta identifies a consumed event. Missing headers fall back to the
// message key, the topic and the broker timestamp.
type EventMeta struct {
	EventID    string
	EventType  string
	Key        string
	Topic      string
	Partition  int
	Offset     int64
	OccurredAt time.Time
}

func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:    HeaderValue(msg.Headers, HeaderEventID),
		EventType:  HeaderValue(msg.Headers, HeaderEventType),
		Key:        string(msg.Key),
		Topic:      msg.Topic,
		Partition:  msg.Partition,
		Offset:     msg.Offset,
		OccurredAt: msg.Time,
	}
	if meta.EventID == "" {
		meta.EventID = meta.Key
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	if raw := HeaderValue(msg.Headers, HeaderOccurredAt); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			meta.OccurredAt = t
		}
	}
	return meta
}

// LogArgs returns the meta as slog key/value pairs.
func (m EventMeta) LogArgs() []any {
	args := []any{
		"event_id", m.EventID,
		"event_type", m.EventType,
		"topic", m.Topic,
		"partition", m.Partition,
		"offset", m.Offset,
	}
	if !m.OccurredAt.IsZero() {
		args = append(args, "occurred_at", m.OccurredAt.UTC().Format(time.RFC3339))
	}
	return args
}

// HeaderValue returns the last header named key, so re-published messages
// can override earlier values.
func HeaderValue(headers []kafka.Header, key string) string {
	for i := len(headers) - 1; i >= 0; i-- {
		if headers[i].Key == key {
			return string(headers[i].Value)
		}
	}
	return ""
}

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
