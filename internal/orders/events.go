package orders

import (
	"context"
	"encoding/json"
	kafkax "github.com/ariefcatur/stars-storefront/internal/kafka"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"strconv"
	"time"
)

const (
	EventOrderNotification = "OrderNotification"
	EventVersion           = 1

	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// Publisher is satisfied by kafka.Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// EventNotifier hands notifications to the notifier worker through Kafka
// instead of calling Telegram in-process.
type EventNotifier struct {
	Producer Publisher
	Service  string
}

func (n *EventNotifier) Notify(ctx context.Context, note Notification) error {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderNotification,
		EventVersion:  EventVersion,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: note.Order.ID,
		Payload:       kafkax.MustMarshal(note),
	}
	n.Producer.Publish(PartitionKey(note.Order.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: HeaderEventType, Value: []byte(EventOrderNotification)},
		kafkago.Header{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(EventVersion))},
	)
	return nil
}
