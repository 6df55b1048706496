package orders

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	key, value []byte
	headers    []kafkago.Header
}

func (p *capturePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.key, p.value, p.headers = key, value, headers
}

func TestEventNotifier_PublishesEnvelope(t *testing.T) {
	pub := &capturePublisher{}
	n := &EventNotifier{Producer: pub, Service: "stars-api"}
	order := Order{ID: "o-1", Quantity: 100, Price: decimal.NewFromInt(150), Status: StatusPending, Method: MethodManual}

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "host/req-000001")
	require.NoError(t, n.Notify(ctx, Notification{Order: order, Variant: VariantManualPending}))

	assert.Equal(t, []byte("o-1"), pub.key)
	require.Len(t, pub.headers, 2)
	assert.Equal(t, EventOrderNotification, string(pub.headers[0].Value))

	var env Envelope
	require.NoError(t, json.Unmarshal(pub.value, &env))
	assert.Equal(t, EventOrderNotification, env.EventType)
	assert.Equal(t, "o-1", env.CorrelationID)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, "host/req-000001", env.TraceID)

	var note Notification
	require.NoError(t, json.Unmarshal(env.Payload, &note))
	assert.Equal(t, VariantManualPending, note.Variant)
	assert.Equal(t, 100, note.Order.Quantity)
	assert.True(t, decimal.NewFromInt(150).Equal(note.Order.Price))
}
