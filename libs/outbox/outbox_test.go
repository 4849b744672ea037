package outbox

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/salonpanel/salonpanel/libs/kafkax"
	otelx "github.com/salonpanel/salonpanel/libs/otel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestNewEvent(t *testing.T) {
	evt, err := NewEvent("biz-1", "appointment_group", "g-1", "booking.appointment.booked.v1", map[string]any{"group_id": "g-1"})
	require.NoError(t, err)
	assert.Equal(t, "booking.appointment.booked.v1", evt.EventType)
	assert.Equal(t, "biz-1", evt.BusinessID)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, "g-1", payload["group_id"])
}

func TestToMessageCarriesMetaAndTrace(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

	msg := toMessage(context.Background(), Record{
		EventID:     "evt-1",
		BusinessID:  "biz-1",
		AggregateID: "g-1",
		EventType:   "booking.appointment.booked.v1",
		Payload:     []byte(`{}`),
		RequestID:   "req-7",
		Trace:       otelx.TraceContext{Parent: traceparent},
	})

	assert.Equal(t, "booking.appointment.booked.v1", msg.Topic)
	assert.Equal(t, []byte("biz-1"), msg.Key)
	meta := kafkax.ExtractEventMeta(msg)
	assert.Equal(t, kafkax.EventMeta{
		EventID:    "evt-1",
		EventType:  "booking.appointment.booked.v1",
		BusinessID: "biz-1",
		RequestID:  "req-7",
	}, meta)
	assert.Equal(t, traceparent, kafkax.HeaderValue(msg.Headers, "traceparent"))
}

func TestPartitionKeyFallsBackToAggregate(t *testing.T) {
	assert.Equal(t, []byte("g-1"), Record{AggregateID: "g-1"}.PartitionKey())
}
