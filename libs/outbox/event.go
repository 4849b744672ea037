// Package outbox implements the transactional outbox: events are written in the same
// transaction as the state change and relayed to Kafka by a background publisher.
package outbox

import (
	"encoding/json"
	"time"

	otelx "github.com/salonpanel/salonpanel/libs/otel"
)

// Event is the domain event envelope written to the outbox table. The Kafka topic name
// equals EventType and messages are keyed by BusinessID, so one business's events stay
// in order on a single partition.
type Event struct {
	BusinessID    string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// NewEvent marshals payload into an Event owned by businessID.
func NewEvent(businessID, aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		BusinessID:    businessID,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}

// Record is a stored outbox row awaiting publication.
type Record struct {
	ID            int64
	EventID       string
	BusinessID    string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	RequestID     string
	Trace         otelx.TraceContext
	CreatedAt     time.Time
}

// PartitionKey is the Kafka message key: the owning business, or the aggregate for
// events that belong to no business.
func (r Record) PartitionKey() []byte {
	if r.BusinessID != "" {
		return []byte(r.BusinessID)
	}
	return []byte(r.AggregateID)
}
