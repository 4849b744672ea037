package kafkax

import (
	"github.com/segmentio/kafka-go"
)

// Header keys every event carries besides the trace context.
const (
	HeaderEventID    = "event_id"
	HeaderEventType  = "event_type"
	HeaderBusinessID = "business_id"
	HeaderRequestID  = "request_id"
)

// EventMeta is the envelope metadata carried in Kafka headers. BusinessID lets consumers
// scope work to a tenant without decoding the payload; RequestID ties consumer logs to
// the HTTP request that produced the event.
type EventMeta struct {
	EventID    string
	EventType  string
	BusinessID string
	RequestID  string
}

// Headers renders the non-empty fields as Kafka headers.
func (m EventMeta) Headers() []kafka.Header {
	headers := make([]kafka.Header, 0, 4)
	for _, kv := range [...][2]string{
		{HeaderEventID, m.EventID},
		{HeaderEventType, m.EventType},
		{HeaderBusinessID, m.BusinessID},
		{HeaderRequestID, m.RequestID},
	} {
		if kv[1] != "" {
			headers = append(headers, kafka.Header{Key: kv[0], Value: []byte(kv[1])})
		}
	}
	return headers
}

// ExtractEventMeta reads the envelope back. Messages from producers that set no headers
// fall back to the key as event id and the topic as event type.
func ExtractEventMeta(msg kafka.Message) EventMeta {
	meta := EventMeta{
		EventID:    HeaderValue(msg.Headers, HeaderEventID),
		EventType:  HeaderValue(msg.Headers, HeaderEventType),
		BusinessID: HeaderValue(msg.Headers, HeaderBusinessID),
		RequestID:  HeaderValue(msg.Headers, HeaderRequestID),
	}
	if meta.EventID == "" {
		meta.EventID = string(msg.Key)
	}
	if meta.EventType == "" {
		meta.EventType = msg.Topic
	}
	return meta
}

func HeaderValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
