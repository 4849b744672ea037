package kafkax

import (
	"context"
	"slices"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InjectTraceHeaders adds the span context of ctx to headers using the global propagator.
// Keys already present are overwritten in place.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	keys := carrier.Keys()
	slices.Sort(keys)
	for _, k := range keys {
		v := []byte(carrier.Get(k))
		i := slices.IndexFunc(headers, func(h kafka.Header) bool { return h.Key == k })
		if i >= 0 {
			headers[i].Value = v
			continue
		}
		headers = append(headers, kafka.Header{Key: k, Value: v})
	}
	return headers
}

// ExtractTraceContext continues the producer's trace, if msg carries one.
func ExtractTraceContext(ctx context.Context, msg kafka.Message) context.Context {
	carrier := make(propagation.MapCarrier, len(msg.Headers))
	for _, h := range msg.Headers {
		if _, seen := carrier[h.Key]; !seen {
			carrier[h.Key] = string(h.Value)
		}
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
