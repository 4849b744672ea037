package runtime

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// RequestIDHeader is the HTTP header and, lowercased, the gRPC metadata key that carries
// the request id between services.
const RequestIDHeader = "X-Request-Id"

const maxRequestIDLen = 128

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestID keeps an inbound id when it is printable and short, and mints a new one
// otherwise.
func RequestID(inbound string) string {
	inbound = strings.TrimSpace(inbound)
	if inbound == "" || len(inbound) > maxRequestIDLen {
		return uuid.NewString()
	}
	for _, r := range inbound {
		if r < 0x21 || r > 0x7e {
			return uuid.NewString()
		}
	}
	return inbound
}

// Logger returns logger annotated with the request id carried by ctx, if any.
func Logger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return logger.With("request_id", id)
	}
	return logger
}
