package grpcx

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/salonpanel/salonpanel/libs/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequestIDMetadataKey carries the same id as the HTTP X-Request-Id header.
var RequestIDMetadataKey = strings.ToLower(runtime.RequestIDHeader)

// UnaryServerRequestIDInterceptor adopts the caller's request id from metadata, or mints
// one, and echoes it in the response headers.
func UnaryServerRequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		inbound := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
				inbound = vals[0]
			}
		}
		id := runtime.RequestID(inbound)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))
		return handler(runtime.WithRequestID(ctx, id), req)
	}
}

// UnaryServerLoggingInterceptor logs one line per call. Health probes are logged at
// debug so a polling load balancer does not flood the log.
func UnaryServerLoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		level := slog.LevelInfo
		switch {
		case code == codes.Internal || code == codes.Unknown || code == codes.Unavailable:
			level = slog.LevelWarn
		case strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/"):
			level = slog.LevelDebug
		}
		runtime.Logger(ctx, logger).Log(ctx, level, "grpc request",
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
