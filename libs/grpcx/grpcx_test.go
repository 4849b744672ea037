package grpcx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/salonpanel/salonpanel/libs/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

func TestRequestIDInterceptor(t *testing.T) {
	interceptor := UnaryServerRequestIDInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	var seen string
	handler := func(ctx context.Context, _ any) (any, error) {
		seen = runtime.RequestIDFromContext(ctx)
		return nil, nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDMetadataKey, "req-42"))
	_, err := interceptor(ctx, nil, info, handler)
	require.NoError(t, err)
	assert.Equal(t, "req-42", seen)

	_, err = interceptor(context.Background(), nil, info, handler)
	require.NoError(t, err)
	assert.Len(t, seen, 36)
}

func TestHealthFollowsReadiness(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := grpc.NewServer()
	failing := true
	h := RegisterHealth(s, logger, 0, runtime.ReadyCheck{Name: "db", Check: func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	}})

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, h.Refresh(context.Background()))

	failing = false
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, h.Refresh(context.Background()))

	resp, err := h.srv.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
