package grpcx

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/salonpanel/salonpanel/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer builds a gRPC server with tracing, request ids and access logging.
func NewServer(logger *slog.Logger, extra ...grpc.ServerOption) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			UnaryServerRequestIDInterceptor(),
			UnaryServerLoggingInterceptor(logger),
		),
	}
	return grpc.NewServer(append(opts, extra...)...)
}

// Health publishes the standard grpc.health.v1 service and keeps its overall status in
// step with the service's readiness checks.
type Health struct {
	srv    *health.Server
	checks []runtime.ReadyCheck
	every  time.Duration
	logger *slog.Logger
}

func RegisterHealth(s *grpc.Server, logger *slog.Logger, every time.Duration, checks ...runtime.ReadyCheck) *Health {
	if every <= 0 {
		every = 10 * time.Second
	}
	h := &Health{srv: health.NewServer(), checks: checks, every: every, logger: logger}
	healthpb.RegisterHealthServer(s, h.srv)
	return h
}

// Refresh runs every check once and returns the status it published.
func (h *Health) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	for name, msg := range runtime.RunChecks(ctx, h.checks) {
		h.logger.Warn("readiness check failed", "check", name, "err", msg)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus("", st)
	return st
}

func (h *Health) run(ctx context.Context) {
	h.Refresh(ctx)
	ticker := time.NewTicker(h.every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// Serve listens on port and stops gracefully when ctx is cancelled.
func Serve(ctx context.Context, logger *slog.Logger, s *grpc.Server, h *Health, port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}
	if h != nil {
		go h.run(ctx)
	}

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := s.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()
	return nil
}
