// Package grpcapi exposes the service over gRPC. The HTTP router in
// internal/api is the primary surface; this one carries the standard
// health service for load balancers and the interceptor chain that keeps
// logging and metrics consistent with the HTTP side.
package grpcapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/stewardhq/steward/internal/errdomain"
	"github.com/stewardhq/steward/internal/metrics"
)

// ServiceName is the identifier registered with the health service.
const ServiceName = "steward.v1.Steward"

// Deps carries the optional collaborators of the gRPC server. Nil fields
// disable the corresponding concern.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Ready is polled to drive the health service status. Nil means the
	// server reports SERVING unconditionally.
	Ready func(ctx context.Context) error
}

// Server wraps a grpc.Server together with its health reporter.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	ready  func(ctx context.Context) error
	logger *slog.Logger
}

// New builds the gRPC server with the full interceptor chain and the
// health and reflection services registered.
func New(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		health: health.NewServer(),
		ready:  deps.Ready,
		logger: logger,
	}

	s.grpc = grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			recoveryInterceptor(logger),
			loggingInterceptor(logger),
			metricsInterceptor(deps.Metrics),
		),
	)

	grpc_health_v1.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.health.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	return s
}

// GRPC returns the underlying server for Serve and Stop.
func (s *Server) GRPC() *grpc.Server { return s.grpc }

// WatchReadiness polls the readiness probe and mirrors the result into the
// health service until ctx is done. No-op when no probe was configured.
func (s *Server) WatchReadiness(ctx context.Context, interval time.Duration) {
	if s.ready == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshServingStatus(ctx)
		}
	}
}

func (s *Server) refreshServingStatus(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	st := grpc_health_v1.HealthCheckResponse_SERVING
	if err := s.ready(probeCtx); err != nil {
		st = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		s.logger.Warn("readiness probe failed", "error", err)
	}
	s.health.SetServingStatus(ServiceName, st)
	s.health.SetServingStatus("", st)
}

// GracefulStop drains in-flight RPCs, marks the health service not serving
// first so balancers stop routing new work.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func recoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in grpc handler", "method", info.FullMethod, "panic", r)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		requestID := ulid.Make().String()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID,
		)
		return resp, err
	}
}

func metricsInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if m != nil {
			m.IncGRPCRequest(info.FullMethod, status.Code(err).String())
		}
		return resp, err
	}
}

// DomainError converts a domain error into the status the interceptor chain
// reports, so future resource services return consistent codes.
func DomainError(err error) error {
	if err == nil {
		return nil
	}
	return errdomain.GRPCStatus(err).Err()
}
