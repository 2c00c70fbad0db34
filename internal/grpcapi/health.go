// Package grpcapi exposes opener health through the standard gRPC health
// checking protocol, so existing probes can watch the door link.
package grpcapi

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
)

// OpenerService is the health service name that tracks the opener link.
const OpenerService = "doorgate.opener"

// Server serves grpc.health.v1 with the gateway itself ("") always SERVING
// and OpenerService following the watchdog.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

var _ service.HealthListener = (*Server)(nil)

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(OpenerService, healthpb.HealthCheckResponse_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	return &Server{grpc: gs, health: hs, logger: logger}
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc health listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func (s *Server) OpenerDegraded(context.Context, service.HealthAlert) {
	s.health.SetServingStatus(OpenerService, healthpb.HealthCheckResponse_NOT_SERVING)
}

func (s *Server) OpenerRecovered(context.Context, service.HealthAlert) {
	s.health.SetServingStatus(OpenerService, healthpb.HealthCheckResponse_SERVING)
}

// Check answers a health query in-process, for callers that already hold
// the server.
func (s *Server) Check(ctx context.Context, name string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: name})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
