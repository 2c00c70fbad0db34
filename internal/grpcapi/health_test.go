package grpcapi

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
)

func TestOpenerStatusFollowsWatchdog(t *testing.T) {
	s := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	if st, _ := s.Check(ctx, OpenerService); st != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("initial status = %v, want SERVING", st)
	}

	s.OpenerDegraded(ctx, service.HealthAlert{})
	if st, _ := s.Check(ctx, OpenerService); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("after degraded = %v, want NOT_SERVING", st)
	}
	if st, _ := s.Check(ctx, ""); st != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("gateway status = %v, want SERVING", st)
	}

	s.OpenerRecovered(ctx, service.HealthAlert{})
	if st, _ := s.Check(ctx, OpenerService); st != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("after recovered = %v, want SERVING", st)
	}
}

func TestServeOverTCP(t *testing.T) {
	s := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.OpenerDegraded(ctx, service.HealthAlert{})
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: OpenerService})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", resp.GetStatus())
	}
}

func TestCheckUnknownService(t *testing.T) {
	s := NewServer(nil)
	if _, err := s.Check(context.Background(), "nope"); err == nil {
		t.Error("expected NotFound for unknown service")
	}
}
