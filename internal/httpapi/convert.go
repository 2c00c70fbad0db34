package httpapi

import (
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/types"
)

// heartbeatResponseToProto maps the heartbeat ack onto the standard health
// message so the opener can decode it without a custom schema.
func heartbeatResponseToProto(r types.HeartbeatResponse) *healthpb.HealthCheckResponse {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if r.OK {
		status = healthpb.HealthCheckResponse_SERVING
	}
	return &healthpb.HealthCheckResponse{Status: status}
}
