package status

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/oshokin/deploy-manager/internal/domain/deployment"
)

// ServiceName is the health service name reporting the payload.
const ServiceName = "deploy-manager.payload"

// Server publishes payload health. It is safe for concurrent use.
type Server struct {
	// health is the grpc-go health implementation backing the endpoint.
	health *health.Server
}

// NewServer creates a server reporting UNKNOWN until the first Report.
func NewServer() *Server {
	h := health.NewServer()
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_UNKNOWN)

	return &Server{health: h}
}

// Register attaches the health service to registrar.
func (s *Server) Register(registrar grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(registrar, s.health)
}

// Report records the latest observed payload health.
func (s *Server) Report(status deployment.HealthStatus) {
	s.health.SetServingStatus(ServiceName, toServingStatus(status))
}

// Shutdown reports NOT_SERVING for every service and ignores later updates.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

func toServingStatus(status deployment.HealthStatus) healthpb.HealthCheckResponse_ServingStatus {
	switch status {
	case deployment.HealthUp:
		return healthpb.HealthCheckResponse_SERVING
	case deployment.HealthDown:
		return healthpb.HealthCheckResponse_NOT_SERVING
	default:
		return healthpb.HealthCheckResponse_UNKNOWN
	}
}
