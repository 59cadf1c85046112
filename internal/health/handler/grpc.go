package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// Server implements grpc.health.v1.Health for load balancers and orchestrators.
// Check reports SERVING only when the ledger is reachable and the lifecycle
// policy evaluates. Watch is not supported.
type Server struct {
	healthpb.UnimplementedHealthServer
	reporter Reporter
}

// NewServer returns a Health server backed by reporter. A nil reporter always reports SERVING.
func NewServer(reporter Reporter) *Server {
	return &Server{reporter: reporter}
}

// Check serves the overall health ("") and the named service ServiceName.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if s.reporter == nil {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
	}
	if report := s.reporter.Health(ctx); !report.Healthy {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// ServiceName is the service name accepted by Check besides "".
const ServiceName = "ewaste.tracker.v1.DeviceService"
