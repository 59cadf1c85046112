package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthhandler "ewaste-tracker/backend/internal/health/handler"
)

// NewGRPCServer returns a gRPC server exposing the standard health service,
// instrumented with OpenTelemetry.
func NewGRPCServer(reporter healthhandler.Reporter, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, reporter)
	reflection.Register(s)
	return s
}

// RegisterServices registers the gRPC services with s.
func RegisterServices(s grpc.ServiceRegistrar, reporter healthhandler.Reporter) {
	healthpb.RegisterHealthServer(s, healthhandler.NewServer(reporter))
}
