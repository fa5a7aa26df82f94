package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"sessionguard/backend/internal/server/interceptors"
)

// quietMethods are polled constantly and not request-logged.
var quietMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// NewGRPCServer returns a server with OTel instrumentation, panic recovery and request logging,
// with healthSrv registered as grpc.health.v1.Health.
func NewGRPCServer(log *zap.Logger, healthSrv *grpchealth.Server, opts ...grpc.ServerOption) *grpc.Server {
	if log == nil {
		log = zap.NewNop()
	}
	opts = append([]grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryUnary(log),
			interceptors.LoggingUnary(log, quietMethods),
		),
	}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, healthSrv)
	return s
}

// RegisterServices registers the gRPC services with the given registrar.
func RegisterServices(s grpc.ServiceRegistrar, healthSrv *grpchealth.Server) {
	healthpb.RegisterHealthServer(s, healthSrv)
}
