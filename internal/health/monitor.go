// Package health drives the standard gRPC health service from dependency probes.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the named service reported alongside the overall ("") status.
const ServiceName = "sessionguard"

const probeTimeout = 3 * time.Second

// Pinger is used for readiness (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is used for readiness (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Monitor probes dependencies and sets SERVING or NOT_SERVING on a grpc health server.
type Monitor struct {
	server   *grpchealth.Server
	pinger   Pinger
	policy   PolicyChecker
	interval time.Duration
	log      *zap.Logger
}

// NewMonitor returns a Monitor updating server. pinger and policy may be nil, in which case the
// probe is skipped.
func NewMonitor(server *grpchealth.Server, pinger Pinger, policy PolicyChecker, interval time.Duration, log *zap.Logger) *Monitor {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{server: server, pinger: pinger, policy: policy, interval: interval, log: log}
}

// Check probes once and publishes the result.
func (m *Monitor) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if m.pinger != nil {
		if err := m.pinger.PingContext(ctx); err != nil {
			m.log.Warn("health: database ping failed", zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	if m.policy != nil {
		if err := m.policy.HealthCheck(ctx); err != nil {
			m.log.Warn("health: policy engine check failed", zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	m.server.SetServingStatus("", st)
	m.server.SetServingStatus(ServiceName, st)
	return st
}

// Run checks immediately and then every interval until ctx is done, when it marks the
// server NOT_SERVING so load balancers drain.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		m.Check(ctx)
		select {
		case <-ctx.Done():
			m.server.Shutdown()
			return nil
		case <-ticker.C:
		}
	}
}
