package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "sessionguard"

// Instruments holds the counters recorded by the session and two-factor managers.
// A nil *Instruments is valid and records nothing.
type Instruments struct {
	sessionsCreated       metric.Int64Counter
	sessionsLimitExceeded metric.Int64Counter
	sessionsTerminated    metric.Int64Counter
	sessionsSwept         metric.Int64Counter
	twoFactorVerify       metric.Int64Counter
}

// NewInstruments creates the counters on provider. A nil provider yields no-op instruments.
func NewInstruments(provider metric.MeterProvider) (*Instruments, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	m := provider.Meter(meterName)
	var (
		in  Instruments
		err error
	)
	if in.sessionsCreated, err = m.Int64Counter("sessionguard.sessions.created",
		metric.WithDescription("Sessions issued.")); err != nil {
		return nil, err
	}
	if in.sessionsLimitExceeded, err = m.Int64Counter("sessionguard.sessions.limit_exceeded",
		metric.WithDescription("Session creations refused by the concurrent-session quota.")); err != nil {
		return nil, err
	}
	if in.sessionsTerminated, err = m.Int64Counter("sessionguard.sessions.terminated",
		metric.WithDescription("Sessions flipped inactive by logout or administrative termination.")); err != nil {
		return nil, err
	}
	if in.sessionsSwept, err = m.Int64Counter("sessionguard.sessions.swept",
		metric.WithDescription("Expired sessions flipped inactive by the sweeper.")); err != nil {
		return nil, err
	}
	if in.twoFactorVerify, err = m.Int64Counter("sessionguard.twofactor.verifications",
		metric.WithDescription("Two-factor code checks by method and result.")); err != nil {
		return nil, err
	}
	return &in, nil
}

// SessionCreated records one issued session.
func (in *Instruments) SessionCreated(ctx context.Context) {
	if in == nil {
		return
	}
	in.sessionsCreated.Add(ctx, 1)
}

// SessionLimitExceeded records one refused creation.
func (in *Instruments) SessionLimitExceeded(ctx context.Context) {
	if in == nil {
		return
	}
	in.sessionsLimitExceeded.Add(ctx, 1)
}

// SessionsTerminated records n terminated sessions with the scope that terminated them.
func (in *Instruments) SessionsTerminated(ctx context.Context, scope string, n int) {
	if in == nil || n <= 0 {
		return
	}
	in.sessionsTerminated.Add(ctx, int64(n), metric.WithAttributes(attribute.String("scope", scope)))
}

// SessionsSwept records n sessions expired by a sweep.
func (in *Instruments) SessionsSwept(ctx context.Context, n int) {
	if in == nil || n <= 0 {
		return
	}
	in.sessionsSwept.Add(ctx, int64(n))
}

// TwoFactorVerification records one code check. method is "totp", "backup_code" or "confirm".
func (in *Instruments) TwoFactorVerification(ctx context.Context, method string, ok bool) {
	if in == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "accepted"
	}
	in.twoFactorVerify.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("result", result),
	))
}
