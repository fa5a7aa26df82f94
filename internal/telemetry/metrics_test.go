package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Sum[int64] {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Sum[int64]{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				out[m.Name] = sum
			}
		}
	}
	return out
}

func total(sum metricdata.Sum[int64]) int64 {
	var n int64
	for _, dp := range sum.DataPoints {
		n += dp.Value
	}
	return n
}

func TestInstruments_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	in, err := NewInstruments(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	require.NoError(t, err)
	ctx := context.Background()

	in.SessionCreated(ctx)
	in.SessionCreated(ctx)
	in.SessionLimitExceeded(ctx)
	in.SessionsTerminated(ctx, "user", 3)
	in.SessionsTerminated(ctx, "user", 0)
	in.SessionsSwept(ctx, 4)
	in.TwoFactorVerification(ctx, "totp", true)
	in.TwoFactorVerification(ctx, "totp", false)

	got := collect(t, reader)
	assert.Equal(t, int64(2), total(got["sessionguard.sessions.created"]))
	assert.Equal(t, int64(1), total(got["sessionguard.sessions.limit_exceeded"]))
	assert.Equal(t, int64(3), total(got["sessionguard.sessions.terminated"]))
	assert.Equal(t, int64(4), total(got["sessionguard.sessions.swept"]))

	verify := got["sessionguard.twofactor.verifications"]
	require.Len(t, verify.DataPoints, 2)
	for _, dp := range verify.DataPoints {
		method, _ := dp.Attributes.Value(attribute.Key("method"))
		assert.Equal(t, "totp", method.AsString())
		assert.Equal(t, int64(1), dp.Value)
	}
}

func TestInstruments_NilSafe(t *testing.T) {
	var in *Instruments
	ctx := context.Background()
	in.SessionCreated(ctx)
	in.SessionLimitExceeded(ctx)
	in.SessionsTerminated(ctx, "all", 1)
	in.SessionsSwept(ctx, 1)
	in.TwoFactorVerification(ctx, "backup_code", false)
}

func TestNewInstruments_NilProvider(t *testing.T) {
	in, err := NewInstruments(nil)
	require.NoError(t, err)
	in.SessionCreated(context.Background())
}
