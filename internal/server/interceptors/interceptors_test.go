package interceptors

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"forwarded first hop", metadata.NewIncomingContext(context.Background(),
			metadata.Pairs("x-forwarded-for", "203.0.113.7, 10.0.0.1")), "203.0.113.7"},
		{"real ip", metadata.NewIncomingContext(context.Background(),
			metadata.Pairs("x-real-ip", " 198.51.100.2 ")), "198.51.100.2"},
		{"peer", peer.NewContext(context.Background(),
			&peer.Peer{Addr: &net.TCPAddr{IP: net.ParseIP("192.0.2.1"), Port: 5555}}), "192.0.2.1"},
		{"unknown", context.Background(), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientIP(tt.ctx))
		})
	}
}

func TestLoggingUnary(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	interceptor := LoggingUnary(zap.New(core), map[string]bool{"/grpc.health.v1.Health/Check": true})
	ctx := context.Background()

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Ok"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil })
	require.NoError(t, err)

	_, err = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Broken"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, status.Error(codes.Unavailable, "db down")
		})
	require.Error(t, err)

	_, _ = interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return nil, nil })

	entries := logs.All()
	require.Len(t, entries, 2, "skipped method is not logged")
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "/svc/Ok", entries[0].ContextMap()["method"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "Unavailable", entries[1].ContextMap()["code"])
}

func TestRecoveryUnary(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	interceptor := RecoveryUnary(zap.New(core))

	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Panic"},
		func(ctx context.Context, req interface{}) (interface{}, error) { panic("boom") })
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, 1, logs.Len())

	want := errors.New("plain")
	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Err"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return nil, want })
	assert.Equal(t, want, err)
}
