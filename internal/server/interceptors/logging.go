// Package interceptors holds the unary server interceptors installed on every gRPC server.
package interceptors

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnary logs each RPC with its status code and duration. Methods in skipMethods
// (e.g. health checks polled by load balancers) are not logged.
func LoggingUnary(log *zap.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", ClientIP(ctx)),
		}
		switch code {
		case codes.OK:
			log.Debug("grpc: request", fields...)
		case codes.Internal, codes.Unknown, codes.Unavailable, codes.DataLoss:
			log.Error("grpc: request failed", append(fields, zap.Error(err))...)
		default:
			log.Info("grpc: request rejected", fields...)
		}
		return resp, err
	}
}

// RecoveryUnary turns a handler panic into codes.Internal and logs the stack.
func RecoveryUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc: panic",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
