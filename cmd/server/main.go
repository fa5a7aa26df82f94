package main

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"sessionguard/backend/internal/app"
	"sessionguard/backend/internal/config"
	"sessionguard/backend/internal/db/migrate"
	"sessionguard/backend/internal/logger"
	"sessionguard/backend/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zlog, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server: exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MigrateOnStart && cfg.DatabaseURL != "" {
		if err := migrate.Run(cfg.DatabaseURL, "up", zlog.Named("migrate")); err != nil {
			return err
		}
	}

	a, err := app.New(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			zlog.Warn("server: close", zap.Error(err))
		}
	}()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	s := server.NewGRPCServer(zlog.Named("grpc"), a.Health)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zlog.Info("server: gRPC listening", zap.String("addr", lis.Addr().String()))
		if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error { return a.Sweeper.Run(gctx) })
	g.Go(func() error { return a.Monitor.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("server: shutting down")
		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownTimeout):
			s.Stop()
		}
		return nil
	})
	return g.Wait()
}
