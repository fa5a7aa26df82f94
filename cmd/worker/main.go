// Worker runs the expired-session sweeper and, when KAFKA_BROKERS is set, persists audit events
// from AUDIT_KAFKA_TOPIC into Postgres. Several workers may run at once; the sweep lock
// keeps one sweep in flight and the consumer group splits partitions.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sessionguard/backend/internal/app"
	"sessionguard/backend/internal/audit"
	auditrepo "sessionguard/backend/internal/audit/repository"
	"sessionguard/backend/internal/config"
	"sessionguard/backend/internal/logger"
)

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
		zlog.Fatal("worker: exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			zlog.Warn("worker: close", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Sweeper.Run(gctx) })

	brokers := cfg.KafkaBrokersList()
	switch {
	case len(brokers) == 0:
		zlog.Info("worker: KAFKA_BROKERS not set, audit consumer disabled")
	case a.DB == nil:
		zlog.Warn("worker: DATABASE_URL not set, audit consumer disabled")
	default:
		reader := audit.NewKafkaReader(brokers, cfg.AuditKafkaTopic, cfg.KafkaGroupID)
		defer reader.Close()
		consumer := audit.NewConsumer(reader, auditrepo.NewPostgresRepository(a.DB), zlog.Named("audit-consumer"))
		zlog.Info("worker: consuming audit events",
			zap.String("topic", cfg.AuditKafkaTopic), zap.String("group", cfg.KafkaGroupID))
		g.Go(func() error { return consumer.Run(gctx) })
	}

	err = g.Wait()
	zlog.Info("worker: stopped")
	return err
}
