// migrate runs DB migrations from embedded SQL: go run ./cmd/migrate -direction up|down|version.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"sessionguard/backend/internal/config"
	"sessionguard/backend/internal/db/migrate"
	"sessionguard/backend/internal/logger"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up, down, or version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zlog, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is not set")
		os.Exit(1)
	}

	if *direction == "version" {
		v, ok, err := migrate.Version(cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("migrate: version", zap.Error(err))
		}
		if !ok {
			fmt.Println("no migrations applied")
			return
		}
		fmt.Println(v)
		return
	}
	if err := migrate.Run(cfg.DatabaseURL, *direction, zlog); err != nil {
		zlog.Fatal("migrate: failed", zap.Error(err))
	}
}
