// Package app assembles the session and two-factor services from configuration.
// cmd/server and cmd/worker share it so both run against the same stores.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	grpchealth "google.golang.org/grpc/health"

	"sessionguard/backend/internal/audit"
	auditrepo "sessionguard/backend/internal/audit/repository"
	"sessionguard/backend/internal/authflow"
	"sessionguard/backend/internal/config"
	"sessionguard/backend/internal/db"
	"sessionguard/backend/internal/health"
	"sessionguard/backend/internal/platform/clock"
	"sessionguard/backend/internal/platform/lock"
	"sessionguard/backend/internal/policy/engine"
	policyrepo "sessionguard/backend/internal/policy/repository"
	"sessionguard/backend/internal/security"
	"sessionguard/backend/internal/securityconfig"
	sessionrepo "sessionguard/backend/internal/session/repository"
	sessionservice "sessionguard/backend/internal/session/service"
	"sessionguard/backend/internal/session/sweeper"
	"sessionguard/backend/internal/telemetry"
	otelsetup "sessionguard/backend/internal/telemetry/otel"
	twofactorrepo "sessionguard/backend/internal/twofactor/repository"
	twofactorservice "sessionguard/backend/internal/twofactor/service"
)

const dbConnectAttempts = 5

// App holds the wired services. Close releases everything New opened.
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	DB        *sql.DB // nil in memory mode
	Telemetry *otelsetup.Providers
	Audit     *audit.Logger
	Sessions  *sessionservice.Manager
	TwoFactor *twofactorservice.Manager
	Policy    *engine.OPAEvaluator
	Login     *authflow.Service
	Sweeper   *sweeper.Sweeper
	Health    *grpchealth.Server
	Monitor   *health.Monitor

	kafka *audit.KafkaSink
	redis *redis.Client
}

// New wires the application. Without DATABASE_URL every store is in memory and, if no
// SECRET_ENCRYPTION_KEY is configured, a random key is generated for the process lifetime.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.Telemetry, err = otelsetup.NewProviders(ctx, otelsetup.Options{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.OTELServiceName,
		Insecure:    cfg.OTELInsecure,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.Telemetry.SetGlobal()
	metrics, err := telemetry.NewInstruments(a.Telemetry.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	keyring, err := newKeyring(cfg, log)
	if err != nil {
		return nil, err
	}
	sealer, err := keyring.Sealer()
	if err != nil {
		return nil, err
	}

	var (
		sessions  sessionrepo.Repository
		twoFactor twofactorrepo.Repository
		policies  policyrepo.Repository
		settings  securityconfig.Provider
		sinks     audit.MultiSink
	)
	if cfg.DatabaseURL != "" {
		a.DB, err = db.Open(ctx, cfg.DatabaseURL, dbConnectAttempts)
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		sessions = sessionrepo.NewPostgresRepository(a.DB)
		twoFactor = twofactorrepo.NewPostgresRepository(a.DB, sealer)
		policies = policyrepo.NewPostgresRepository(a.DB)
		settings = securityconfig.NewPostgresProvider(a.DB, cfg.SecuritySettings())
	} else {
		log.Warn("app: DATABASE_URL not set, using in-memory stores")
		sessions = sessionrepo.NewMemoryRepository()
		twoFactor = twofactorrepo.NewMemoryRepository()
		settings = securityconfig.Static(cfg.SecuritySettings())
	}

	// With Kafka configured the worker persists events; otherwise the server writes them directly.
	if a.kafka = audit.NewKafkaSink(cfg.KafkaBrokersList(), cfg.AuditKafkaTopic); a.kafka != nil {
		sinks = append(sinks, a.kafka)
	} else if a.DB != nil {
		sinks = append(sinks, auditrepo.NewPostgresRepository(a.DB))
	}
	sinks = append(sinks, audit.NewOTelSink(a.Telemetry.LoggerProvider))
	a.Audit = audit.NewLogger(sinks, log.Named("audit"), clock.System())

	a.Sessions = sessionservice.NewManager(sessions, settings, sessionservice.Options{
		Auditor: a.Audit,
		Logger:  log.Named("session"),
		Metrics: metrics,
	})
	a.TwoFactor = twofactorservice.NewManager(twoFactor, keyring.BackupCodeHasher(), twofactorservice.Options{
		Auditor: a.Audit,
		Logger:  log.Named("twofactor"),
		Metrics: metrics,
		Issuer:  cfg.TOTPIssuer,
	})
	a.Policy, err = engine.NewOPAEvaluator(ctx, policies, log.Named("policy"))
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	a.Login = authflow.NewService(a.Sessions, a.TwoFactor, a.Policy, settings, log.Named("authflow"))

	locker, err := a.newLocker(cfg)
	if err != nil {
		return nil, err
	}
	a.Sweeper = sweeper.New(a.Sessions, locker, log.Named("sweeper"), sweeper.Config{
		Interval: cfg.SweepInterval,
		LockTTL:  cfg.SweepLockTTL,
	})

	a.Health = grpchealth.NewServer()
	var pinger health.Pinger
	if a.DB != nil {
		pinger = a.DB
	}
	a.Monitor = health.NewMonitor(a.Health, pinger, a.Policy, 0, log.Named("health"))
	return a, nil
}

func newKeyring(cfg *config.Config, log *zap.Logger) (*security.Keyring, error) {
	key := cfg.EncryptionKey()
	if key == nil {
		if cfg.DatabaseURL != "" {
			return nil, errors.New("app: SECRET_ENCRYPTION_KEY is required with a database")
		}
		var err error
		if key, err = clock.ReadBytes(clock.Crypto(), security.MasterKeySize); err != nil {
			return nil, err
		}
		log.Warn("app: SECRET_ENCRYPTION_KEY not set, using an ephemeral key")
	}
	return security.NewKeyring(key)
}

func (a *App) newLocker(cfg *config.Config) (lock.Locker, error) {
	switch {
	case cfg.RedisURL != "":
		client, err := lock.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.redis = client
		return lock.NewRedisLocker(client), nil
	case a.DB != nil:
		return lock.NewPostgresLocker(a.DB), nil
	default:
		return lock.NewMemoryLocker(clock.System()), nil
	}
}

// Close flushes audit events and releases connections in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Audit != nil {
		a.Audit.Flush()
	}
	if err := a.kafka.Close(); err != nil {
		errs = append(errs, fmt.Errorf("kafka: %w", err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if a.Telemetry != nil {
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
