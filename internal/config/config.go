// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sessionguard/backend/internal/security"
	"sessionguard/backend/internal/securityconfig"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server (health service) listens on.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. Empty runs with in-memory stores (development only).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MigrateOnStart applies pending migrations before the server starts serving.
	MigrateOnStart bool `mapstructure:"MIGRATE_ON_START"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level: debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Security defaults. Values in the security_settings table override these at runtime.
	SessionTimeoutMinutes int  `mapstructure:"SESSION_TIMEOUT_MINUTES"`
	MaxConcurrentSessions int  `mapstructure:"MAX_CONCURRENT_SESSIONS"`
	TwoFactorMandatory    bool `mapstructure:"TWO_FACTOR_MANDATORY"`

	// TOTPIssuer names the service in authenticator apps.
	TOTPIssuer string `mapstructure:"TOTP_ISSUER"`
	// SecretEncryptionKey is a base64 32-byte master key. Seals TOTP secrets and keys backup code hashes.
	// Required when DATABASE_URL is set.
	SecretEncryptionKey string `mapstructure:"SECRET_ENCRYPTION_KEY"`

	// SweepInterval is how often expired sessions are flipped inactive.
	SweepInterval time.Duration `mapstructure:"SWEEP_INTERVAL"`
	// SweepLockTTL bounds how long a crashed sweeper can hold the sweep lock.
	SweepLockTTL time.Duration `mapstructure:"SWEEP_LOCK_TTL"`
	// RedisURL (redis://…) selects the Redis sweep lock; otherwise Postgres advisory locks are used.
	RedisURL string `mapstructure:"REDIS_URL"`

	// KafkaBrokers is a comma-separated list of broker addresses. Empty disables the Kafka audit sink.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the topic audit events are written to.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group the worker uses to persist audit events.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTel export (optional). Empty endpoint disables export.
	OTELEndpoint    string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELInsecure    bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	OTELServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SESSION_TIMEOUT_MINUTES", 30)
	v.SetDefault("MAX_CONCURRENT_SESSIONS", 5)
	v.SetDefault("TWO_FACTOR_MANDATORY", false)
	v.SetDefault("TOTP_ISSUER", "SessionGuard")
	v.SetDefault("SECRET_ENCRYPTION_KEY", "")
	v.SetDefault("SWEEP_INTERVAL", "1m")
	v.SetDefault("SWEEP_LOCK_TTL", "30s")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "sessionguard-audit")
	v.SetDefault("KAFKA_GROUP_ID", "sessionguard-audit-writer")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "sessionguard")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}
	if err := cfg.SecuritySettings().Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if strings.TrimSpace(cfg.TOTPIssuer) == "" || strings.Contains(cfg.TOTPIssuer, ":") {
		return nil, errors.New("config: TOTP_ISSUER must be non-empty and must not contain ':'")
	}
	if cfg.SecretEncryptionKey != "" {
		if _, err := security.ParseMasterKey(cfg.SecretEncryptionKey); err != nil {
			return nil, errors.New("config: SECRET_ENCRYPTION_KEY must be base64 of 32 bytes")
		}
	} else if cfg.DatabaseURL != "" || cfg.IsProduction() {
		return nil, errors.New("config: SECRET_ENCRYPTION_KEY must be set when DATABASE_URL is set or APP_ENV=production")
	}
	if cfg.IsProduction() && cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set when APP_ENV=production")
	}
	if cfg.SweepInterval <= 0 {
		return nil, errors.New("config: SWEEP_INTERVAL must be positive")
	}
	if cfg.SweepLockTTL <= 0 {
		return nil, errors.New("config: SWEEP_LOCK_TTL must be positive")
	}

	return &cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// SecuritySettings returns the env-provided security defaults.
func (c *Config) SecuritySettings() securityconfig.Settings {
	return securityconfig.Settings{
		SessionTimeoutMinutes: c.SessionTimeoutMinutes,
		MaxConcurrentSessions: c.MaxConcurrentSessions,
		TwoFactorMandatory:    c.TwoFactorMandatory,
	}
}

// EncryptionKey returns the decoded master key, or nil when unset.
func (c *Config) EncryptionKey() []byte {
	if c == nil || c.SecretEncryptionKey == "" {
		return nil
	}
	key, err := security.ParseMasterKey(c.SecretEncryptionKey)
	if err != nil {
		return nil
	}
	return key
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the Kafka audit sink is enabled (non-empty list).
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
