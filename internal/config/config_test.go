package config

import (
	"encoding/base64"
	"os"
	"strings"
	"testing"
	"time"
)

var testKey = base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":8080" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":8080")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.SessionTimeoutMinutes != 30 {
		t.Errorf("SessionTimeoutMinutes = %d, want 30", cfg.SessionTimeoutMinutes)
	}
	if cfg.MaxConcurrentSessions != 5 {
		t.Errorf("MaxConcurrentSessions = %d, want 5", cfg.MaxConcurrentSessions)
	}
	if cfg.TwoFactorMandatory {
		t.Error("TwoFactorMandatory should default to false")
	}
	if cfg.TOTPIssuer != "SessionGuard" {
		t.Errorf("TOTPIssuer = %q, want SessionGuard", cfg.TOTPIssuer)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("SweepInterval = %v, want 1m", cfg.SweepInterval)
	}
	if cfg.SweepLockTTL != 30*time.Second {
		t.Errorf("SweepLockTTL = %v, want 30s", cfg.SweepLockTTL)
	}
	if cfg.AuditKafkaTopic != "sessionguard-audit" {
		t.Errorf("AuditKafkaTopic = %q, want sessionguard-audit", cfg.AuditKafkaTopic)
	}
	if cfg.KafkaGroupID != "sessionguard-audit-writer" {
		t.Errorf("KafkaGroupID = %q, want sessionguard-audit-writer", cfg.KafkaGroupID)
	}
	if cfg.MigrateOnStart {
		t.Error("MigrateOnStart should default to false")
	}
	if cfg.OTELServiceName != "sessionguard" {
		t.Errorf("OTELServiceName = %q, want sessionguard", cfg.OTELServiceName)
	}
	if cfg.EncryptionKey() != nil {
		t.Error("EncryptionKey should be nil when unset")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	t.Setenv("GRPC_ADDR", ":9090")
	t.Setenv("SESSION_TIMEOUT_MINUTES", "15")
	t.Setenv("MAX_CONCURRENT_SESSIONS", "2")
	t.Setenv("TWO_FACTOR_MANDATORY", "true")
	t.Setenv("SWEEP_INTERVAL", "5m")
	t.Setenv("SECRET_ENCRYPTION_KEY", testKey)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPCAddr != ":9090" {
		t.Errorf("GRPCAddr = %q, want %q", cfg.GRPCAddr, ":9090")
	}
	s := cfg.SecuritySettings()
	if s.SessionTimeoutMinutes != 15 || s.MaxConcurrentSessions != 2 || !s.TwoFactorMandatory {
		t.Errorf("SecuritySettings = %+v", s)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Errorf("SweepInterval = %v, want 5m", cfg.SweepInterval)
	}
	if len(cfg.EncryptionKey()) != 32 {
		t.Errorf("EncryptionKey length = %d, want 32", len(cfg.EncryptionKey()))
	}
}

func TestLoad_InvalidSecuritySettings(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SESSION_TIMEOUT_MINUTES", "0"},
		{"MAX_CONCURRENT_SESSIONS", "0"},
		{"SWEEP_INTERVAL", "0s"},
		{"TOTP_ISSUER", "Bad:Issuer"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			os.Clearenv()
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load with %s=%s: expected error", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_EncryptionKeyRequiredWithDatabase(t *testing.T) {
	os.Clearenv()
	t.Setenv("DATABASE_URL", "postgres://localhost/sessionguard")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "SECRET_ENCRYPTION_KEY") {
		t.Fatalf("Load err = %v, want SECRET_ENCRYPTION_KEY error", err)
	}

	t.Setenv("SECRET_ENCRYPTION_KEY", testKey)
	if _, err := Load(); err != nil {
		t.Fatalf("Load with key: %v", err)
	}
}

func TestLoad_InvalidEncryptionKey(t *testing.T) {
	os.Clearenv()
	t.Setenv("SECRET_ENCRYPTION_KEY", "c2hvcnQ=")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestLoad_ProductionRequiresDatabase(t *testing.T) {
	os.Clearenv()
	t.Setenv("APP_ENV", "production")
	t.Setenv("SECRET_ENCRYPTION_KEY", testKey)

	if _, err := Load(); err == nil {
		t.Fatal("expected error when production has no DATABASE_URL")
	}
	t.Setenv("DATABASE_URL", "postgres://localhost/sessionguard")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction = false, want true")
	}
}

func TestKafkaBrokersList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"localhost:9092", []string{"localhost:9092"}},
		{" a:9092 , ,b:9092 ", []string{"a:9092", "b:9092"}},
	}
	for _, tt := range tests {
		cfg := &Config{KafkaBrokers: tt.in}
		got := cfg.KafkaBrokersList()
		if len(got) != len(tt.want) {
			t.Errorf("KafkaBrokersList(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("KafkaBrokersList(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
	var nilCfg *Config
	if nilCfg.KafkaBrokersList() != nil {
		t.Error("nil config should return nil list")
	}
}
