package securityconfig

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
)

// Keys read from the security_settings table.
const (
	KeySessionTimeoutMinutes = "session_timeout_minutes"
	KeyMaxConcurrentSessions = "max_concurrent_sessions"
	KeyTwoFactorMandatory    = "two_factor_mandatory"
)

const listSettingsSQL = `SELECT key, value FROM security_settings WHERE key = ANY($1)`

// PostgresProvider overlays rows from security_settings on environment defaults.
// Missing or unparsable rows keep the default, so an empty table behaves like Static(defaults).
type PostgresProvider struct {
	db       *sql.DB
	defaults Settings
}

// NewPostgresProvider returns a provider reading overrides from db.
func NewPostgresProvider(db *sql.DB, defaults Settings) *PostgresProvider {
	return &PostgresProvider{db: db, defaults: defaults}
}

// Get returns the defaults with any valid database overrides applied.
func (p *PostgresProvider) Get(ctx context.Context) (Settings, error) {
	rows, err := p.db.QueryContext(ctx, listSettingsSQL, []string{
		KeySessionTimeoutMinutes, KeyMaxConcurrentSessions, KeyTwoFactorMandatory,
	})
	if err != nil {
		return Settings{}, err
	}
	defer rows.Close()
	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Settings{}, err
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return Settings{}, err
	}
	return Overlay(p.defaults, values), nil
}

// Overlay applies key/value overrides to base. Invalid values are ignored.
func Overlay(base Settings, values map[string]string) Settings {
	out := base
	if v, ok := values[KeySessionTimeoutMinutes]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			out.SessionTimeoutMinutes = n
		}
	}
	if v, ok := values[KeyMaxConcurrentSessions]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 1 {
			out.MaxConcurrentSessions = n
		}
	}
	if v, ok := values[KeyTwoFactorMandatory]; ok {
		if b, err := parseBool(v); err == nil {
			out.TwoFactorMandatory = b
		}
	}
	return out
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1":
		return true, nil
	case "false", "0", "":
		return false, nil
	default:
		return false, strconv.ErrSyntax
	}
}
