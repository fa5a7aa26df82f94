// Package migrate runs database migrations from embedded SQL files using golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"sessionguard/backend/internal/db"
)

// ErrNoChange is returned when Up/Down has nothing to do (already at target version).
var ErrNoChange = migrate.ErrNoChange

// ErrDirty means a previous migration failed halfway and needs manual repair.
var ErrDirty = errors.New("migrate: database is dirty")

// Run applies migrations in the given direction using the provided DSN.
// direction must be "up" or "down". Returns nil on success and when already at the
// target version; other errors for DB or I/O failures. log may be nil.
func Run(dsn string, direction string, log *zap.Logger) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("direction must be up or down, got %q", direction)
	}
	if log == nil {
		log = zap.NewNop()
	}

	m, err := newMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if _, dirty, err := m.Version(); err == nil && dirty {
		return ErrDirty
	}

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("migrate: no change", zap.String("direction", direction))
		return nil
	}
	if err != nil {
		return err
	}
	if v, _, verr := m.Version(); verr == nil {
		log.Info("migrate: done", zap.String("direction", direction), zap.Uint("version", v))
	} else {
		log.Info("migrate: done", zap.String("direction", direction))
	}
	return nil
}

// Version returns the applied schema version. ok is false when no migration has run.
func Version(dsn string) (version uint, ok bool, err error) {
	if dsn == "" {
		return 0, false, errors.New("DATABASE_URL is not set")
	}
	m, err := newMigrator(dsn)
	if err != nil {
		return 0, false, err
	}
	defer func() { _, _ = m.Close() }()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if dirty {
		return v, true, ErrDirty
	}
	return v, true, nil
}

func newMigrator(dsn string) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return m, nil
}
