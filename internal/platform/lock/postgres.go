package lock

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

const (
	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock(hashtextextended($1, 0))`
)

// PostgresLocker implements Locker with session-level advisory locks. The lease pins one pooled
// connection until Release; ttl is not enforced, the lock ends when the connection does.
type PostgresLocker struct {
	db *sql.DB
}

// NewPostgresLocker returns a Locker using advisory locks on db.
func NewPostgresLocker(db *sql.DB) *PostgresLocker {
	return &PostgresLocker{db: db}
}

func (l *PostgresLocker) TryAcquire(ctx context.Context, name string, _ time.Duration) (Lease, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, tryAdvisoryLockSQL, name).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !ok {
		_ = conn.Close()
		return nil, ErrNotAcquired
	}
	return &pgLease{conn: conn, name: name}, nil
}

type pgLease struct {
	conn *sql.Conn
	name string
	once sync.Once
	err  error
}

func (p *pgLease) Release(ctx context.Context) error {
	p.once.Do(func() {
		var released bool
		err := p.conn.QueryRowContext(ctx, advisoryUnlockSQL, p.name).Scan(&released)
		closeErr := p.conn.Close()
		if err == nil {
			err = closeErr
		}
		p.err = err
	})
	return p.err
}
