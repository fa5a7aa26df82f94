// Package lock provides short-lived named locks used to keep periodic jobs from running
// concurrently across instances.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock not acquired")

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker acquires named locks without blocking.
type Locker interface {
	// TryAcquire returns ErrNotAcquired when name is held elsewhere. ttl bounds how long a lease
	// survives a crashed holder; implementations without expiry release on connection loss instead.
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}
