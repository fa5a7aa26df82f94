// Package sweeper periodically flips expired sessions inactive. A named lock keeps instances
// from sweeping at the same time; sweeping is idempotent so the lock only saves work.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"sessionguard/backend/internal/platform/lock"
	"sessionguard/backend/internal/platform/storage"
)

// LockName is the lock taken for each sweep.
const LockName = "session-sweep"

// Expirer is the session operation the sweeper drives.
type Expirer interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Config controls the sweep schedule. Zero values fall back to the defaults below.
type Config struct {
	Interval     time.Duration // default 1m
	LockTTL      time.Duration // default 30s
	RetryInitial time.Duration // default 200ms
	MaxRetries   uint          // default 4
}

// Sweeper runs SweepExpired on an interval.
type Sweeper struct {
	sessions Expirer
	locker   lock.Locker
	log      *zap.Logger
	cfg      Config
}

// New returns a Sweeper. log may be nil.
func New(sessions Expirer, locker lock.Locker, log *zap.Logger, cfg Config) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = 200 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 4
	}
	return &Sweeper{sessions: sessions, locker: locker, log: log, cfg: cfg}
}

// Run sweeps once immediately and then on every tick until ctx is done. Failures are logged
// and the next tick tries again.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("sweeper: started", zap.Duration("interval", s.cfg.Interval))
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		s.tick(ctx)
		select {
		case <-ctx.Done():
			s.log.Info("sweeper: stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	n, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		s.log.Debug("sweeper: lock held elsewhere, skipping")
	case ctx.Err() != nil:
	case err != nil:
		s.log.Error("sweeper: sweep failed", zap.Error(err))
	case n > 0:
		s.log.Info("sweeper: expired sessions deactivated", zap.Int("count", n))
	default:
		s.log.Debug("sweeper: nothing to expire")
	}
}

// RunOnce performs one locked sweep and returns the number of sessions deactivated.
// Returns lock.ErrNotAcquired when another instance is sweeping.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	lease, err := s.locker.TryAcquire(ctx, LockName, s.cfg.LockTTL)
	if err != nil {
		return 0, err
	}
	defer func() {
		// Release on a fresh context so shutdown does not leave the lock held until ttl.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lease.Release(relCtx); err != nil {
			s.log.Warn("sweeper: release lock failed", zap.Error(err))
		}
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryInitial
	b.MaxInterval = s.cfg.LockTTL / 2
	return backoff.Retry(ctx, func() (int, error) {
		n, err := s.sessions.SweepExpired(ctx)
		if err != nil && !errors.Is(err, storage.ErrUnavailable) {
			return 0, backoff.Permanent(err)
		}
		if err != nil {
			s.log.Warn("sweeper: storage unavailable, retrying", zap.Error(err))
		}
		return n, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.cfg.MaxRetries),
	)
}
