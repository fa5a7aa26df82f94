package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionguard/backend/internal/platform/clock"
	"sessionguard/backend/internal/platform/lock"
	"sessionguard/backend/internal/platform/storage"
	"sessionguard/backend/internal/securityconfig"
	"sessionguard/backend/internal/session/domain"
	"sessionguard/backend/internal/session/repository"
	"sessionguard/backend/internal/session/service"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// scriptedExpirer returns queued results, then zero.
type scriptedExpirer struct {
	mu      sync.Mutex
	results []result
	calls   int
}

type result struct {
	n   int
	err error
}

func (s *scriptedExpirer) SweepExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return 0, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.n, r.err
}

func (s *scriptedExpirer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastConfig() Config {
	return Config{Interval: 10 * time.Millisecond, LockTTL: time.Second, RetryInitial: time.Millisecond, MaxRetries: 3}
}

func TestRunOnce_SweepsRealSessions(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(t0)
	mgr := service.NewManager(repository.NewMemoryRepository(),
		securityconfig.Static{SessionTimeoutMinutes: 30, MaxConcurrentSessions: 10},
		service.Options{Clock: clk})
	for i := 0; i < 3; i++ {
		_, err := mgr.CreateSession(ctx, "u1", domain.ClientMeta{}, 30)
		require.NoError(t, err)
	}
	_, err := mgr.CreateSession(ctx, "u2", domain.ClientMeta{}, 120)
	require.NoError(t, err)

	s := New(mgr, lock.NewMemoryLocker(clk), nil, fastConfig())
	clk.Advance(31 * time.Minute)

	n, err := s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "second sweep finds nothing")
}

func TestRunOnce_RetriesUnavailable(t *testing.T) {
	exp := &scriptedExpirer{results: []result{
		{err: storage.Wrap("session sweep", errors.New("conn reset"))},
		{n: 2},
	}}
	s := New(exp, lock.NewMemoryLocker(nil), nil, fastConfig())

	n, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, exp.callCount())
}

func TestRunOnce_GivesUpAfterMaxRetries(t *testing.T) {
	down := storage.Wrap("session sweep", errors.New("conn refused"))
	exp := &scriptedExpirer{results: []result{{err: down}, {err: down}, {err: down}, {err: down}}}
	s := New(exp, lock.NewMemoryLocker(nil), nil, fastConfig())

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.Equal(t, 3, exp.callCount())
}

func TestRunOnce_DoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	exp := &scriptedExpirer{results: []result{{err: boom}}}
	s := New(exp, lock.NewMemoryLocker(nil), nil, fastConfig())

	_, err := s.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, exp.callCount())
}

func TestRunOnce_SkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	locker := lock.NewMemoryLocker(nil)
	held, err := locker.TryAcquire(ctx, LockName, time.Minute)
	require.NoError(t, err)
	defer held.Release(ctx)

	exp := &scriptedExpirer{}
	s := New(exp, locker, nil, fastConfig())
	_, err = s.RunOnce(ctx)
	assert.ErrorIs(t, err, lock.ErrNotAcquired)
	assert.Equal(t, 0, exp.callCount())
}

func TestRunOnce_ReleasesLock(t *testing.T) {
	ctx := context.Background()
	locker := lock.NewMemoryLocker(nil)
	s := New(&scriptedExpirer{}, locker, nil, fastConfig())

	_, err := s.RunOnce(ctx)
	require.NoError(t, err)

	lease, err := locker.TryAcquire(ctx, LockName, time.Minute)
	require.NoError(t, err, "lock released after sweep")
	require.NoError(t, lease.Release(ctx))
}

func TestRun_TicksUntilCanceled(t *testing.T) {
	exp := &scriptedExpirer{}
	s := New(exp, lock.NewMemoryLocker(nil), nil, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return exp.callCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(&scriptedExpirer{}, lock.NewMemoryLocker(nil), nil, Config{})
	assert.Equal(t, time.Minute, s.cfg.Interval)
	assert.Equal(t, 30*time.Second, s.cfg.LockTTL)
	assert.Equal(t, uint(4), s.cfg.MaxRetries)
}
