package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sessionguard/backend/internal/platform/clock"
)

func TestMemoryLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker(clock.NewFake(time.Unix(0, 0)))

	lease, err := l.TryAcquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)

	_, err = l.TryAcquire(ctx, "sweep", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := l.TryAcquire(ctx, "other", time.Minute)
	require.NoError(t, err, "names are independent")
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Release(ctx))
	again, err := l.TryAcquire(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestMemoryLocker_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFake(time.Unix(0, 0))
	l := NewMemoryLocker(clk)

	stale, err := l.TryAcquire(ctx, "sweep", 30*time.Second)
	require.NoError(t, err)

	clk.Advance(30 * time.Second)
	fresh, err := l.TryAcquire(ctx, "sweep", 30*time.Second)
	require.NoError(t, err, "expired lease can be taken over")

	// Releasing the stale lease must not free the new holder's lock.
	require.NoError(t, stale.Release(ctx))
	_, err = l.TryAcquire(ctx, "sweep", 30*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)
	require.NoError(t, fresh.Release(ctx))
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("not-a-url")
	assert.Error(t, err)

	c, err := NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Options().DB)
	require.NoError(t, c.Close())
}
