package lock

import (
	"context"
	"sync"
	"time"

	"sessionguard/backend/internal/platform/clock"
)

// MemoryLocker is an in-process Locker with ttl expiry, for tests and single-instance runs.
type MemoryLocker struct {
	mu    sync.Mutex
	clock clock.Clock
	held  map[string]memoryEntry
	seq   uint64
}

type memoryEntry struct {
	id      uint64
	expires time.Time
}

// NewMemoryLocker returns a MemoryLocker. clk may be nil.
func NewMemoryLocker(clk clock.Clock) *MemoryLocker {
	if clk == nil {
		clk = clock.System()
	}
	return &MemoryLocker{clock: clk, held: make(map[string]memoryEntry)}
}

func (l *MemoryLocker) TryAcquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()
	if e, ok := l.held[name]; ok && now.Before(e.expires) {
		return nil, ErrNotAcquired
	}
	l.seq++
	l.held[name] = memoryEntry{id: l.seq, expires: now.Add(ttl)}
	return &memoryLease{locker: l, name: name, id: l.seq}, nil
}

type memoryLease struct {
	locker *MemoryLocker
	name   string
	id     uint64
}

func (m *memoryLease) Release(context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()
	if e, ok := m.locker.held[m.name]; ok && e.id == m.id {
		delete(m.locker.held, m.name)
	}
	return nil
}
