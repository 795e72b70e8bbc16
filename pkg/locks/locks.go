// Package locks serializes concurrent mutations of a single case. Every
// case-mutating operation acquires the case lock first, so trigger actions
// and audit writes of concurrent submissions never interleave.
package locks

import (
	"context"
	"sync"
	"time"
)

// Release frees a held lock. Calling it more than once is safe.
type Release func()

// Locker grants exclusive access to one case at a time. Acquire blocks until
// the lock is held or the context is done.
type Locker interface {
	Acquire(ctx context.Context, caseID string) (Release, error)
}

// MemoryLocker locks cases within a single process. It is the backend used
// when the API runs as one instance or in tests.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMemoryLocker creates an in-process case locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		slots: make(map[string]chan struct{}),
	}
}

// Acquire blocks until the case slot is free or ctx is done.
func (l *MemoryLocker) Acquire(ctx context.Context, caseID string) (Release, error) {
	slot := l.slot(caseID)

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once

	return func() {
		once.Do(func() { <-slot })
	}, nil
}

func (l *MemoryLocker) slot(caseID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[caseID]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[caseID] = slot
	}

	return slot
}

// retryInterval is how often distributed lockers poll a contended lock.
const retryInterval = 25 * time.Millisecond
