package orchestrator

import (
	"context"
	"sync"
	"time"
)

// appLocks hands out one mutex per app ID so deployment lifecycle operations
// for the same app never interleave, while distinct apps proceed in parallel.
type appLocks struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func newAppLocks() *appLocks {
	return &appLocks{locks: make(map[string]chan struct{})}
}

func (l *appLocks) get(appID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[appID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[appID] = ch
	}
	return ch
}

// acquire blocks until the app lock is held, the wait elapses, or ctx is
// done. It returns a release func on success and false otherwise.
func (l *appLocks) acquire(ctx context.Context, appID string, wait time.Duration) (func(), bool) {
	ch := l.get(appID)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	case <-timer.C:
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}
