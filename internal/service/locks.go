package service

import (
	"context"
	"sync"
)

// eventLocks provides one mutex per event ID, created on first use and
// dropped once no goroutine holds or waits on it. Acquisition is
// cancellable: a caller whose context expires while queued gives up its
// place instead of blocking forever behind a long critical section.
type eventLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

func newEventLocks() *eventLocks {
	return &eventLocks{entries: make(map[string]*lockEntry)}
}

// Acquire locks the entry for key, waiting until the lock is free or ctx
// is done. On success it returns a release function that must be called
// exactly once.
func (l *eventLocks) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.sem <- struct{}{}:
		return func() {
			<-entry.sem
			l.put(key, entry)
		}, nil
	case <-ctx.Done():
		l.put(key, entry)
		return nil, ctx.Err()
	}
}

// put drops a reference and removes the entry once unused
func (l *eventLocks) put(key string, entry *lockEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}
