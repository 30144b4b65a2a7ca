package session

import (
	"context"
	"sync"
)

// Watcher collects machine notifications and lets callers block until the
// tracked session reaches a terminal outcome. Wire its Notify method into the
// machine via WithNotify (chaining with any other listener).
type Watcher struct {
	mu       sync.Mutex
	terminal *Snapshot
	waiters  []chan Snapshot
}

// NewWatcher creates an empty watcher
func NewWatcher() *Watcher {
	return &Watcher{}
}

// Notify records the snapshot. Terminal snapshots are delivered to all
// pending waiters; a new session clears the recorded outcome.
func (w *Watcher) Notify(snap Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case snap.Status.Terminal():
		s := snap
		w.terminal = &s
		for _, ch := range w.waiters {
			ch <- snap
		}
		w.waiters = nil
	case snap.Status == StatusStarting:
		w.terminal = nil
	}
}

// Wait blocks until a terminal snapshot is available or the context ends.
// If the session already finished, the recorded outcome is returned
// immediately, so Wait does not race the grace-period auto-reset.
func (w *Watcher) Wait(ctx context.Context) (Snapshot, error) {
	w.mu.Lock()
	if w.terminal != nil {
		snap := *w.terminal
		w.mu.Unlock()
		return snap, nil
	}

	ch := make(chan Snapshot, 1)
	w.waiters = append(w.waiters, ch)
	w.mu.Unlock()

	select {
	case snap := <-ch:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}
