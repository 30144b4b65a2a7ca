package session

import (
	"log/slog"
	"sync"
	"time"
)

// Machine tracks exactly one external operation session at a time. All state
// transitions are serialized under an internal lock, so signal handlers never
// overlap. Every live session is identified by a generation number; signals
// carrying a stale generation are discarded, which guards against late timer
// callbacks or probe responses racing a cancellation.
//
// The resource contract: a session's release hook runs exactly once, before
// any terminal transition becomes observable to listeners.
type Machine struct {
	mu        sync.Mutex
	status    Status
	gen       uint64
	attempts  int
	lastError string
	reason    CancelReason
	progress  *Progress
	probing   bool
	release   func()

	grace      time.Duration
	graceTimer *time.Timer

	notify func(Snapshot)
	logger *slog.Logger
}

// Option is a function that configures the machine
type Option func(*Machine)

// WithNotify sets the listener invoked after every observable transition.
// The listener runs outside the machine lock and must treat the snapshot as
// read-only.
func WithNotify(fn func(Snapshot)) Option {
	return func(m *Machine) {
		m.notify = fn
	}
}

// WithGracePeriod makes terminal states reset back to StatusIdle after the
// given duration. Zero disables automatic reset.
func WithGracePeriod(d time.Duration) Option {
	return func(m *Machine) {
		m.grace = d
	}
}

// WithLogger sets the logger for the machine
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// New creates a machine in StatusIdle
func New(opts ...Option) *Machine {
	m := &Machine{
		status: StatusIdle,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Snapshot returns a copy of the current session state
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Begin opens a new session. It is a no-op returning false while a session is
// already active or a terminal outcome has not been reset yet; callers rely on
// this for idempotent start suppression.
func (m *Machine) Begin() (uint64, bool) {
	m.mu.Lock()
	if m.status != StatusIdle {
		m.mu.Unlock()
		return 0, false
	}

	m.gen++
	gen := m.gen
	m.status = StatusStarting
	m.attempts = 0
	m.lastError = ""
	m.reason = ""
	m.progress = nil
	m.probing = false
	m.stopGraceLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
	return gen, true
}

// Abort returns a session that has not yet acquired an external handle back
// to StatusIdle. Used when initiation falls back to an untracked path, e.g.
// the browser could not be opened and the login URL is handed to the user.
func (m *Machine) Abort(gen uint64) bool {
	m.mu.Lock()
	if gen != m.gen || m.status != StatusStarting {
		m.mu.Unlock()
		return false
	}

	m.resetLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
	return true
}

// Engage moves a starting session into a tracked state and registers the
// release hook for its external handle and timers. The hook is invoked exactly
// once, on the first terminal transition.
func (m *Machine) Engage(gen uint64, st Status, release func()) bool {
	m.mu.Lock()
	if gen != m.gen || m.status != StatusStarting || !st.Engaged() {
		m.mu.Unlock()
		return false
	}

	m.status = st
	m.release = release
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
	return true
}

// Succeed marks the session as completed successfully
func (m *Machine) Succeed(gen uint64) bool {
	return m.terminate(gen, StatusSucceeded, "", "")
}

// Fail marks the session as failed with a user-facing message
func (m *Machine) Fail(gen uint64, message string) bool {
	return m.terminate(gen, StatusFailed, message, "")
}

// CancelSession cancels a specific session. Stale generations are ignored.
func (m *Machine) CancelSession(gen uint64, reason CancelReason) bool {
	return m.terminate(gen, StatusCancelled, "", reason)
}

// Cancel cancels whatever session is currently active. Safe to call
// unconditionally at teardown; it is a no-op when nothing is tracked.
func (m *Machine) Cancel(reason CancelReason) bool {
	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()
	return m.terminate(gen, StatusCancelled, "", reason)
}

// Reset returns a terminal session to StatusIdle, clearing all session fields
func (m *Machine) Reset() bool {
	m.mu.Lock()
	if !m.status.Terminal() {
		m.mu.Unlock()
		return false
	}

	m.resetLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
	return true
}

// Tick records one observed timer tick for the session and returns the new
// attempt count. Returns false when the session is no longer tracked, making
// a late tick a no-op.
func (m *Machine) Tick(gen uint64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || !m.status.Engaged() {
		return 0, false
	}

	m.attempts++
	return m.attempts, true
}

// SetProgress updates the session progress. Reports that would move the
// current counter backwards are dropped so displayed progress never regresses
// within one session.
func (m *Machine) SetProgress(gen uint64, p Progress) bool {
	m.mu.Lock()
	if gen != m.gen || !m.status.Engaged() {
		m.mu.Unlock()
		return false
	}

	if m.progress != nil && p.Current < m.progress.Current {
		m.mu.Unlock()
		return false
	}

	m.progress = &p
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
	return true
}

// TryBeginProbe acquires the in-flight probe guard. At most one authoritative
// probe runs per session; overlapping signals coalesce by failing to acquire.
func (m *Machine) TryBeginProbe(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || !m.status.Engaged() || m.probing {
		return false
	}

	m.probing = true
	return true
}

// EndProbe releases the in-flight probe guard
func (m *Machine) EndProbe(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.gen {
		m.probing = false
	}
}

// terminate performs the shared terminal transition: release resources first,
// then flip the status, then notify.
func (m *Machine) terminate(gen uint64, st Status, message string, reason CancelReason) bool {
	m.mu.Lock()
	if gen != m.gen || !m.status.Active() {
		m.mu.Unlock()
		return false
	}

	m.releaseLocked()
	m.status = st
	m.lastError = message
	m.reason = reason
	m.probing = false
	m.scheduleGraceLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
	return true
}

func (m *Machine) releaseLocked() {
	if m.release != nil {
		m.release()
		m.release = nil
	}
}

func (m *Machine) resetLocked() {
	m.releaseLocked()
	m.stopGraceLocked()
	m.status = StatusIdle
	m.attempts = 0
	m.lastError = ""
	m.reason = ""
	m.progress = nil
	m.probing = false
}

func (m *Machine) scheduleGraceLocked() {
	if m.grace <= 0 {
		return
	}

	m.stopGraceLocked()
	gen := m.gen
	m.graceTimer = time.AfterFunc(m.grace, func() {
		m.clearAfterGrace(gen)
	})
}

func (m *Machine) stopGraceLocked() {
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
}

// clearAfterGrace resets the session once the terminal outcome has been
// displayed for the configured grace period
func (m *Machine) clearAfterGrace(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.status.Terminal() {
		m.mu.Unlock()
		return
	}

	m.logger.Debug("Clearing terminal session state", "status", m.status)
	m.resetLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.emit(snap)
}

func (m *Machine) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:    m.status,
		Attempts:  m.attempts,
		LastError: m.lastError,
		Reason:    m.reason,
	}
	if m.progress != nil {
		p := *m.progress
		snap.Progress = &p
	}
	return snap
}

func (m *Machine) emit(snap Snapshot) {
	if m.notify != nil {
		m.notify(snap)
	}
}
