package session

// Status represents the current phase of an external operation session
type Status string

const (
	// StatusIdle means no operation is being tracked
	StatusIdle Status = "Idle"

	// StatusStarting means the operation is being initiated
	StatusStarting Status = "Starting"

	// StatusAwaitingExternal means the operation runs in an external context
	// (a browser window) and completion is observed indirectly
	StatusAwaitingExternal Status = "AwaitingExternalCompletion"

	// StatusPolling means the operation runs server-side and is tracked by
	// polling a status endpoint
	StatusPolling Status = "Polling"

	// StatusSucceeded means the operation completed successfully
	StatusSucceeded Status = "Succeeded"

	// StatusFailed means the operation failed
	StatusFailed Status = "Failed"

	// StatusCancelled means the operation was abandoned before completion
	StatusCancelled Status = "Cancelled"
)

// Terminal reports whether the status is a final outcome. No further signals
// are processed for a session once it is terminal.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Active reports whether a session is in flight (initiating or tracked).
func (s Status) Active() bool {
	return s == StatusStarting || s == StatusAwaitingExternal || s == StatusPolling
}

// Engaged reports whether the session holds an external handle and receives
// timer or message signals.
func (s Status) Engaged() bool {
	return s == StatusAwaitingExternal || s == StatusPolling
}

// CancelReason classifies why a session was cancelled
type CancelReason string

const (
	// ReasonClosed means the external context went away without completing
	ReasonClosed CancelReason = "closed"

	// ReasonCancelled means the user explicitly dismissed the operation.
	// This is the only reason that warrants a user-visible message.
	ReasonCancelled CancelReason = "cancelled"

	// ReasonExpired means the session outlived its useful lifetime
	ReasonExpired CancelReason = "expired"
)

// Progress is a point-in-time progress report for one session. A new session
// always starts with no progress.
type Progress struct {
	Current int
	Total   int
	Message string
}

// Snapshot is a read-only copy of the session state handed to observers.
// Display code drives strictly off Status, Progress and LastError.
type Snapshot struct {
	Status Status

	// Attempts is the number of timer ticks observed since the session
	// became engaged
	Attempts int

	// LastError is set only when Status is StatusFailed
	LastError string

	// Reason is set only when Status is StatusCancelled
	Reason CancelReason

	Progress *Progress
}
