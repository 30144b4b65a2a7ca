package authflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loomstudio/loomctl/internal/authflow/browserctx"
	"github.com/loomstudio/loomctl/internal/session"
	"github.com/loomstudio/loomctl/internal/telemetry"
)

const operationKind = "login"

// Config holds the coordinator timing knobs
type Config struct {
	// CloseCheckInterval is the fixed interval between external-context
	// close checks
	CloseCheckInterval time.Duration

	// StatusProbeEvery makes every Nth close-check tick also run an
	// authoritative status probe, bounding the worst-case detection latency
	// for sign-ins that never message back
	StatusProbeEvery int

	// GracePeriod is how long a terminal outcome stays visible before the
	// session auto-clears. Zero keeps it until Reset.
	GracePeriod time.Duration
}

// Coordinator drives a sign-in flow performed in an external browsing
// context, reconciling two independent completion signals: a message from the
// context itself, and a close-check poll timer.
type Coordinator struct {
	probe    StatusProbe
	launcher browserctx.Launcher
	cfg      Config
	logger   *slog.Logger
	metrics  *telemetry.OperationMetrics

	machine *session.Machine
	watcher *session.Watcher

	onAuthenticated func(Identity)
	onOpenFallback  func(loginURL string)
	listener        func(session.Snapshot)
}

// Option is a function that configures the coordinator
type Option func(*Coordinator)

// WithLauncher sets the external-context launcher
func WithLauncher(launcher browserctx.Launcher) Option {
	return func(c *Coordinator) {
		c.launcher = launcher
	}
}

// WithLogger sets the logger for the coordinator
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics sets the operation metrics for the coordinator
func WithMetrics(metrics *telemetry.OperationMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// WithOnAuthenticated sets the completion callback invoked once per
// successful sign-in. Callback failures are contained and logged.
func WithOnAuthenticated(fn func(Identity)) Option {
	return func(c *Coordinator) {
		c.onAuthenticated = fn
	}
}

// WithOpenFallback sets the handler invoked with the login URL when the
// browser cannot be opened and the flow falls back to a manual visit
func WithOpenFallback(fn func(loginURL string)) Option {
	return func(c *Coordinator) {
		c.onOpenFallback = fn
	}
}

// WithListener sets a read-only observer of session snapshots
func WithListener(fn func(session.Snapshot)) Option {
	return func(c *Coordinator) {
		c.listener = fn
	}
}

// New creates a sign-in coordinator
func New(probe StatusProbe, cfg Config, opts ...Option) *Coordinator {
	if cfg.CloseCheckInterval <= 0 {
		cfg.CloseCheckInterval = 2 * time.Second
	}
	if cfg.StatusProbeEvery < 1 {
		cfg.StatusProbeEvery = 5
	}

	c := &Coordinator{
		probe:    probe,
		launcher: browserctx.NewExecLauncher(),
		cfg:      cfg,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.watcher = session.NewWatcher()
	c.machine = session.New(
		session.WithLogger(c.logger),
		session.WithGracePeriod(cfg.GracePeriod),
		session.WithNotify(c.notify),
	)

	return c
}

// authRun carries the per-session resources captured by the signal handlers
type authRun struct {
	gen     uint64
	handle  browserctx.Handle
	started time.Time

	// warnedClosed suppresses repeated close-check warnings; touched only
	// from the tick goroutine
	warnedClosed bool
}

// Start opens the external sign-in context and begins tracking it. Calling
// Start while a session is active or an outcome is still displayed is a
// no-op.
func (c *Coordinator) Start(ctx context.Context, returnPath string) {
	gen, ok := c.machine.Begin()
	if !ok {
		c.logger.Debug("Sign-in already in progress; ignoring start")
		return
	}

	returnPath = SanitizeReturnPath(returnPath)
	state := uuid.NewString()
	run := &authRun{gen: gen, started: time.Now()}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	listener := NewCompletionListener(state, func() {
		// The message signal triggers an immediate authoritative check;
		// run it off the HTTP handler goroutine so the browser gets its
		// response right away.
		go c.authoritativeCheck(runCtx, run, false)
	}, c.logger)
	if err := listener.Start(); err != nil {
		cancel()
		c.logger.Error("Failed to start sign-in completion listener", "error", err)
		c.machine.Fail(gen, "Sign-in could not be started")
		return
	}

	loginURL := c.probe.LoginURL(returnPath, state, listener.URL())

	handle, err := c.launcher.Open(loginURL)
	if err != nil {
		// Blocked or unavailable browser: hand the URL to the caller
		// instead of tracking an external context that never opened.
		c.logger.Warn("Could not open browser for sign-in", "error", err)
		_ = listener.Close()
		cancel()
		c.machine.Abort(gen)
		if c.onOpenFallback != nil {
			c.onOpenFallback(loginURL)
		}
		return
	}

	run.handle = handle

	release := func() {
		cancel()
		_ = handle.Close()
		_ = listener.Close()
	}

	if !c.machine.Engage(gen, session.StatusAwaitingExternal, release) {
		// Cancelled between Begin and Engage; nothing tracks these
		// resources anymore.
		release()
		return
	}

	go c.watch(runCtx, run)
}

// Cancel abandons the current session. Only session.ReasonCancelled produces
// a user-visible message downstream.
func (c *Coordinator) Cancel(reason session.CancelReason) {
	c.machine.Cancel(reason)
}

// Close cancels any in-flight session unconditionally. Intended for teardown
// paths so the external context and timers are released even mid-flow.
func (c *Coordinator) Close() error {
	c.machine.Cancel(session.ReasonCancelled)
	return nil
}

// Reset clears a terminal outcome so a fresh sign-in can start
func (c *Coordinator) Reset() bool {
	return c.machine.Reset()
}

// Snapshot returns the current session state
func (c *Coordinator) Snapshot() session.Snapshot {
	return c.machine.Snapshot()
}

// Wait blocks until the session reaches a terminal outcome
func (c *Coordinator) Wait(ctx context.Context) (session.Snapshot, error) {
	return c.watcher.Wait(ctx)
}

func (c *Coordinator) notify(snap session.Snapshot) {
	c.watcher.Notify(snap)
	if c.listener != nil {
		c.listener(snap)
	}
}

// watch delivers close-check ticks until the session's resources are released
func (c *Coordinator) watch(ctx context.Context, run *authRun) {
	ticker := time.NewTicker(c.cfg.CloseCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.tick(ctx, run)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Coordinator) tick(ctx context.Context, run *authRun) {
	attempts, ok := c.machine.Tick(run.gen)
	if !ok {
		return
	}

	c.metrics.RecordPollTick(ctx, operationKind)

	if c.contextClosed(run) {
		// The context went away; one final authoritative check decides
		// between a completed sign-in that never messaged back and an
		// abandoned one.
		c.authoritativeCheck(ctx, run, true)
		return
	}

	if attempts%c.cfg.StatusProbeEvery == 0 {
		c.authoritativeCheck(ctx, run, false)
	}
}

// contextClosed treats any failure while inspecting the external context as
// closed, warning only once per session
func (c *Coordinator) contextClosed(run *authRun) (closed bool) {
	defer func() {
		if r := recover(); r != nil {
			closed = true
			if !run.warnedClosed {
				run.warnedClosed = true
				c.logger.Warn("Could not inspect the sign-in window; treating it as closed", "cause", r)
			}
		}
	}()

	return run.handle.Closed()
}

// authoritativeCheck consults the status probe and settles the session.
// The machine's in-flight guard coalesces overlapping checks from the
// message path and the timer path.
func (c *Coordinator) authoritativeCheck(ctx context.Context, run *authRun, contextClosed bool) {
	if !c.machine.TryBeginProbe(run.gen) {
		return
	}
	defer c.machine.EndProbe(run.gen)

	identity, err := c.probe.Check(ctx)
	switch {
	case err == nil && identity != nil:
		if c.machine.Succeed(run.gen) {
			c.metrics.RecordOperationDuration(ctx, operationKind, time.Since(run.started), "succeeded")
			c.notifyAuthenticated(*identity)
		}
	case err == nil:
		if contextClosed {
			if c.machine.CancelSession(run.gen, session.ReasonClosed) {
				c.metrics.RecordOperationDuration(ctx, operationKind, time.Since(run.started), "cancelled")
			}
		}
		// Still anonymous with the context open: keep waiting.
	case session.IsTerminal(err):
		if c.machine.Fail(run.gen, session.TerminalMessage(err, "Sign-in failed unexpectedly")) {
			c.metrics.RecordOperationDuration(ctx, operationKind, time.Since(run.started), "failed")
		}
	default:
		c.logger.Debug("Authentication status check failed; will retry", "error", err)
	}
}

func (c *Coordinator) notifyAuthenticated(identity Identity) {
	if c.onAuthenticated == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Sign-in completion callback failed", "cause", r)
		}
	}()

	c.onAuthenticated(identity)
}
