// Package jobs coordinates long-running labeling jobs: submit once, then
// poll on a fixed interval until the server reports a terminal state. It
// shares the session state machine with the sign-in flow, so display code
// consumes both through the same snapshot shape.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomstudio/loomctl/internal/session"
	"github.com/loomstudio/loomctl/internal/telemetry"
)

const (
	operationKind = "label"

	genericProgress = "Labeling in progress..."
	genericFailure  = "Labeling failed unexpectedly"
)

// Config holds the coordinator timing knobs
type Config struct {
	// PollInterval is the fixed interval between job status polls
	PollInterval time.Duration

	// GracePeriod is how long a terminal outcome stays visible before the
	// session auto-clears. Zero keeps it until Reset.
	GracePeriod time.Duration
}

// Coordinator drives one labeling job at a time from submission to a
// terminal outcome
type Coordinator struct {
	probe   StatusProbe
	cfg     Config
	logger  *slog.Logger
	metrics *telemetry.OperationMetrics

	machine *session.Machine
	watcher *session.Watcher

	onCompleted func(jobID string)
	listener    func(session.Snapshot)
}

// Option is a function that configures the coordinator
type Option func(*Coordinator)

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

// WithOnCompleted sets the completion callback invoked once per successful
// job. Callback failures are contained and logged; they never revert the
// outcome.
func WithOnCompleted(fn func(jobID string)) Option {
	return func(c *Coordinator) {
		c.onCompleted = fn
	}
}

// WithListener sets a read-only observer of session snapshots
func WithListener(fn func(session.Snapshot)) Option {
	return func(c *Coordinator) {
		c.listener = fn
	}
}

// New creates a job poll coordinator
func New(probe StatusProbe, cfg Config, opts ...Option) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	c := &Coordinator{
		probe:  probe,
		cfg:    cfg,
		logger: slog.Default(),
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

// jobRun carries the per-session state touched only from the poll goroutine
type jobRun struct {
	gen     uint64
	jobID   string
	started time.Time

	// last observed progress pair, carried forward so a free-text update
	// never drops the counter
	current int
	total   int
}

// Start submits the target and begins polling. Calling Start while a session
// is active or an outcome is still displayed is a no-op.
func (c *Coordinator) Start(ctx context.Context, target Target) {
	gen, ok := c.machine.Begin()
	if !ok {
		c.logger.Debug("Labeling already in progress; ignoring start")
		return
	}

	run := &jobRun{gen: gen, started: time.Now()}

	outcome, err := c.probe.Submit(ctx, target)
	if err != nil {
		if c.machine.Fail(gen, session.TerminalMessage(err, genericSubmitFailure)) {
			c.metrics.RecordOperationDuration(ctx, operationKind, time.Since(run.started), "failed")
		}
		return
	}

	if outcome.Completed {
		if c.machine.Succeed(gen) {
			c.metrics.RecordOperationDuration(ctx, operationKind, time.Since(run.started), "succeeded")
			c.notifyCompleted(outcome.JobID)
		}
		return
	}

	run.jobID = outcome.JobID

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if !c.machine.Engage(gen, session.StatusPolling, cancel) {
		// Cancelled between Begin and Engage
		cancel()
		return
	}

	go c.watch(runCtx, run)
}

// Cancel abandons the current session
func (c *Coordinator) Cancel() {
	c.machine.Cancel(session.ReasonCancelled)
}

// Close cancels any in-flight session unconditionally
func (c *Coordinator) Close() error {
	c.machine.Cancel(session.ReasonCancelled)
	return nil
}

// Reset clears a terminal outcome so a fresh job can start
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

// watch delivers poll ticks until the session's timer is released
func (c *Coordinator) watch(ctx context.Context, run *jobRun) {
	ticker := time.NewTicker(c.cfg.PollInterval)
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

func (c *Coordinator) tick(ctx context.Context, run *jobRun) {
	if _, ok := c.machine.Tick(run.gen); !ok {
		return
	}

	c.metrics.RecordPollTick(ctx, operationKind)

	if !c.machine.TryBeginProbe(run.gen) {
		return
	}
	defer c.machine.EndProbe(run.gen)

	update, err := c.probe.Poll(ctx, run.jobID)
	if err != nil {
		if session.IsTerminal(err) {
			if c.machine.Fail(run.gen, session.TerminalMessage(err, genericFailure)) {
				c.metrics.RecordOperationDuration(ctx, operationKind, time.Since(run.started), "failed")
			}
			return
		}
		c.logger.Debug("Job status poll failed; will retry", "jobID", run.jobID, "error", err)
		return
	}

	switch update.State {
	case StateQueued, StateRunning:
		c.machine.SetProgress(run.gen, run.progressFor(update))
	case StateSucceeded:
		if c.machine.Succeed(run.gen) {
			c.metrics.RecordOperationDuration(ctx, operationKind, time.Since(run.started), "succeeded")
			c.notifyCompleted(run.jobID)
		}
	case StateFailed:
		message := update.Message
		if message == "" {
			message = genericFailure
		}
		if c.machine.Fail(run.gen, message) {
			c.metrics.RecordOperationDuration(ctx, operationKind, time.Since(run.started), "failed")
		}
	}
}

// progressFor turns a poll observation into displayed progress. A counter
// pair wins over free text; with neither, a generic line keeps the display
// moving instead of blocking on malformed data.
func (r *jobRun) progressFor(update Update) session.Progress {
	if update.Total > 0 {
		r.current = update.Current
		r.total = update.Total
		return session.Progress{
			Current: update.Current,
			Total:   update.Total,
			Message: fmt.Sprintf("Labeled %d of %d images...", update.Current, update.Total),
		}
	}

	message := update.Message
	if message == "" {
		message = genericProgress
	}
	return session.Progress{Current: r.current, Total: r.total, Message: message}
}

func (c *Coordinator) notifyCompleted(jobID string) {
	if c.onCompleted == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Labeling completion callback failed", "jobID", jobID, "cause", r)
		}
	}()

	c.onCompleted(jobID)
}
