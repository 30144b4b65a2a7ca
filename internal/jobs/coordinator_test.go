package jobs_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/loomstudio/loomctl/internal/jobs"
	"github.com/loomstudio/loomctl/internal/jobs/mocks"
	"github.com/loomstudio/loomctl/internal/session"
)

// snapshotLog records listener snapshots; the listener fires on coordinator
// goroutines, so access is guarded.
type snapshotLog struct {
	mu    sync.Mutex
	snaps []session.Snapshot
}

func (l *snapshotLog) record(snap session.Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snaps = append(l.snaps, snap)
}

func (l *snapshotLog) progressMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var messages []string
	for _, snap := range l.snaps {
		if snap.Progress != nil {
			messages = append(messages, snap.Progress.Message)
		}
	}
	return messages
}

func (l *snapshotLog) progressCurrents() []int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var currents []int
	for _, snap := range l.snaps {
		if snap.Progress != nil {
			currents = append(currents, snap.Progress.Current)
		}
	}
	return currents
}

func (l *snapshotLog) progressWithMessage(message string) *session.Progress {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, snap := range l.snaps {
		if snap.Progress != nil && snap.Progress.Message == message {
			return snap.Progress
		}
	}
	return nil
}

func acceptedSubmit(probe *mocks.MockStatusProbe, jobID string) *gomock.Call {
	return probe.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		Return(jobs.SubmitOutcome{JobID: jobID}, nil)
}

func waitTerminal(t *testing.T, coord *jobs.Coordinator) session.Snapshot {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := coord.Wait(ctx)
	require.NoError(t, err)
	return snap
}

func TestCoordinator_AcceptedJobIsFollowedToCompletion(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	acceptedSubmit(probe, "t1")
	gomock.InOrder(
		probe.EXPECT().Poll(gomock.Any(), "t1").
			Return(jobs.Update{State: jobs.StateRunning, Current: 2, Total: 5}, nil),
		probe.EXPECT().Poll(gomock.Any(), "t1").
			Return(jobs.Update{State: jobs.StateSucceeded}, nil),
	)

	var completions atomic.Int32
	var log snapshotLog
	coord := jobs.New(probe,
		jobs.Config{PollInterval: 20 * time.Millisecond},
		jobs.WithOnCompleted(func(jobID string) {
			assert.Equal(t, "t1", jobID)
			completions.Add(1)
		}),
		jobs.WithListener(log.record),
	)

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})
	assert.Equal(t, session.StatusPolling, coord.Snapshot().Status)

	snap := waitTerminal(t, coord)

	assert.Equal(t, session.StatusSucceeded, snap.Status)
	assert.Contains(t, log.progressMessages(), "Labeled 2 of 5 images...")
	assert.Eventually(t, func() bool {
		return completions.Load() == 1
	}, time.Second, 10*time.Millisecond, "completion callback should fire exactly once")
}

func TestCoordinator_SynchronousCompletionSkipsPolling(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	probe.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		Return(jobs.SubmitOutcome{Completed: true}, nil)

	var completions int
	coord := jobs.New(probe,
		jobs.Config{PollInterval: 10 * time.Millisecond},
		jobs.WithOnCompleted(func(string) { completions++ }),
	)

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})

	assert.Equal(t, session.StatusSucceeded, coord.Snapshot().Status)
	assert.Equal(t, 1, completions)
}

func TestCoordinator_RejectedSubmissionFails(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	probe.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		Return(jobs.SubmitOutcome{}, session.NewTerminalError("dataset not found", nil))

	coord := jobs.New(probe, jobs.Config{PollInterval: 10 * time.Millisecond})

	coord.Start(context.Background(), jobs.Target{Dataset: "missing"})

	snap := coord.Snapshot()
	assert.Equal(t, session.StatusFailed, snap.Status)
	assert.Equal(t, "dataset not found", snap.LastError)
}

func TestCoordinator_StartWhileActiveIsNoOp(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	acceptedSubmit(probe, "t1").Times(1)
	probe.EXPECT().Poll(gomock.Any(), "t1").
		Return(jobs.Update{State: jobs.StateQueued}, nil).
		AnyTimes()

	coord := jobs.New(probe, jobs.Config{PollInterval: 20 * time.Millisecond})

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})
	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"}) // must not submit again

	assert.Equal(t, session.StatusPolling, coord.Snapshot().Status)

	require.NoError(t, coord.Close())
}

func TestCoordinator_ProgressNeverRegresses(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	acceptedSubmit(probe, "t1")
	gomock.InOrder(
		probe.EXPECT().Poll(gomock.Any(), "t1").
			Return(jobs.Update{State: jobs.StateRunning, Current: 3, Total: 5}, nil),
		probe.EXPECT().Poll(gomock.Any(), "t1").
			Return(jobs.Update{State: jobs.StateRunning, Current: 1, Total: 5}, nil),
		probe.EXPECT().Poll(gomock.Any(), "t1").
			Return(jobs.Update{State: jobs.StateSucceeded}, nil),
	)

	var log snapshotLog
	coord := jobs.New(probe,
		jobs.Config{PollInterval: 20 * time.Millisecond},
		jobs.WithListener(log.record),
	)

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})
	waitTerminal(t, coord)

	currents := log.progressCurrents()
	for i := 1; i < len(currents); i++ {
		assert.GreaterOrEqual(t, currents[i], currents[i-1])
	}
	assert.Contains(t, currents, 3)
	assert.NotContains(t, currents, 1)
}

func TestCoordinator_FreeTextUpdateKeepsTheCounter(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	acceptedSubmit(probe, "t1")
	gomock.InOrder(
		probe.EXPECT().Poll(gomock.Any(), "t1").
			Return(jobs.Update{State: jobs.StateRunning, Current: 2, Total: 5}, nil),
		probe.EXPECT().Poll(gomock.Any(), "t1").
			Return(jobs.Update{State: jobs.StateRunning, Message: "compositing previews"}, nil),
		probe.EXPECT().Poll(gomock.Any(), "t1").
			Return(jobs.Update{State: jobs.StateSucceeded}, nil),
	)

	var log snapshotLog
	coord := jobs.New(probe,
		jobs.Config{PollInterval: 20 * time.Millisecond},
		jobs.WithListener(log.record),
	)

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})
	waitTerminal(t, coord)

	last := log.progressWithMessage("compositing previews")
	require.NotNil(t, last)
	assert.Equal(t, 2, last.Current)
	assert.Equal(t, 5, last.Total)
}

func TestCoordinator_EmptyUpdateEmitsGenericProgress(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	acceptedSubmit(probe, "t1")
	gomock.InOrder(
		probe.EXPECT().Poll(gomock.Any(), "t1").
			Return(jobs.Update{State: jobs.StateQueued}, nil),
		probe.EXPECT().Poll(gomock.Any(), "t1").
			Return(jobs.Update{State: jobs.StateSucceeded}, nil),
	)

	var log snapshotLog
	coord := jobs.New(probe,
		jobs.Config{PollInterval: 20 * time.Millisecond},
		jobs.WithListener(log.record),
	)

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})
	waitTerminal(t, coord)

	assert.Contains(t, log.progressMessages(), "Labeling in progress...")
}

func TestCoordinator_TransientPollErrorsKeepPolling(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	acceptedSubmit(probe, "t1")
	gomock.InOrder(
		probe.EXPECT().Poll(gomock.Any(), "t1").
			Return(jobs.Update{}, errors.New("connection refused")).
			Times(2),
		probe.EXPECT().Poll(gomock.Any(), "t1").
			Return(jobs.Update{State: jobs.StateSucceeded}, nil),
	)

	coord := jobs.New(probe, jobs.Config{PollInterval: 20 * time.Millisecond})

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})
	snap := waitTerminal(t, coord)

	assert.Equal(t, session.StatusSucceeded, snap.Status)
	assert.GreaterOrEqual(t, snap.Attempts, 3)
}

func TestCoordinator_FailedJobSurfacesTheMessage(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	acceptedSubmit(probe, "t1")
	probe.EXPECT().Poll(gomock.Any(), "t1").
		Return(jobs.Update{State: jobs.StateFailed, Message: "model capacity exceeded"}, nil)

	coord := jobs.New(probe, jobs.Config{PollInterval: 20 * time.Millisecond})

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})
	snap := waitTerminal(t, coord)

	assert.Equal(t, session.StatusFailed, snap.Status)
	assert.Equal(t, "model capacity exceeded", snap.LastError)
}

func TestCoordinator_FailedJobWithoutMessageGetsGenericText(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	acceptedSubmit(probe, "t1")
	probe.EXPECT().Poll(gomock.Any(), "t1").
		Return(jobs.Update{State: jobs.StateFailed}, nil)

	coord := jobs.New(probe, jobs.Config{PollInterval: 20 * time.Millisecond})

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})
	snap := waitTerminal(t, coord)

	assert.Equal(t, session.StatusFailed, snap.Status)
	assert.Equal(t, "Labeling failed unexpectedly", snap.LastError)
}

func TestCoordinator_CallbackPanicDoesNotRevertSuccess(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	acceptedSubmit(probe, "t1")
	probe.EXPECT().Poll(gomock.Any(), "t1").
		Return(jobs.Update{State: jobs.StateSucceeded}, nil)

	coord := jobs.New(probe,
		jobs.Config{PollInterval: 20 * time.Millisecond},
		jobs.WithOnCompleted(func(string) { panic("downstream refresh failed") }),
	)

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})
	snap := waitTerminal(t, coord)

	assert.Equal(t, session.StatusSucceeded, snap.Status)
	assert.Empty(t, snap.LastError)
}

func TestCoordinator_CancelStopsPolling(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	acceptedSubmit(probe, "t1")
	probe.EXPECT().Poll(gomock.Any(), "t1").
		Return(jobs.Update{State: jobs.StateQueued}, nil).
		AnyTimes()

	coord := jobs.New(probe, jobs.Config{PollInterval: 20 * time.Millisecond})

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})
	coord.Cancel()

	snap := coord.Snapshot()
	assert.Equal(t, session.StatusCancelled, snap.Status)
	assert.Equal(t, session.ReasonCancelled, snap.Reason)

	// Any poll already in flight resolves into a discarded signal.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, session.StatusCancelled, coord.Snapshot().Status)
}

func TestCoordinator_RoundTripAfterReset(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	acceptedSubmit(probe, "t1")
	probe.EXPECT().Poll(gomock.Any(), "t1").
		Return(jobs.Update{State: jobs.StateRunning, Current: 2, Total: 5}, nil)
	probe.EXPECT().Poll(gomock.Any(), "t1").
		Return(jobs.Update{State: jobs.StateFailed, Message: "model capacity exceeded"}, nil)
	acceptedSubmit(probe, "t2")
	probe.EXPECT().Poll(gomock.Any(), "t2").
		Return(jobs.Update{State: jobs.StateQueued}, nil).
		AnyTimes()

	coord := jobs.New(probe, jobs.Config{PollInterval: 20 * time.Millisecond})

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})
	waitTerminal(t, coord)

	require.True(t, coord.Reset())
	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})

	snap := coord.Snapshot()
	assert.Equal(t, session.StatusPolling, snap.Status)
	assert.Zero(t, snap.Attempts)
	assert.Nil(t, snap.Progress)
	assert.Empty(t, snap.LastError)

	require.NoError(t, coord.Close())
}

func TestCoordinator_OutcomeClearsAfterGracePeriod(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	probe := mocks.NewMockStatusProbe(ctrl)

	acceptedSubmit(probe, "t1")
	probe.EXPECT().Poll(gomock.Any(), "t1").
		Return(jobs.Update{State: jobs.StateSucceeded}, nil)

	coord := jobs.New(probe, jobs.Config{
		PollInterval: 20 * time.Millisecond,
		GracePeriod:  50 * time.Millisecond,
	})

	coord.Start(context.Background(), jobs.Target{Dataset: "portraits"})
	snap := waitTerminal(t, coord)
	assert.Equal(t, session.StatusSucceeded, snap.Status)

	require.Eventually(t, func() bool {
		return coord.Snapshot().Status == session.StatusIdle
	}, time.Second, 10*time.Millisecond)
}
