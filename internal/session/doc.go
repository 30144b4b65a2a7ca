// Package session implements the state machine shared by coordinators that
// track long-running operations executed outside the process: a sign-in flow
// completed in an external browser context, or a server-side labeling job
// tracked by polling.
//
// # State Machine
//
// A session moves through:
//
//	Idle → Starting → {AwaitingExternalCompletion | Polling} → {Succeeded | Failed | Cancelled} → Idle
//
// Exactly one session is tracked per Machine. Begin refuses to open a second
// session while one is active or a terminal outcome has not been cleared, so
// duplicate start triggers collapse into no-ops.
//
// # Signals
//
// Progress arrives from multiple unreliable sources: timer ticks, a message
// from the external context, or a probe response. All of them route through
// generation-guarded machine methods (Tick, SetProgress, Succeed, Fail,
// CancelSession) so a signal is never applied twice, out of order, or after
// the session has ended. The TryBeginProbe/EndProbe pair enforces at most one
// in-flight authoritative probe per session; overlapping signals coalesce.
//
// # Cleanup
//
// Engage registers a release hook owning the session's external handle and
// timers. The hook runs exactly once, before any terminal transition becomes
// observable, so listeners never see a terminal session that still holds
// resources.
//
// # Error Taxonomy
//
//   - Transient: logged by the coordinator and retried on the next tick;
//     does not change session state.
//   - Terminal (TerminalError): short-circuits the session to Failed with a
//     user-facing message.
//   - User-cancelled: StatusCancelled with a CancelReason; only explicit
//     dismissal (ReasonCancelled) warrants a user-visible message.
package session
