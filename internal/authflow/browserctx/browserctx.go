// Package browserctx abstracts the external browsing context a sign-in flow
// runs in, so the coordinator state machine stays free of host-specific
// window handling.
package browserctx

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync"
)

var getRuntime = func() string { return runtime.GOOS }

// Handle is an open external browsing context. It is owned by exactly one
// coordinator session at a time.
type Handle interface {
	// Closed reports whether the context is known to have gone away.
	// Inspection is best-effort: a context handed off to an already-running
	// browser cannot be observed and never reports closed.
	Closed() bool

	// Close releases the context. Safe to call more than once.
	Close() error
}

// Launcher opens an external browsing context pointed at a URL
//
//go:generate mockgen -destination=mocks/mock_launcher.go -package=mocks github.com/loomstudio/loomctl/internal/authflow/browserctx Launcher,Handle
type Launcher interface {
	Open(url string) (Handle, error)
}

// ExecLauncher opens the default system browser through the platform opener.
// Supports macOS, Linux, and Windows.
type ExecLauncher struct{}

// NewExecLauncher creates a launcher for the current platform
func NewExecLauncher() *ExecLauncher {
	return &ExecLauncher{}
}

// Open launches the platform browser opener pointed at the URL
func (*ExecLauncher) Open(url string) (Handle, error) {
	var cmd *exec.Cmd
	rt := getRuntime()
	switch rt {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return nil, fmt.Errorf("unsupported platform: %s", rt)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to open browser: %w", err)
	}

	h := &execHandle{cmd: cmd}
	go h.wait()
	return h, nil
}

// execHandle tracks the opener process. Most openers hand the URL to an
// existing browser process and exit immediately, which says nothing about
// the window, so only a failed exit counts as closed.
type execHandle struct {
	cmd *exec.Cmd

	mu      sync.Mutex
	done    bool
	exitErr error
}

func (h *execHandle) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.done = true
	h.exitErr = err
}

// Closed reports whether the opener exited with a failure
func (h *execHandle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done && h.exitErr != nil
}

// Close kills the opener process if it is still running
func (h *execHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.done && h.cmd != nil && h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	return nil
}
