package authflow

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const callbackPage = `<!DOCTYPE html>
<html>
<head><title>Sign-in complete</title></head>
<body>
    <h1>Sign-in complete</h1>
    <p>You can close this window and return to the application.</p>
</body>
</html>
`

// CompletionListener receives the completion message from the external
// browsing context: when sign-in finishes, the server redirects the browser
// to this local endpoint. It is the message-signal counterpart to the
// coordinator's close-check poll timer.
type CompletionListener struct {
	state     string
	onMessage func()
	logger    *slog.Logger

	srv   *http.Server
	ln    net.Listener
	group *errgroup.Group
}

// NewCompletionListener creates a listener bound to a random loopback port.
// onMessage fires on every valid callback hit and must not block.
func NewCompletionListener(state string, onMessage func(), logger *slog.Logger) *CompletionListener {
	return &CompletionListener{
		state:     state,
		onMessage: onMessage,
		logger:    logger,
	}
}

// Start binds the loopback port and begins serving
func (l *CompletionListener) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to bind completion listener: %w", err)
	}
	l.ln = ln

	r := chi.NewRouter()
	r.Get("/callback", l.handleCallback)

	l.srv = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	l.group = &errgroup.Group{}
	l.group.Go(func() error {
		if err := l.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	return nil
}

// URL returns the callback endpoint the login flow should redirect to
func (l *CompletionListener) URL() string {
	return fmt.Sprintf("http://%s/callback", l.ln.Addr().String())
}

// Close stops the listener. Safe to call before Start.
func (l *CompletionListener) Close() error {
	if l.srv == nil {
		return nil
	}

	_ = l.srv.Close()
	return l.group.Wait()
}

func (l *CompletionListener) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("state") != l.state {
		l.logger.Warn("Rejected sign-in callback with mismatched state")
		http.Error(w, "Invalid state parameter", http.StatusForbidden)
		return
	}

	l.onMessage()

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(callbackPage))
}
