package authflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"

	"github.com/loomstudio/loomctl/internal/httpclient"
	"github.com/loomstudio/loomctl/internal/session"
)

const (
	statusPath = "/api/auth/status"
	loginPath  = "/login"
	logoutPath = "/api/auth/logout"

	// checkMaxTries bounds transient retries within a single authoritative
	// check; a tick that exhausts the budget simply waits for the next one
	checkMaxTries = 3

	genericAuthFailure = "Sign-in failed: unexpected response from the server"
)

// Identity is the authenticated principal reported by the status endpoint
type Identity struct {
	Role string

	// LatestClientVersion is the newest client release the server advertises,
	// empty when the server does not report one
	LatestClientVersion string
}

// StatusProbe is the authoritative source of session state. Check returning
// (nil, nil) means positively unauthenticated, which is not an error.
//
//go:generate mockgen -destination=mocks/mock_probe.go -package=mocks github.com/loomstudio/loomctl/internal/authflow StatusProbe
type StatusProbe interface {
	// Check issues a credentialed status request. A *session.TerminalError
	// marks a response the flow cannot recover from; any other error is
	// transient and safe to retry on the next tick.
	Check(ctx context.Context) (*Identity, error)

	// LoginURL builds the browser login URL carrying the sanitized return
	// path, the CSRF state nonce and the local completion-notify address.
	LoginURL(returnPath, state, notifyURL string) string

	// Logout terminates the server-side session
	Logout(ctx context.Context) error
}

// HTTPProbe implements StatusProbe against the Loom Studio HTTP API
type HTTPProbe struct {
	client  httpclient.Client
	baseURL string
}

// NewHTTPProbe creates a probe for the given service base URL
func NewHTTPProbe(client httpclient.Client, baseURL string) *HTTPProbe {
	return &HTTPProbe{
		client:  client,
		baseURL: baseURL,
	}
}

// Check fetches the current session state, retrying transient transport
// failures within a small fixed budget
func (p *HTTPProbe) Check(ctx context.Context) (*Identity, error) {
	statusURL := p.baseURL + statusPath

	operation := func() (*Identity, error) {
		body, err := p.client.Get(ctx, statusURL)
		if err != nil {
			return p.classifyCheckError(body, err)
		}
		return parseStatusPayload(body)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(checkMaxTries),
	)
}

// classifyCheckError maps transport-level failures onto the probe contract:
// auth-denied statuses mean "not signed in", server-side blips stay
// retriable, anything else is authoritative.
func (p *HTTPProbe) classifyCheckError(body []byte, err error) (*Identity, error) {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		return nil, err // network failure, transient
	}

	switch {
	case httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden:
		// An unauthenticated session, even when the body is not JSON
		return nil, nil
	case httpErr.Retriable():
		return nil, err
	default:
		return nil, backoff.Permanent(session.NewTerminalError(genericAuthFailure, err))
	}
}

// parseStatusPayload interprets the status response body. The raw body is
// never propagated into user-facing messages.
func parseStatusPayload(body []byte) (*Identity, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		// No-content responses mean unauthenticated
		return nil, nil
	}

	if !gjson.ValidBytes(body) {
		return nil, backoff.Permanent(session.NewTerminalError(genericAuthFailure, nil))
	}

	doc := gjson.ParseBytes(body)
	authenticated := doc.Get("authenticated")
	if !authenticated.Exists() || !authenticated.IsBool() {
		return nil, backoff.Permanent(session.NewTerminalError(genericAuthFailure, nil))
	}

	if !authenticated.Bool() {
		return nil, nil
	}

	return &Identity{
		Role:                doc.Get("role").String(),
		LatestClientVersion: doc.Get("latest_client_version").String(),
	}, nil
}

// LoginURL builds the browser login URL
func (p *HTTPProbe) LoginURL(returnPath, state, notifyURL string) string {
	q := url.Values{}
	q.Set("return_to", returnPath)
	q.Set("state", state)
	if notifyURL != "" {
		q.Set("notify", notifyURL)
	}
	return p.baseURL + loginPath + "?" + q.Encode()
}

// Logout terminates the server-side session
func (p *HTTPProbe) Logout(ctx context.Context) error {
	body, _, err := p.client.Post(ctx, p.baseURL+logoutPath, nil)
	if err != nil {
		if msg := gjson.GetBytes(body, "message"); msg.Exists() {
			return fmt.Errorf("logout failed: %s", msg.String())
		}
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}
