package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/loomstudio/loomctl/internal/httpclient"
	"github.com/loomstudio/loomctl/internal/session"
)

const (
	jobsPath = "/api/labeling/jobs"

	// pollMaxTries bounds transient retries within a single poll tick
	pollMaxTries = 3

	genericSubmitFailure = "Labeling could not be started"
)

// State is the server-reported lifecycle state of a labeling job
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Target describes the work submitted to the labeling service
type Target struct {
	Dataset string   `json:"dataset"`
	Labels  []string `json:"labels,omitempty"`
}

// SubmitOutcome is the accepted-or-completed result of a job submission.
// Completed means the server finished the work synchronously and there is
// nothing to poll.
type SubmitOutcome struct {
	JobID     string
	Completed bool
}

// Update is one poll observation. Current/Total form a progress pair when
// Total is positive; Message carries the server's free-text progress line.
type Update struct {
	State   State
	Current int
	Total   int
	Message string
}

// StatusProbe submits labeling jobs and reports their state.
//
//go:generate mockgen -destination=mocks/mock_probe.go -package=mocks github.com/loomstudio/loomctl/internal/jobs StatusProbe
type StatusProbe interface {
	// Submit creates a job. Errors carry the server's message when one can
	// be parsed; a *session.TerminalError means the submission was rejected.
	Submit(ctx context.Context, target Target) (SubmitOutcome, error)

	// Poll fetches the state of a previously submitted job. Transient
	// failures are safe to retry on the next tick; a *session.TerminalError
	// ends the session.
	Poll(ctx context.Context, jobID string) (Update, error)
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

type submitRequest struct {
	Target
	RequestID string `json:"request_id"`
}

// Submit creates a labeling job. A 202 response yields the job identifier to
// poll; a 200 response means the server completed the work synchronously.
func (p *HTTPProbe) Submit(ctx context.Context, target Target) (SubmitOutcome, error) {
	payload, err := json.Marshal(submitRequest{Target: target, RequestID: uuid.NewString()})
	if err != nil {
		return SubmitOutcome{}, fmt.Errorf("failed to encode job request: %w", err)
	}

	body, statusCode, err := p.client.Post(ctx, p.baseURL+jobsPath, payload)
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) {
			return SubmitOutcome{}, session.NewTerminalError(serverMessage(body, genericSubmitFailure), err)
		}
		return SubmitOutcome{}, session.NewTerminalError(genericSubmitFailure, err)
	}

	switch statusCode {
	case http.StatusOK:
		return SubmitOutcome{Completed: true}, nil
	case http.StatusAccepted:
		jobID := gjson.GetBytes(body, "job_id").String()
		if jobID == "" {
			return SubmitOutcome{}, session.NewTerminalError(genericSubmitFailure, nil)
		}
		return SubmitOutcome{JobID: jobID}, nil
	default:
		return SubmitOutcome{}, session.NewTerminalError(serverMessage(body, genericSubmitFailure), nil)
	}
}

// Poll fetches the current job state, retrying transient transport failures
// within a small fixed budget. Malformed single responses stay transient so
// the next tick can try again.
func (p *HTTPProbe) Poll(ctx context.Context, jobID string) (Update, error) {
	jobURL := p.baseURL + jobsPath + "/" + jobID

	operation := func() (Update, error) {
		body, err := p.client.Get(ctx, jobURL)
		if err != nil {
			return Update{}, classifyPollError(body, err)
		}
		return parseJobPayload(body)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(pollMaxTries),
	)
}

func classifyPollError(body []byte, err error) error {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		return err // network failure, transient
	}
	if httpErr.Retriable() {
		return err
	}
	return backoff.Permanent(session.NewTerminalError(serverMessage(body, "Labeling failed unexpectedly"), err))
}

// parseJobPayload interprets a poll response. Progress fields are optional
// and tolerated in any shape; only the state field is required.
func parseJobPayload(body []byte) (Update, error) {
	if !gjson.ValidBytes(body) {
		return Update{}, errors.New("malformed job status payload")
	}

	doc := gjson.ParseBytes(body)
	state := State(doc.Get("state").String())
	switch state {
	case StateQueued, StateRunning, StateSucceeded, StateFailed:
	default:
		return Update{}, fmt.Errorf("unrecognized job state %q", state)
	}

	update := Update{
		State:   state,
		Message: doc.Get("message").String(),
	}
	if progress := doc.Get("progress"); progress.IsObject() {
		update.Current = int(progress.Get("current").Int())
		update.Total = int(progress.Get("total").Int())
	}

	return update, nil
}

// serverMessage extracts the server-reported error message, falling back to
// the generic one. The raw body is never surfaced.
func serverMessage(body []byte, fallback string) string {
	if msg := gjson.GetBytes(body, "message"); msg.Exists() && msg.String() != "" {
		return msg.String()
	}
	return fallback
}
