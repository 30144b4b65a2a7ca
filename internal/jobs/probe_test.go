package jobs_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/loomstudio/loomctl/internal/httpclient"
	"github.com/loomstudio/loomctl/internal/jobs"
	"github.com/loomstudio/loomctl/internal/session"
)

func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func newProbe(serverURL string) *jobs.HTTPProbe {
	return jobs.NewHTTPProbe(httpclient.NewDefaultClient(5*time.Second), serverURL)
}

func TestHTTPProbe_Submit(t *testing.T) {
	t.Parallel()

	t.Run("accepted job yields the identifier to poll", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/labeling/jobs", r.URL.Path)
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"job_id": "t1"}`))
		}))
		defer server.Close()

		outcome, err := newProbe(server.URL).Submit(context.Background(), jobs.Target{Dataset: "portraits"})

		require.NoError(t, err)
		assert.Equal(t, "t1", outcome.JobID)
		assert.False(t, outcome.Completed)
	})

	t.Run("request body carries the target and a request id", func(t *testing.T) {
		t.Parallel()

		bodyCh := make(chan []byte, 1)
		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			bodyCh <- body
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"job_id": "t1"}`))
		}))
		defer server.Close()

		_, err := newProbe(server.URL).Submit(context.Background(), jobs.Target{
			Dataset: "portraits",
			Labels:  []string{"cat", "dog"},
		})

		require.NoError(t, err)
		doc := gjson.ParseBytes(<-bodyCh)
		assert.Equal(t, "portraits", doc.Get("dataset").String())
		assert.Len(t, doc.Get("labels").Array(), 2)
		assert.NotEmpty(t, doc.Get("request_id").String())
	})

	t.Run("synchronous completion needs no polling", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		outcome, err := newProbe(server.URL).Submit(context.Background(), jobs.Target{Dataset: "portraits"})

		require.NoError(t, err)
		assert.True(t, outcome.Completed)
	})

	t.Run("accepted response without an identifier is terminal", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{}`))
		}))
		defer server.Close()

		_, err := newProbe(server.URL).Submit(context.Background(), jobs.Target{Dataset: "portraits"})

		require.Error(t, err)
		assert.True(t, session.IsTerminal(err))
		assert.Equal(t, "Labeling could not be started", session.TerminalMessage(err, ""))
	})

	t.Run("rejection surfaces the server message", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"message": "dataset not found"}`))
		}))
		defer server.Close()

		_, err := newProbe(server.URL).Submit(context.Background(), jobs.Target{Dataset: "missing"})

		require.Error(t, err)
		assert.True(t, session.IsTerminal(err))
		assert.Equal(t, "dataset not found", session.TerminalMessage(err, ""))
	})

	t.Run("rejection without a parseable message falls back to the generic one", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("boom"))
		}))
		defer server.Close()

		_, err := newProbe(server.URL).Submit(context.Background(), jobs.Target{Dataset: "portraits"})

		require.Error(t, err)
		assert.Equal(t, "Labeling could not be started", session.TerminalMessage(err, ""))
	})
}

func TestHTTPProbe_Poll(t *testing.T) {
	t.Parallel()

	t.Run("running job reports state and progress", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/labeling/jobs/t1", r.URL.Path)
			_, _ = w.Write([]byte(`{"state": "running", "progress": {"current": 2, "total": 5}}`))
		}))
		defer server.Close()

		update, err := newProbe(server.URL).Poll(context.Background(), "t1")

		require.NoError(t, err)
		assert.Equal(t, jobs.StateRunning, update.State)
		assert.Equal(t, 2, update.Current)
		assert.Equal(t, 5, update.Total)
	})

	t.Run("progress is optional", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"state": "queued", "message": "waiting for a worker"}`))
		}))
		defer server.Close()

		update, err := newProbe(server.URL).Poll(context.Background(), "t1")

		require.NoError(t, err)
		assert.Equal(t, jobs.StateQueued, update.State)
		assert.Zero(t, update.Total)
		assert.Equal(t, "waiting for a worker", update.Message)
	})

	t.Run("failed job carries the server message", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"state": "failed", "message": "model capacity exceeded"}`))
		}))
		defer server.Close()

		update, err := newProbe(server.URL).Poll(context.Background(), "t1")

		require.NoError(t, err)
		assert.Equal(t, jobs.StateFailed, update.State)
		assert.Equal(t, "model capacity exceeded", update.Message)
	})

	t.Run("malformed payload is transient, not terminal", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>maintenance</html>"))
		}))
		defer server.Close()

		_, err := newProbe(server.URL).Poll(context.Background(), "t1")

		require.Error(t, err)
		assert.False(t, session.IsTerminal(err))
	})

	t.Run("unrecognized state is transient", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"state": "paused"}`))
		}))
		defer server.Close()

		_, err := newProbe(server.URL).Poll(context.Background(), "t1")

		require.Error(t, err)
		assert.False(t, session.IsTerminal(err))
	})

	t.Run("missing job is terminal with the server message", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message": "job t1 not found"}`))
		}))
		defer server.Close()

		_, err := newProbe(server.URL).Poll(context.Background(), "t1")

		require.Error(t, err)
		assert.True(t, session.IsTerminal(err))
		assert.Equal(t, "job t1 not found", session.TerminalMessage(err, ""))
	})

	t.Run("server errors are retried within the tick budget", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"state": "succeeded"}`))
		}))
		defer server.Close()

		update, err := newProbe(server.URL).Poll(context.Background(), "t1")

		require.NoError(t, err)
		assert.Equal(t, jobs.StateSucceeded, update.State)
		assert.Equal(t, int32(2), calls.Load())
	})
}
