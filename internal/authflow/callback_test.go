package authflow

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionListener_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("close before start is safe", func(t *testing.T) {
		t.Parallel()

		l := NewCompletionListener("state", func() {}, slog.Default())
		assert.NoError(t, l.Close())
	})

	t.Run("serves the completion page on a valid hit", func(t *testing.T) {
		t.Parallel()

		var hits atomic.Int32
		l := NewCompletionListener("nonce-1", func() { hits.Add(1) }, slog.Default())
		require.NoError(t, l.Start())
		defer l.Close()

		assert.True(t, strings.HasPrefix(l.URL(), "http://127.0.0.1:"))

		resp, err := http.Get(l.URL() + "?state=nonce-1")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
		assert.Equal(t, int32(1), hits.Load())
	})

	t.Run("close stops serving", func(t *testing.T) {
		t.Parallel()

		l := NewCompletionListener("nonce-1", func() {}, slog.Default())
		require.NoError(t, l.Start())
		url := l.URL()
		require.NoError(t, l.Close())

		_, err := http.Get(url + "?state=nonce-1")
		assert.Error(t, err)
	})
}
