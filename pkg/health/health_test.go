package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, h http.Handler) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func TestReadyHandler_GateClosedByDefault(t *testing.T) {
	h := New()
	assert.Equal(t, http.StatusServiceUnavailable, probe(t, h.ReadyHandler()).Code)

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, probe(t, h.ReadyHandler()).Code)

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, probe(t, h.ReadyHandler()).Code)
}

func TestReadyHandler_FailingCheck(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})

	rec := probe(t, h.ReadyHandler())
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestLiveHandler(t *testing.T) {
	h := New()
	// Liveness is independent of the readiness gate.
	rec := probe(t, h.LiveHandler())
	require.Equal(t, http.StatusOK, rec.Code)

	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(0))
	assert.Equal(t, http.StatusServiceUnavailable, probe(t, h.LiveHandler()).Code)
}

func TestCheckTimeout(t *testing.T) {
	h := New()
	h.SetReady(true)
	h.AddReadinessCheck("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	assert.Equal(t, http.StatusServiceUnavailable, probe(t, h.ReadyHandler()).Code)
}
