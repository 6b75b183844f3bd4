package health

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/reductionist/errors"
)

func TestHealthyWithoutChecks(t *testing.T) {
	monitor := NewMonitor()
	rec := httptest.NewRecorder()
	monitor.Handler()(rec, httptest.NewRequest("GET", "/healthz", nil))

	require.Equal(t, 200, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
}

func TestDegradedCheck(t *testing.T) {
	monitor := NewMonitor()
	monitor.RegisterCheck("cache_writer", func() error {
		return errors.New(errors.KindInternal, "chunkcache", "Stop", "writer stopped")
	})
	monitor.RegisterCheck("store", func() error { return nil })

	rec := httptest.NewRecorder()
	monitor.Handler()(rec, httptest.NewRequest("GET", "/healthz", nil))

	require.Equal(t, 503, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "ok", status.Checks["store"])
	assert.Contains(t, status.Checks["cache_writer"], "writer stopped")
}
