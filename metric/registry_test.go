package metric

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreMetricsRegistered(t *testing.T) {
	registry := NewRegistry()
	registry.Core.RequestsTotal.WithLabelValues("sum", "200").Inc()
	registry.Core.CacheHits.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(registry.Core.CacheHits))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	registry.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "reductionist_requests_total")
	assert.Contains(t, body, "reductionist_cache_hits_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestRegisterDuplicate(t *testing.T) {
	registry := NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "aux_total", Help: "aux"})
	require.NoError(t, registry.Register("aux", counter))

	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "aux2_total", Help: "aux2"})
	err := registry.Register("aux", other)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "already registered"))

	assert.True(t, registry.Unregister("aux"))
	assert.False(t, registry.Unregister("aux"))
}
