// Package metric wraps the Prometheus registry and owns the core service
// metrics exposed on /metrics.
package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/reductionist/errors"
)

// Registry manages metric registration and exposition.
type Registry struct {
	prom *prometheus.Registry
	Core *CoreMetrics

	mu         sync.Mutex
	registered map[string]prometheus.Collector
}

// NewRegistry creates a registry with the core service metrics and the Go
// runtime and process collectors registered.
func NewRegistry() *Registry {
	prom := prometheus.NewRegistry()
	registry := &Registry{
		prom:       prom,
		Core:       newCoreMetrics(),
		registered: make(map[string]prometheus.Collector),
	}
	registry.Core.register(prom)
	prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Prometheus returns the underlying Prometheus registry.
func (r *Registry) Prometheus() *prometheus.Registry {
	return r.prom
}

// Handler returns the /metrics HTTP handler.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{})
}

// Register registers an auxiliary collector under a unique name.
func (r *Registry) Register(name string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.registered[name]; exists {
		return errors.Newf(errors.KindInternal, "metric", "Register",
			"collector %q already registered", name)
	}
	if err := r.prom.Register(collector); err != nil {
		return errors.Wrap(err, errors.KindInternal, "metric", "Register", "prometheus registration")
	}
	r.registered[name] = collector
	return nil
}

// Unregister removes a previously registered auxiliary collector.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	collector, exists := r.registered[name]
	if !exists {
		return false
	}
	if !r.prom.Unregister(collector) {
		return false
	}
	delete(r.registered, name)
	return true
}
