package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registryMu sync.Mutex
	registry   *prometheus.Registry
)

// InitRegistry enables metrics collection. Constructors in the
// prometheus subpackage return nil implementations until this is
// called, which disables instrumentation with zero overhead.
func InitRegistry() {
	registryMu.Lock()
	defer registryMu.Unlock()

	if registry != nil {
		return
	}
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether InitRegistry was called.
func IsEnabled() bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry != nil
}

// GetRegistry returns the process registry, or nil when disabled.
func GetRegistry() *prometheus.Registry {
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry
}
