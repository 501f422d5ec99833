// ABOUTME: Prometheus metrics for ingestion, storage, rendering, and the fitness client.
// ABOUTME: One Manager per process, registered against an injectable registry.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterReceived     *prometheus.CounterVec
	CounterInserted     *prometheus.CounterVec
	CounterSkipped      *prometheus.CounterVec
	CounterRenders      prometheus.Counter
	CounterFitCalls     *prometheus.CounterVec
	CounterRequests     *prometheus.CounterVec
	CounterRequestPanic prometheus.Counter

	// histograms
	HistRequestDuration prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("healthdash", "test", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("healthdash", "test", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	return &Manager{
		CounterReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "observations_received",
			Help:      "Observations produced by ingestion",
		}, []string{"source"}),
		CounterInserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "observations_inserted",
			Help:      "Observations written by upsert",
		}, []string{"source"}),
		CounterSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "observations_skipped",
			Help:      "Observations skipped because they already existed",
		}, []string{"source"}),
		CounterRenders: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dashboard_renders",
			Help:      "The total number of dashboards built",
		}),
		CounterFitCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fit_api_calls",
			Help:      "Calls to the fitness aggregate API by status code",
		}, []string{"status"}),
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request",
			Help:      "The total number of incoming requests",
		}, []string{"method", "status"}),
		CounterRequestPanic: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handle_request_panic",
			Help:      "The total number of serve request panics",
		}),
		HistRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			Name:      "request_duration_seconds",
			Help:      "Total duration of requests in seconds",
		}),
	}
}

// ObserveUpsert records one ingestion outcome. A nil manager is a no-op.
func (m *Manager) ObserveUpsert(source string, received, inserted, skipped int) {
	if m == nil {
		return
	}
	m.CounterReceived.WithLabelValues(source).Add(float64(received))
	m.CounterInserted.WithLabelValues(source).Add(float64(inserted))
	m.CounterSkipped.WithLabelValues(source).Add(float64(skipped))
}

// ObserveRender counts a dashboard build. A nil manager is a no-op.
func (m *Manager) ObserveRender() {
	if m == nil {
		return
	}
	m.CounterRenders.Inc()
}

// ObserveFitCall counts a fitness API response by status. A nil manager is a no-op.
func (m *Manager) ObserveFitCall(status string) {
	if m == nil {
		return
	}
	m.CounterFitCalls.WithLabelValues(status).Inc()
}
