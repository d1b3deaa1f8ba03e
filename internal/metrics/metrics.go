// Package metrics provides the Prometheus metrics exposed on /metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Detection request outcomes used as the status label.
const (
	StatusOK          = "ok"
	StatusInvalid     = "invalid"
	StatusUnavailable = "unavailable"
	StatusFailed      = "failed"
)

// DetectionMetrics contains the metrics of the detection pipeline. All
// methods are safe on a nil receiver.
type DetectionMetrics struct {
	RequestsTotal       *prometheus.CounterVec
	InferenceDuration   *prometheus.HistogramVec
	ObjectsDetected     *prometheus.CounterVec
	PersistenceFailures prometheus.Counter
	ModelLoaded         prometheus.Gauge
	HubClients          prometheus.Gauge
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// NewDetectionMetrics creates the pipeline metrics and registers them.
func NewDetectionMetrics(registry prometheus.Registerer) (*DetectionMetrics, error) {
	m := &DetectionMetrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagedetect_detect_requests_total",
				Help: "Total number of detection requests by outcome.",
			},
			[]string{"status"},
		),
		InferenceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imagedetect_inference_duration_seconds",
				Help:    "Time taken by one model prediction.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
			},
			[]string{"model"},
		),
		ObjectsDetected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagedetect_objects_detected_total",
				Help: "Objects kept after confidence filtering, by class.",
			},
			[]string{"class"},
		),
		PersistenceFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "imagedetect_persistence_failures_total",
				Help: "Detection records that could not be saved.",
			},
		),
		ModelLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "imagedetect_model_loaded",
				Help: "1 when a detection model is loaded, 0 otherwise.",
			},
		),
		HubClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "imagedetect_ws_clients",
				Help: "Connected websocket clients.",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.RequestsTotal, m.InferenceDuration, m.ObjectsDetected,
		m.PersistenceFailures, m.ModelLoaded, m.HubClients,
	} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register detection metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveRequest counts one detection request with the given outcome.
func (m *DetectionMetrics) ObserveRequest(status string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(status).Inc()
}

// ObserveInference records the duration of one prediction.
func (m *DetectionMetrics) ObserveInference(model string, d time.Duration) {
	if m == nil {
		return
	}
	m.InferenceDuration.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveObjects counts kept objects per class.
func (m *DetectionMetrics) ObserveObjects(classes []string) {
	if m == nil {
		return
	}
	for _, c := range classes {
		m.ObjectsDetected.WithLabelValues(c).Inc()
	}
}

// ObservePersistenceFailure counts one swallowed save failure.
func (m *DetectionMetrics) ObservePersistenceFailure() {
	if m == nil {
		return
	}
	m.PersistenceFailures.Inc()
}

// SetModelLoaded reports whether a model is available.
func (m *DetectionMetrics) SetModelLoaded(loaded bool) {
	if m == nil {
		return
	}
	if loaded {
		m.ModelLoaded.Set(1)
	} else {
		m.ModelLoaded.Set(0)
	}
}

// SetHubClients reports the number of live websocket clients.
func (m *DetectionMetrics) SetHubClients(n int) {
	if m == nil {
		return
	}
	m.HubClients.Set(float64(n))
}
