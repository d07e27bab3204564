package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds process-wide Prometheus metrics for outbound backend traffic.
type Metrics struct {
	BackendRequestDuration *prometheus.HistogramVec
	BackendBreakerOpen     *prometheus.GaugeVec
}

// New registers metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BackendRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deeptrack_backend_request_duration_seconds",
			Help:    "Latency of requests to the DeepTrack backend by operation and status",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "status"}),
		BackendBreakerOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deeptrack_backend_breaker_open",
			Help: "1 while the backend circuit breaker is open",
		}, []string{"breaker"}),
	}
}

// ObserveBackendRequest records one backend call. status 0 means no response.
func (m *Metrics) ObserveBackendRequest(operation string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.BackendRequestDuration.WithLabelValues(operation, statusLabel(status)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetBreakerOpen(name string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.BackendBreakerOpen.WithLabelValues(name).Set(v)
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
