package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification wizard.
type Metrics struct {
	SessionsCreated    prometheus.Counter
	SessionsActive     prometheus.Gauge
	AdvancesRejected   *prometheus.CounterVec
	UploadsTotal       *prometheus.CounterVec
	SubmissionDuration *prometheus.HistogramVec
}

// New registers the wizard metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "deeptrack_wizard_sessions_created_total",
			Help: "Total number of verification wizard sessions started",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "deeptrack_wizard_sessions_active",
			Help: "Verification wizard sessions currently held in memory",
		}),
		AdvancesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deeptrack_wizard_advances_rejected_total",
			Help: "Advance attempts rejected by a step precondition",
		}, []string{"step"}),
		UploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deeptrack_wizard_uploads_total",
			Help: "Image uploads by slot and outcome",
		}, []string{"slot", "outcome"}),
		SubmissionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deeptrack_wizard_submission_duration_seconds",
			Help:    "Duration of verification submissions by outcome",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 6, 8, 10, 15},
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementSessionsCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) DecrementSessionsActive() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

func (m *Metrics) IncrementAdvanceRejected(step string) {
	if m == nil {
		return
	}
	m.AdvancesRejected.WithLabelValues(step).Inc()
}

// IncrementUpload records an upload outcome: uploaded, failed or cancelled.
func (m *Metrics) IncrementUpload(slot, outcome string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(slot, outcome).Inc()
}

// ObserveSubmission records a verification call. Call with time.Now() at the
// start of the call.
func (m *Metrics) ObserveSubmission(outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.SubmissionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
