package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncrementSessionsCreated()
	m.IncrementSessionsCreated()
	m.DecrementSessionsActive()
	m.IncrementUpload("face", "failed")
	m.IncrementAdvanceRejected("upload")
	m.ObserveSubmission("timeout", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("face", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AdvancesRejected.WithLabelValues("upload")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SubmissionDuration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementSessionsCreated()
		m.IncrementUpload("face", "uploaded")
		m.ObserveSubmission("success", time.Now())
	})
}
