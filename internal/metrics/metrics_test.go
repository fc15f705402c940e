package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveProvider("groq", "error", 20*time.Millisecond)
	m.ObserveProvider("groq", "error", 30*time.Millisecond)
	m.ObserveProvider("vertex", "success", time.Second)
	m.IncrementCache("hit")
	m.IncrementReview("partial")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("groq", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues("vertex", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReviewRuns.WithLabelValues("partial")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveProvider("groq", "success", time.Millisecond)
		m.IncrementCache("miss")
		m.IncrementOCRPage("failed")
		m.IncrementAgent("technical", "success")
		m.IncrementReview("completed")
	})
}
