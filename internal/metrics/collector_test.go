package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordHTTPRequest("GET", "/healthz", 200, time.Millisecond)
	c.RecordTask("billing", "completed", time.Second)
	c.RecordCancel("cancelled")
	c.RecordDecision("delegate")
	c.RecordDelegation("billing", time.Second, true)
	c.RecordOracleRequest("gpt-4o-mini", time.Second, false)
}

func TestCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("dirigent", reg, nil)

	c.RecordHTTPRequest("POST", "/a2a/tasks/send", 200, 10*time.Millisecond)
	c.RecordHTTPRequest("POST", "/a2a/tasks/send", 429, time.Millisecond)
	c.RecordTask("billing", "completed", time.Second)
	c.RecordCancel("not_found")
	c.RecordDecision("delegate")
	c.RecordDelegation("billing", 200*time.Millisecond, true)
	c.RecordDelegation("billing", time.Second, false)
	c.RecordOracleRequest("gpt-4o-mini", 300*time.Millisecond, true)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.httpRequestsTotal.WithLabelValues("POST", "/a2a/tasks/send", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.httpRequestsTotal.WithLabelValues("POST", "/a2a/tasks/send", "4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.tasksTotal.WithLabelValues("billing", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.cancelsTotal.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.decisionsTotal.WithLabelValues("delegate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.delegationsTotal.WithLabelValues("billing", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.delegationsTotal.WithLabelValues("billing", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.oracleRequestsTotal.WithLabelValues("gpt-4o-mini", "ok")))

	// Separate registries keep collectors independent, so a second
	// collector must not panic on duplicate registration.
	require.NotPanics(t, func() {
		NewCollector("dirigent", prometheus.NewRegistry(), nil)
	})
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
		{100, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusClass(tt.code), "code %d", tt.code)
	}
}
