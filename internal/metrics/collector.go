package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records service metrics. All record methods are safe to
// call on a nil receiver.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Task lifecycle metrics
	tasksTotal   *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	cancelsTotal *prometheus.CounterVec

	// Routing metrics
	decisionsTotal     *prometheus.CounterVec
	delegationsTotal   *prometheus.CounterVec
	delegationDuration *prometheus.HistogramVec

	// Oracle metrics
	oracleRequestsTotal   *prometheus.CounterVec
	oracleRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered against reg. A
// nil reg falls back to the default registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.tasksTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Total number of tasks by final state",
		},
		[]string{"agent_id", "state"},
	)

	c.taskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task processing duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"agent_id"},
	)

	c.cancelsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_cancels_total",
			Help:      "Total number of cancel requests by outcome",
		},
		[]string{"outcome"},
	)

	c.decisionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_decisions_total",
			Help:      "Total number of routing decisions by action",
		},
		[]string{"action"},
	)

	c.delegationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delegations_total",
			Help:      "Total number of delegations to sub-agents",
		},
		[]string{"agent_id", "status"},
	)

	c.delegationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delegation_duration_seconds",
			Help:      "Sub-agent delegation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent_id"},
	)

	c.oracleRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_requests_total",
			Help:      "Total number of decision oracle requests",
		},
		[]string{"model", "status"},
	)

	c.oracleRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oracle_request_duration_seconds",
			Help:      "Decision oracle request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one served HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTask records a task reaching a terminal state.
func (c *Collector) RecordTask(agentID, state string, duration time.Duration) {
	if c == nil {
		return
	}
	c.tasksTotal.WithLabelValues(agentID, state).Inc()
	c.taskDuration.WithLabelValues(agentID).Observe(duration.Seconds())
}

// RecordCancel records a cancel request outcome.
func (c *Collector) RecordCancel(outcome string) {
	if c == nil {
		return
	}
	c.cancelsTotal.WithLabelValues(outcome).Inc()
}

// RecordDecision records a routing decision.
func (c *Collector) RecordDecision(action string) {
	if c == nil {
		return
	}
	c.decisionsTotal.WithLabelValues(action).Inc()
}

// RecordDelegation records one delegation attempt.
func (c *Collector) RecordDelegation(agentID string, duration time.Duration, ok bool) {
	if c == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	c.delegationsTotal.WithLabelValues(agentID, status).Inc()
	c.delegationDuration.WithLabelValues(agentID).Observe(duration.Seconds())
}

// RecordOracleRequest records one decision oracle call.
func (c *Collector) RecordOracleRequest(model string, duration time.Duration, ok bool) {
	if c == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	c.oracleRequestsTotal.WithLabelValues(model, status).Inc()
	c.oracleRequestDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// statusClass maps an HTTP status code to its class label.
func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
