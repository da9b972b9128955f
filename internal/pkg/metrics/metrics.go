package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "buddydesk"

// Lifecycle records matching, state transitions and payment gate outcomes.
// A nil *Lifecycle or one built with a nil registerer is a no-op.
type Lifecycle struct {
	matches     *prometheus.CounterVec
	retries     prometheus.Counter
	transitions *prometheus.CounterVec
	payments    *prometheus.CounterVec
	gateway     *prometheus.HistogramVec
}

func NewLifecycle(reg prometheus.Registerer) *Lifecycle {
	if reg == nil {
		return &Lifecycle{}
	}
	matches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "match_outcomes_total",
		Help:      "Buddy matching outcomes.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "match_unique_violations_total",
		Help:      "Insert attempts that lost the double-booking race.",
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "request_transitions_total",
		Help:      "Applied buddy request status transitions.",
	}, []string{"from", "to"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_events_total",
		Help:      "Payment gate events.",
	}, []string{"event"})
	gateway := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "gateway_call_duration_seconds",
		Help:      "Payment gateway call latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "result"})
	reg.MustRegister(matches, retries, transitions, payments, gateway)
	return &Lifecycle{
		matches:     matches,
		retries:     retries,
		transitions: transitions,
		payments:    payments,
		gateway:     gateway,
	}
}

func (m *Lifecycle) IncMatch(outcome string) {
	if m == nil || m.matches == nil {
		return
	}
	m.matches.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Lifecycle) IncUniqueViolation() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

func (m *Lifecycle) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *Lifecycle) IncPayment(event string) {
	if m == nil || m.payments == nil {
		return
	}
	m.payments.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *Lifecycle) ObserveGateway(op, result string, d time.Duration) {
	if m == nil || m.gateway == nil {
		return
	}
	m.gateway.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Observe(d.Seconds())
}

// JobMetrics records metadata for scheduled jobs.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	affected *prometheus.CounterVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Duration of scheduled jobs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_success_total",
		Help:      "Successful job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_failure_total",
		Help:      "Failed job executions.",
	}, []string{"job"})
	affected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_affected_rows_total",
		Help:      "Rows changed by scheduled jobs.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure, affected)
	return &JobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		affected: affected,
	}
}

func (c *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

func (c *JobMetrics) IncSuccess(job string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(job)).Inc()
}

func (c *JobMetrics) IncFailure(job string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

func (c *JobMetrics) AddAffected(job string, n int) {
	if c == nil || c.affected == nil || n <= 0 {
		return
	}
	c.affected.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
