package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLifecycleCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLifecycle(reg)

	m.IncMatch("assigned")
	m.IncMatch("assigned")
	m.IncMatch("")
	m.IncUniqueViolation()
	m.IncTransition("ASSIGNED", "CANCELLED")
	m.IncPayment("completed")
	m.ObserveGateway("create_order", "ok", 120*time.Millisecond)

	if got := testutil.ToFloat64(m.matches.WithLabelValues("assigned")); got != 2 {
		t.Fatalf("expected 2 assigned matches, got %f", got)
	}
	if got := testutil.ToFloat64(m.matches.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty outcome normalized to unknown, got %f", got)
	}
	if got := testutil.ToFloat64(m.retries); got != 1 {
		t.Fatalf("expected 1 unique violation, got %f", got)
	}
	if got := testutil.ToFloat64(m.transitions.WithLabelValues("ASSIGNED", "CANCELLED")); got != 1 {
		t.Fatalf("expected 1 transition, got %f", got)
	}
	if n := testutil.CollectAndCount(m.gateway); n != 1 {
		t.Fatalf("expected one gateway series, got %d", n)
	}
}

func TestJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)
	job := "request-expiry"

	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncFailure(job)
	m.AddAffected(job, 3)
	m.AddAffected(job, 0)

	if got := testutil.ToFloat64(m.success.WithLabelValues(job)); got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}
	if got := testutil.ToFloat64(m.failure.WithLabelValues(job)); got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got := testutil.ToFloat64(m.affected.WithLabelValues(job)); got != 3 {
		t.Fatalf("expected affected=3, got %f", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var lc *Lifecycle
	lc.IncMatch("assigned")
	lc.ObserveGateway("fetch", "ok", time.Second)

	jm := NewJobMetrics(nil)
	jm.IncSuccess("x")
	jm.ObserveDuration("x", time.Second)
}
