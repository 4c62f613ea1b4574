package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := New(registry)

	if m.Valuations == nil || m.XIRRResults == nil || m.HTTPRequests == nil || m.ReconciliationEntries == nil {
		t.Fatalf("expected key metrics to be initialized: %+v", m)
	}

	m.ReconciliationRuns.Inc()
	m.XIRRResults.WithLabelValues("position", "ok").Inc()

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}

	if got := testutil.ToFloat64(m.ReconciliationRuns); got != 1 {
		t.Fatalf("expected 1 reconciliation run, got %v", got)
	}
}

func TestNewIsolatedRegistries(t *testing.T) {
	// two registries must not collide on metric names
	_ = New(prometheus.NewRegistry())
	_ = New(prometheus.NewRegistry())
}
