package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistryRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.RunsTotal.WithLabelValues("success").Inc()
	r.DispatchInFlight.WithLabelValues("windowed").Set(3)

	if got := testutil.ToFloat64(r.RunsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("runs_total = %v, want 1", got)
	}

	expected := `
# HELP pipex_dispatch_in_flight Items currently executing
# TYPE pipex_dispatch_in_flight gauge
pipex_dispatch_in_flight{mode="windowed"} 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "pipex_dispatch_in_flight"); err != nil {
		t.Error(err)
	}
}

func TestNamespaceAndLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistryWithConfig(Config{
		Enabled:   true,
		Registry:  reg,
		Namespace: "custom",
		Labels:    prometheus.Labels{"env": "test"},
	})
	r.JobSkipped.WithLabelValues("nightly", "etl").Inc()

	expected := `
# HELP custom_scheduler_job_skipped_total Scheduled runs skipped because the previous run was still active
# TYPE custom_scheduler_job_skipped_total counter
custom_scheduler_job_skipped_total{env="test",job="etl",scheduler_name="nightly"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "custom_scheduler_job_skipped_total"); err != nil {
		t.Error(err)
	}
}

func TestFromConfig(t *testing.T) {
	if FromConfig(Config{}) != nil {
		t.Error("disabled config should yield nil registry")
	}
	if FromConfig(DefaultConfig()) != DefaultRegistry {
		t.Error("default config should reuse DefaultRegistry")
	}

	custom := FromConfig(Config{Enabled: true, Registry: prometheus.NewRegistry()})
	if custom == nil || custom == DefaultRegistry {
		t.Error("custom registerer should yield a fresh registry")
	}
}
