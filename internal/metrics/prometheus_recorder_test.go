package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("build", 90*time.Second)
	pr.ObserveBuildDuration(2 * time.Minute)
	pr.IncStageResult("build", ResultSuccess)
	pr.IncStageResult("package", ResultFatal)
	pr.IncBuildOutcome("succeeded")
	pr.IncArtifacts(2)
	pr.IncArtifacts(0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	byName := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if c := m.GetCounter(); c != nil {
				byName[mf.GetName()] += c.GetValue()
			}
		}
	}
	assert.InDelta(t, 2, byName["xcodebuilder_stage_results_total"], 0)
	assert.InDelta(t, 1, byName["xcodebuilder_build_outcomes_total"], 0)
	assert.InDelta(t, 2, byName["xcodebuilder_artifacts_total"], 0)
	assert.Same(t, reg, pr.Registry())
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.ObserveStageDuration("x", time.Second)
		pr.ObserveBuildDuration(time.Second)
		pr.IncStageResult("x", ResultSuccess)
		pr.IncBuildOutcome("failed")
		pr.IncArtifacts(1)
	})
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncBuildOutcome("failed")

	path := filepath.Join(t.TempDir(), "xcodebuilder.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `xcodebuilder_build_outcomes_total{outcome="failed"} 1`)

	require.Error(t, pr.WriteTextfile(filepath.Join(t.TempDir(), "missing", "dir", "x.prom")))
}
