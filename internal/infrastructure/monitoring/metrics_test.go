package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordModuleLoad("base", true)
	m.RecordModuleLoad("base", false)
	m.RecordRequire(false)
	m.RecordRequire(true)
	m.ObserveRequire(0.002)
	m.RecordReload("base")
	m.RecordRollback("base")
	m.RecordScriptError("base", "compile")
	m.RecordResume()
	m.RecordParked()
	m.RecordActionCompile(false)
	m.RecordActionCompile(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModuleLoads.WithLabelValues("base", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModuleLoads.WithLabelValues("base", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requires))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequireHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModuleReloads.WithLabelValues("base")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReloadRolled.WithLabelValues("base")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScriptErrors.WithLabelValues("base", "compile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoamResumes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoamSuspended))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionCompiles))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionHits))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	// Embeddings without a scrape target pass nil everywhere; every record
	// call must be a no-op.
	m.RecordModuleLoad("base", true)
	m.RecordRequire(false)
	m.ObserveRequire(0.5)
	m.RecordReload("base")
	m.RecordRollback("base")
	m.RecordScriptError("base", "execute")
	m.RecordResume()
	m.RecordParked()
	m.RecordActionCompile(true)
}
