package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for one script engine. A nil
// *Metrics is valid and records nothing, so embeddings that do not scrape
// pay no cost.
type Metrics struct {
	// Module lifecycle
	ModuleLoads   *prometheus.CounterVec
	ModuleReloads *prometheus.CounterVec
	ReloadRolled  *prometheus.CounterVec

	// Library loading
	Requires        prometheus.Counter
	RequireHits     prometheus.Counter
	RequireDuration prometheus.Histogram

	// Script failures by kind (compile, execute, not_found)
	ScriptErrors *prometheus.CounterVec

	// Free-roam scheduling
	RoamResumes   prometheus.Counter
	RoamSuspended prometheus.Counter

	// Inline event handlers
	ActionCompiles prometheus.Counter
	ActionHits     prometheus.Counter
}

// NewMetrics registers the engine's instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ModuleLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "script_module_loads_total",
				Help: "Module init runs by outcome",
			},
			[]string{"module", "status"},
		),
		ModuleReloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "script_module_reloads_total",
				Help: "Hot reload passes per module",
			},
			[]string{"module"},
		),
		ReloadRolled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "script_reload_rollbacks_total",
				Help: "Libraries restored after a failed reload",
			},
			[]string{"module"},
		),
		Requires: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "script_requires_total",
				Help: "require calls, cached or not",
			},
		),
		RequireHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "script_require_cache_hits_total",
				Help: "require calls answered from the library cache",
			},
		),
		RequireDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "script_require_duration_seconds",
				Help:    "Time spent fetching, compiling and running a library",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
		),
		ScriptErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "script_errors_total",
				Help: "Script failures by module and kind",
			},
			[]string{"module", "kind"},
		),
		RoamResumes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "script_roam_resumes_total",
				Help: "Free-roam coroutine resume steps",
			},
		),
		RoamSuspended: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "script_roam_parked_total",
				Help: "Free-roam invocations parked on an unbound key",
			},
		),
		ActionCompiles: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "script_action_compiles_total",
				Help: "Inline event handlers compiled",
			},
		),
		ActionHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "script_action_cache_hits_total",
				Help: "Inline event handlers served from cache",
			},
		),
	}
}

// RecordModuleLoad counts one init run.
func (m *Metrics) RecordModuleLoad(module string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.ModuleLoads.WithLabelValues(module, status).Inc()
}

// RecordRequire counts one require call.
func (m *Metrics) RecordRequire(cacheHit bool) {
	if m == nil {
		return
	}
	m.Requires.Inc()
	if cacheHit {
		m.RequireHits.Inc()
	}
}

// ObserveRequire records the duration of an uncached require.
func (m *Metrics) ObserveRequire(seconds float64) {
	if m == nil {
		return
	}
	m.RequireDuration.Observe(seconds)
}

// RecordReload counts one reload pass for a module.
func (m *Metrics) RecordReload(module string) {
	if m == nil {
		return
	}
	m.ModuleReloads.WithLabelValues(module).Inc()
}

// RecordRollback counts one library restored during reload.
func (m *Metrics) RecordRollback(module string) {
	if m == nil {
		return
	}
	m.ReloadRolled.WithLabelValues(module).Inc()
}

// RecordScriptError counts one script failure.
func (m *Metrics) RecordScriptError(module, kind string) {
	if m == nil {
		return
	}
	m.ScriptErrors.WithLabelValues(module, kind).Inc()
}

// RecordResume counts one free-roam resume step.
func (m *Metrics) RecordResume() {
	if m == nil {
		return
	}
	m.RoamResumes.Inc()
}

// RecordParked counts a free-roam behavior left suspended on an unknown key.
func (m *Metrics) RecordParked() {
	if m == nil {
		return
	}
	m.RoamSuspended.Inc()
}

// RecordActionCompile counts one event-handler compilation or cache hit.
func (m *Metrics) RecordActionCompile(cacheHit bool) {
	if m == nil {
		return
	}
	if cacheHit {
		m.ActionHits.Inc()
	} else {
		m.ActionCompiles.Inc()
	}
}
