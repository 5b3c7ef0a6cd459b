// Package loader builds per-module execution scopes and loads library
// scripts into them.
//
// One Manager owns every loaded module of an engine: the per-module scope,
// the per-module library cache that backs require, and hot reload. Scope
// creation is the only place new per-module mutable state is allocated and
// is serialized per manager; "insert cache entry, then execute" is likewise
// a single critical section so no two callers can race divergent scopes for
// the same path.
package loader

import (
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/Thinkofname/UniverCity/internal/assets"
	"github.com/Thinkofname/UniverCity/internal/infrastructure/monitoring"
	"github.com/Thinkofname/UniverCity/internal/logging"
	"github.com/Thinkofname/UniverCity/internal/script/scope"
)

// SetupFunc installs extra entries into a freshly created module scope
// before it is frozen. The engine uses these for its base and side-specific
// extension hooks.
type SetupFunc func(moduleID string, s *scope.Scope)

// Manager owns module scopes and their library caches.
type Manager struct {
	env     *scope.Env
	root    scope.Layer
	store   assets.Store
	log     *logging.Logger
	metrics *monitoring.Metrics
	setup   []SetupFunc

	mu      sync.Mutex
	modules map[string]*Module
}

// NewManager creates a manager whose module scopes fall back to root,
// normally the frozen capability registry.
func NewManager(env *scope.Env, root scope.Layer, store assets.Store, log *logging.Logger, metrics *monitoring.Metrics, setup ...SetupFunc) *Manager {
	return &Manager{
		env:     env,
		root:    root,
		store:   store,
		log:     log,
		metrics: metrics,
		setup:   setup,
		modules: map[string]*Module{},
	}
}

// Module is one loaded top-level unit of untrusted content: its scope plus
// the cache mapping normalized library path to loaded entry.
type Module struct {
	ID    string
	Scope *scope.Scope

	mu      sync.Mutex
	libs    map[string]*Entry
	loading []*Entry // require stack, for the no_reload opt-out
}

// Entry is one loaded library: its sub-scope, the reload opt-out flag and
// the compiled inline-handler cache that dies with the entry.
type Entry struct {
	Scope      *scope.Scope
	Reloadable bool

	actionsMu sync.Mutex
	actions   map[string]goja.Callable
}

// Action returns a cached compiled event handler for the snippet source.
func (e *Entry) Action(src string) (goja.Callable, bool) {
	e.actionsMu.Lock()
	defer e.actionsMu.Unlock()
	fn, ok := e.actions[src]
	return fn, ok
}

// StoreAction caches a compiled event handler. The cache key pairs the
// entry's identity with the raw snippet text; reloading the library swaps
// the entry itself, so invalidation is by construction.
func (e *Entry) StoreAction(src string, fn goja.Callable) {
	e.actionsMu.Lock()
	defer e.actionsMu.Unlock()
	if e.actions == nil {
		e.actions = map[string]goja.Callable{}
	}
	e.actions[src] = fn
}

// GetModule returns the module's cached state, creating scope and library
// cache on first use. Idempotent: later calls return the identical module.
func (m *Manager) GetModule(id string) *Module {
	m.mu.Lock()
	defer m.mu.Unlock()

	if mod, ok := m.modules[id]; ok {
		return mod
	}

	mod := &Module{
		ID:   id,
		libs: map[string]*Entry{},
	}
	mod.Scope = scope.New(m.env, m.root)

	log := m.log.WithModule(id)
	rt := m.env.Runtime()

	// Module-tagged logging sink.
	mod.Scope.SetEntry("print", rt.ToValue(func(call goja.FunctionCall) goja.Value {
		log.Script(flatten(call.Arguments))
		return goja.Undefined()
	}))

	// The require entry point, bound to this module.
	mod.Scope.SetEntry("require", rt.ToValue(func(call goja.FunctionCall) goja.Value {
		ref := call.Argument(0).String()
		entry, err := m.Require(mod, ref)
		if err != nil {
			panic(rt.NewGoError(err))
		}
		return entry.Scope.Object()
	}))

	// Opt-out flag for hot reload, usable only while the library itself is
	// executing.
	mod.Scope.SetEntry("no_reload", rt.ToValue(func(call goja.FunctionCall) goja.Value {
		mod.mu.Lock()
		defer mod.mu.Unlock()
		if n := len(mod.loading); n > 0 {
			mod.loading[n-1].Reloadable = false
		}
		return goja.Undefined()
	}))

	for _, setup := range m.setup {
		setup(id, mod.Scope)
	}

	mod.Scope.Freeze()
	m.modules[id] = mod
	return mod
}

// GetScope returns the module's frozen scope.
func (m *Manager) GetScope(id string) *scope.Scope {
	return m.GetModule(id).Scope
}

// Loaded reports whether the module's scope has been created.
func (m *Manager) Loaded(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.modules[id]
	return ok
}

func flatten(args []goja.Value) string {
	var b strings.Builder
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(arg.String())
	}
	return b.String()
}
