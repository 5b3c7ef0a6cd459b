package script

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"golang.org/x/time/rate"

	"github.com/Thinkofname/UniverCity/internal/assets"
	"github.com/Thinkofname/UniverCity/internal/infrastructure/monitoring"
	"github.com/Thinkofname/UniverCity/internal/logging"
	"github.com/Thinkofname/UniverCity/internal/script/capability"
	"github.com/Thinkofname/UniverCity/internal/script/fault"
	"github.com/Thinkofname/UniverCity/internal/script/immutable"
	"github.com/Thinkofname/UniverCity/internal/script/loader"
	"github.com/Thinkofname/UniverCity/internal/script/mission"
	"github.com/Thinkofname/UniverCity/internal/script/roam"
	"github.com/Thinkofname/UniverCity/internal/script/scope"
	"github.com/Thinkofname/UniverCity/internal/script/ui"
)

// Side selects which half of the application hosts the sandbox. The base
// capability set is shared; UI and audio primitives exist only client side,
// player control and command submission only server side.
type Side int

const (
	// SideClient hosts rendering, audio and UI event dispatch.
	SideClient Side = iota
	// SideServer hosts the authoritative simulation.
	SideServer
)

// Engine embeds the script runtime and exposes module scripts to the host
// behind the sandbox. All methods that execute script code must be called
// from a single goroutine; script execution is cooperative and never
// blocks, with free-roam yields as the only suspension points.
type Engine struct {
	side     Side
	rt       *goja.Runtime
	env      *scope.Env
	log      *logging.Logger
	metrics  *monitoring.Metrics
	store    assets.Store
	registry *capability.Registry
	loader   *loader.Manager
	roam     *roam.Scheduler
	missions *mission.Registry
	bridges  Bridges
	clear    func(moduleID string)

	watchMu      sync.Mutex
	watcher      *assets.Watcher
	watchLimiter *rate.Limiter
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics enables metrics collection.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithBridges installs host bridge implementations.
func WithBridges(b Bridges) Option {
	return func(e *Engine) { e.bridges = b }
}

// WithClearState sets the hook invoked at the start of every module reload,
// for collaborators holding module-tied caches. Defaults to a no-op.
func WithClearState(clear func(moduleID string)) Option {
	return func(e *Engine) { e.clear = clear }
}

// WithReloadPolling sets how often PollReload is allowed to hit the disk.
func WithReloadPolling(limiter *rate.Limiter) Option {
	return func(e *Engine) { e.watchLimiter = limiter }
}

// New creates an engine for one side of the application, serving scripts
// from store. The capability registry is populated with the base and
// side-specific primitives; boot-time extensions may add more through
// Registry() until Setup() freezes it.
func New(side Side, store assets.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		side:         side,
		store:        store,
		log:          logging.NewDefault(),
		missions:     mission.NewRegistry(),
		watchLimiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.rt = goja.New()
	e.env = scope.NewEnv(e.rt)
	e.registry = capability.New(e.rt)
	e.loader = loader.NewManager(e.env, e.registry, store, e.log, e.metrics, e.moduleSetup)
	e.roam = roam.NewScheduler(e.env, e.resolveScope, e.log, e.metrics)

	if err := e.installBase(); err != nil {
		return nil, fmt.Errorf("install base capabilities: %w", err)
	}
	var err error
	switch side {
	case SideClient:
		err = e.installClient()
	case SideServer:
		err = e.installServer()
	}
	if err != nil {
		return nil, fmt.Errorf("install side capabilities: %w", err)
	}
	return e, nil
}

// Registry exposes the capability registry for boot-time extension. After
// Setup() it is frozen and only readable.
func (e *Engine) Registry() *capability.Registry { return e.registry }

// Missions exposes the mission registry.
func (e *Engine) Missions() *mission.Registry { return e.missions }

// Setup freezes the capability registry. It must be called exactly once,
// after all boot-time extensions are installed and before any module loads.
func (e *Engine) Setup() error {
	if err := e.registry.Freeze(); err != nil {
		return err
	}
	e.log.Info("capability registry frozen")
	return nil
}

// LoadModule runs the module's init library inside a fresh scope. Failures
// are logged and reported as false rather than propagated, so one module
// cannot abort the loading of others.
func (e *Engine) LoadModule(id string) bool {
	log := e.log.WithModule(id)
	if !e.registry.Frozen() {
		log.Error("module load before setup")
		return false
	}

	mod := e.loader.GetModule(id)
	if _, err := e.loader.Require(mod, "init"); err != nil {
		log.Error("module init failed", errField(err))
		e.metrics.RecordModuleLoad(id, false)
		return false
	}
	e.metrics.RecordModuleLoad(id, true)
	log.Info("module loaded")
	return true
}

// ReloadModule re-executes the module's reloadable libraries, rolling back
// the ones that fail. Per-library failures are logged, never returned.
func (e *Engine) ReloadModule(id string) error {
	return e.loader.Reload(id, e.clear)
}

// InvokeModuleMethod requires sub inside module and calls method on it.
// Arguments are converted for the runtime; map arguments become immutable
// tables before the script can see them.
func (e *Engine) InvokeModuleMethod(module, sub, method string, args ...interface{}) (goja.Value, error) {
	entry, err := e.requireEntry(module, sub)
	if err != nil {
		return nil, err
	}

	tag := module + ":" + sub + "#" + method
	fnVal, ok := entry.Scope.Entry(method)
	if !ok {
		return nil, &fault.InvalidArgumentError{What: "no method " + tag}
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, &fault.InvalidArgumentError{What: tag + " is not callable"}
	}

	callArgs := make([]goja.Value, len(args))
	for i, a := range args {
		callArgs[i] = e.toScriptValue(a)
	}
	ret, err := fn(goja.Undefined(), callArgs...)
	if err != nil {
		e.metrics.RecordScriptError(module, "execute")
		return nil, loader.WrapExecution(tag, err)
	}
	return ret, nil
}

// InvokeFreeRoam drives one behavior execution through the free-roam
// protocol. A nil or terminal handle starts a new execution. The returned
// handle must be tracked by the caller per logical behavior owner.
func (e *Engine) InvokeFreeRoam(module, sub, method string, h *roam.Handle, ctx map[string]goja.Value) (*roam.Handle, error) {
	return e.roam.Invoke(module, sub, method, h, ctx)
}

// CompileUIAction compiles an inline event-handler snippet against a
// module's library, memoized per (library, snippet).
func (e *Engine) CompileUIAction(module, sub, src string) (goja.Callable, error) {
	entry, err := e.requireEntry(module, sub)
	if err != nil {
		return nil, err
	}
	tag := module + ":" + sub + "#action"
	return ui.CompileAction(e.env, entry, tag, src, e.metrics)
}

// BuildUI runs a script-provided builder body and returns the node tree.
func (e *Engine) BuildUI(body goja.Callable) (*ui.Node, error) {
	return ui.Build(e.env, body)
}

// PollReload checks the asset store for modified scripts and reloads the
// affected modules. Rate-limited; call it every tick and it touches the
// disk at most once per polling interval. Returns the modules reloaded.
func (e *Engine) PollReload() []string {
	watchable, ok := e.store.(assets.Watchable)
	if !ok {
		return nil
	}
	if !e.watchLimiter.Allow() {
		return nil
	}

	e.watchMu.Lock()
	if e.watcher == nil {
		e.watcher = assets.NewWatcher(watchable, e.log, e.watchLimiter)
	}
	w := e.watcher
	e.watchMu.Unlock()

	changed := w.Scan()
	for _, id := range changed {
		if err := e.ReloadModule(id); err != nil {
			e.log.WithModule(id).Warn("reload skipped", errField(err))
		}
	}
	return changed
}

// Watch polls the asset store until ctx is cancelled, reloading modules
// whose scripts change on disk. Reload callbacks run on the calling
// goroutine; embeddings that confine script execution to one goroutine
// should call PollReload from that goroutine instead.
func (e *Engine) Watch(ctx context.Context) error {
	watchable, ok := e.store.(assets.Watchable)
	if !ok {
		return nil
	}

	e.watchMu.Lock()
	if e.watcher == nil {
		e.watcher = assets.NewWatcher(watchable, e.log, e.watchLimiter)
	}
	w := e.watcher
	e.watchMu.Unlock()

	return w.Run(ctx, func(module string) {
		if err := e.ReloadModule(module); err != nil {
			e.log.WithModule(module).Warn("reload skipped", errField(err))
		}
	})
}

// ToScriptValue converts a host value for handing into scripts. Maps are
// wrapped write-protected.
func (e *Engine) ToScriptValue(v interface{}) goja.Value {
	return e.toScriptValue(v)
}

// NotifyCallback builds the notify_player context value for a free-roam
// invocation: a callback the script calls with a "script#method" reference
// and an encoded payload. defaultModule qualifies unnamespaced references.
func (e *Engine) NotifyCallback(player int, defaultModule string) goja.Value {
	return e.rt.ToValue(func(call goja.FunctionCall) goja.Value {
		if e.bridges.Notifier == nil {
			panic(e.rt.NewGoError(&fault.InvalidArgumentError{What: "player notification is not available"}))
		}
		desc := call.Argument(0).String()
		hash := strings.IndexByte(desc, '#')
		if hash < 0 {
			panic(e.rt.NewGoError(&fault.InvalidArgumentError{What: "invalid method description " + desc}))
		}
		script, method := desc[:hash], desc[hash+1:]
		if !strings.ContainsRune(script, ':') {
			script = defaultModule + ":" + script
		}

		payload, _ := call.Argument(1).Export().(*payloadHandle)
		var data []byte
		if payload != nil {
			data = payload.bytes()
		}
		if err := e.bridges.Notifier.Notify(player, script, method, data); err != nil {
			panic(e.rt.NewGoError(err))
		}
		return goja.Undefined()
	})
}

func (e *Engine) requireEntry(module, sub string) (*loader.Entry, error) {
	// No script runs against a registry still open for registration.
	if !e.registry.Frozen() {
		return nil, fault.ErrNotSetup
	}
	mod := e.loader.GetModule(module)
	return e.loader.Require(mod, sub)
}

func (e *Engine) resolveScope(module, sub string) (*scope.Scope, error) {
	entry, err := e.requireEntry(module, sub)
	if err != nil {
		return nil, err
	}
	return entry.Scope, nil
}

func (e *Engine) toScriptValue(v interface{}) goja.Value {
	switch val := v.(type) {
	case nil:
		return goja.Undefined()
	case goja.Value:
		return val
	case map[string]interface{}:
		return immutable.WrapValues(e.rt, val)
	default:
		return e.rt.ToValue(v)
	}
}
