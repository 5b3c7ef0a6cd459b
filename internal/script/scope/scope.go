// Package scope implements the chained lookup environment given to every
// module and library script.
//
// A scope is an explicit lookup chain: dynamic overlays (used by the UI
// builder), then the scope's own entries, then its fallback layer. A module
// scope falls back to the capability registry; a library sub-scope falls
// back to its owning module scope. Scripts are compiled so that every free
// identifier resolves through this chain and nothing else, which is what
// keeps the sandbox closed: the chain bottoms out at the frozen allow-list.
package scope

import (
	"github.com/dop251/goja"

	"github.com/Thinkofname/UniverCity/internal/script/fault"
)

// Layer is one step of a lookup chain.
type Layer interface {
	Lookup(name string) (goja.Value, bool)
}

// Env carries per-runtime lookup state shared by all scopes of one engine:
// the runtime handle and the dynamic overlay stack. Single-goroutine, like
// everything that touches the runtime.
type Env struct {
	rt       *goja.Runtime
	overlays []Layer
}

// NewEnv creates the shared environment for one runtime.
func NewEnv(rt *goja.Runtime) *Env {
	return &Env{rt: rt}
}

// Runtime returns the underlying VM handle.
func (e *Env) Runtime() *goja.Runtime { return e.rt }

// PushOverlay installs a layer consulted before every scope until popped.
func (e *Env) PushOverlay(l Layer) {
	e.overlays = append(e.overlays, l)
}

// PopOverlay removes the most recent overlay.
func (e *Env) PopOverlay() {
	if n := len(e.overlays); n > 0 {
		e.overlays = e.overlays[:n-1]
	}
}

func (e *Env) lookupOverlay(name string) (goja.Value, bool) {
	for i := len(e.overlays) - 1; i >= 0; i-- {
		if v, ok := e.overlays[i].Lookup(name); ok {
			return v, true
		}
	}
	return nil, false
}

// Scope is one module's or library's identifier environment. It implements
// goja.DynamicObject; Has always answers true so scripts can never fall
// through to the VM's real global object.
type Scope struct {
	env      *Env
	entries  map[string]goja.Value
	fallback Layer
	frozen   bool
	obj      *goja.Object
}

// New allocates an unfrozen scope with the given fallback layer.
func New(env *Env, fallback Layer) *Scope {
	s := &Scope{
		env:      env,
		entries:  map[string]goja.Value{},
		fallback: fallback,
	}
	s.obj = env.rt.NewDynamicObject(s)
	return s
}

// Object returns the script-visible binding environment for this scope.
func (s *Scope) Object() *goja.Object { return s.obj }

// Freeze rejects all further writes, script-side and host-side.
func (s *Scope) Freeze() { s.frozen = true }

// Frozen reports whether the scope has been sealed.
func (s *Scope) Frozen() bool { return s.frozen }

// SetEntry installs a host-provided entry. Fails once frozen.
func (s *Scope) SetEntry(name string, v goja.Value) error {
	if s.frozen {
		return fault.ErrImmutableWrite
	}
	s.entries[name] = v
	return nil
}

// Entry reads a directly-owned entry without consulting the chain.
func (s *Scope) Entry(name string) (goja.Value, bool) {
	v, ok := s.entries[name]
	return v, ok
}

// Lookup resolves a name through own entries then the fallback chain. It
// does not consult overlays; those apply only to live script resolution.
func (s *Scope) Lookup(name string) (goja.Value, bool) {
	if v, ok := s.entries[name]; ok {
		return v, true
	}
	if s.fallback != nil {
		return s.fallback.Lookup(name)
	}
	return nil, false
}

// Get implements goja.DynamicObject.
func (s *Scope) Get(key string) goja.Value {
	if v, ok := s.env.lookupOverlay(key); ok {
		return v
	}
	if v, ok := s.Lookup(key); ok {
		return v
	}
	return goja.Undefined()
}

// Set implements goja.DynamicObject. Library scripts populate their public
// surface through here while executing; once frozen the scope behaves like
// any other immutable table.
func (s *Scope) Set(key string, val goja.Value) bool {
	if s.frozen {
		panic(s.env.rt.NewGoError(fault.ErrImmutableWrite))
	}
	s.entries[key] = val
	return true
}

// Has implements goja.DynamicObject. Always true: every identifier belongs
// to the chain, even if it currently resolves to undefined.
func (s *Scope) Has(key string) bool { return true }

// Delete implements goja.DynamicObject.
func (s *Scope) Delete(key string) bool {
	if s.frozen {
		panic(s.env.rt.NewGoError(fault.ErrImmutableWrite))
	}
	delete(s.entries, key)
	return true
}

// Keys implements goja.DynamicObject. Only directly-owned entries are
// enumerable; chain parents stay hidden from iteration.
func (s *Scope) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}
