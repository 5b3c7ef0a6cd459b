// Package capability holds the process-wide allow-list of primitives
// reachable by sandboxed code.
//
// The registry is populated once during boot by explicit enumeration and
// then frozen. Nothing is ever exposed by omission: a primitive a script can
// see is a primitive somebody registered on purpose. Wrapped host bridges go
// in as opaque call boundaries, never as raw host handles.
package capability

import (
	"sync"

	"github.com/dop251/goja"

	"github.com/Thinkofname/UniverCity/internal/script/fault"
	"github.com/Thinkofname/UniverCity/internal/script/immutable"
)

// Registry is the frozen allow-list at the root of every lookup chain.
type Registry struct {
	rt *goja.Runtime

	mu      sync.Mutex
	entries map[string]goja.Value
	frozen  bool
}

// New creates an empty, unfrozen registry bound to the runtime.
func New(rt *goja.Runtime) *Registry {
	return &Registry{
		rt:      rt,
		entries: map[string]goja.Value{},
	}
}

// Register installs a primitive under name. It fails with ErrImmutableWrite
// once the registry is frozen.
func (r *Registry) Register(name string, value goja.Value) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fault.ErrImmutableWrite
	}
	r.entries[name] = value
	return nil
}

// RegisterFunc installs a host function.
func (r *Registry) RegisterFunc(name string, fn func(goja.FunctionCall) goja.Value) error {
	return r.Register(name, r.rt.ToValue(fn))
}

// RegisterNamespace installs a named group of primitives as a single
// immutable table, so scripts cannot swap entries inside the group either.
func (r *Registry) RegisterNamespace(name string, entries map[string]goja.Value) error {
	return r.Register(name, immutable.Wrap(r.rt, entries))
}

// Freeze locks the registry. Exactly one call succeeds; later calls report
// ErrAlreadySetup so a double boot is caught loudly.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fault.ErrAlreadySetup
	}
	r.frozen = true
	return nil
}

// Frozen reports whether boot has completed.
func (r *Registry) Frozen() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frozen
}

// Lookup resolves a registered primitive. It is the terminal layer of every
// scope's lookup chain.
func (r *Registry) Lookup(name string) (goja.Value, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.entries[name]
	return v, ok
}

// Names returns the registered identifiers, for diagnostics.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for k := range r.entries {
		names = append(names, k)
	}
	return names
}
