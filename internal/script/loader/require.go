package loader

import (
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/Thinkofname/UniverCity/internal/script/fault"
	"github.com/Thinkofname/UniverCity/internal/script/scope"
)

// Require resolves a library reference for mod and returns its loaded
// entry. ref is either "name" or "othermodule:name"; the namespaced form
// delegates to the owning module and returns that module's own entry.
//
// Require memoizes: a given normalized path executes its backing script at
// most once per module, and re-entrant requires observe the cache entry
// that is registered before execution begins, which is what makes mutually
// requiring libraries resolvable.
func (m *Manager) Require(mod *Module, ref string) (*Entry, error) {
	if idx := strings.IndexByte(ref, ':'); idx >= 0 {
		other := m.GetModule(ref[:idx])
		return m.Require(other, ref[idx+1:])
	}

	path := Normalize(ref)

	mod.mu.Lock()
	if entry, ok := mod.libs[path]; ok {
		mod.mu.Unlock()
		m.metrics.RecordRequire(true)
		return entry, nil
	}
	mod.mu.Unlock()
	m.metrics.RecordRequire(false)

	start := time.Now()
	entry, err := m.load(mod, path)
	if err != nil {
		return nil, err
	}
	m.metrics.ObserveRequire(time.Since(start).Seconds())
	return entry, nil
}

// load fetches, compiles and executes the library at path, registering the
// cache entry before execution.
func (m *Manager) load(mod *Module, path string) (*Entry, error) {
	src, err := m.store.Fetch(mod.ID, path)
	if err != nil {
		if fault.IsScriptNotFound(err) {
			m.metrics.RecordScriptError(mod.ID, "not_found")
		}
		return nil, err
	}

	tag := mod.ID + ":" + path
	prog, err := CompileScript(tag, src)
	if err != nil {
		m.metrics.RecordScriptError(mod.ID, "compile")
		return nil, err
	}

	child := scope.New(m.env, mod.Scope)
	entry := &Entry{Scope: child, Reloadable: true}

	// Registered before execution so self- and mutual requires terminate.
	mod.mu.Lock()
	mod.libs[path] = entry
	mod.loading = append(mod.loading, entry)
	mod.mu.Unlock()

	execErr := m.execute(tag, prog, child)

	mod.mu.Lock()
	mod.loading = mod.loading[:len(mod.loading)-1]
	mod.mu.Unlock()

	// Frozen either way; a partially populated scope must not stay open to
	// later writes from unrelated scripts.
	child.Freeze()

	if execErr != nil {
		m.metrics.RecordScriptError(mod.ID, "execute")
		return nil, execErr
	}
	return entry, nil
}

// execute runs a compiled script with s as its binding environment.
func (m *Manager) execute(tag string, prog *goja.Program, s *scope.Scope) error {
	rt := m.env.Runtime()
	v, err := rt.RunProgram(prog)
	if err != nil {
		return WrapExecution(tag, err)
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return &fault.ExecutionError{Name: tag, Message: "script did not compile to a callable unit"}
	}
	if _, err := fn(goja.Undefined(), s.Object()); err != nil {
		return WrapExecution(tag, err)
	}
	return nil
}

// CompileScript compiles source with the scope-threading wrapper applied,
// tagging the unit for diagnostics. Sloppy mode is required: the wrapper's
// with statement is what routes every free identifier through the scope
// chain.
func CompileScript(tag, src string) (*goja.Program, error) {
	wrapped := "(function(scope){with(scope){\n" + src + "\n}})"
	prog, err := goja.Compile(tag, wrapped, false)
	if err != nil {
		return nil, &fault.CompileError{Name: tag, Message: err.Error()}
	}
	return prog, nil
}

// WrapExecution converts a goja failure into an ExecutionError carrying the
// script-level stack when one is available.
func WrapExecution(tag string, err error) error {
	if ex, ok := err.(*goja.Exception); ok {
		return &fault.ExecutionError{
			Name:    tag,
			Message: ex.Value().String(),
			Trace:   ex.String(),
			Cause:   err,
		}
	}
	return &fault.ExecutionError{Name: tag, Message: err.Error(), Cause: err}
}

// Normalize sanitizes a library reference into the asset store's path
// convention: parent-directory escapes and path separators are stripped,
// then the dotted module convention maps to slashes. Defense in depth; the
// asset store refuses escapes independently.
func Normalize(ref string) string {
	ref = strings.TrimSpace(ref)
	for strings.Contains(ref, "..") {
		ref = strings.ReplaceAll(ref, "..", "")
	}
	ref = strings.ReplaceAll(ref, "/", "")
	ref = strings.ReplaceAll(ref, "\\", "")
	return strings.ReplaceAll(ref, ".", "/")
}
