package ui

import (
	"github.com/dop251/goja"

	"github.com/Thinkofname/UniverCity/internal/infrastructure/monitoring"
	"github.com/Thinkofname/UniverCity/internal/script/fault"
	"github.com/Thinkofname/UniverCity/internal/script/loader"
	"github.com/Thinkofname/UniverCity/internal/script/scope"
)

// CompileAction compiles an inline event-handler snippet against a loaded
// library and caches the result on that library's entry.
//
// The snippet becomes the body of a two-parameter (node, event) function.
// Compiling yields a unit whose one-time evaluation inside the library's
// scope produces the handler closure; the closure, not the evaluation, is
// what later event dispatches call. Because the cache hangs off the library
// entry, reloading the library empties it by construction.
func CompileAction(env *scope.Env, entry *loader.Entry, tag, src string, metrics *monitoring.Metrics) (goja.Callable, error) {
	if fn, ok := entry.Action(src); ok {
		metrics.RecordActionCompile(true)
		return fn, nil
	}
	metrics.RecordActionCompile(false)

	wrapped := "(function(scope){with(scope){\nreturn (function(node, event){\n" + src + "\n});\n}})"
	prog, err := goja.Compile(tag, wrapped, false)
	if err != nil {
		return nil, &fault.CompileError{Name: tag, Message: err.Error()}
	}

	rt := env.Runtime()
	outerVal, err := rt.RunProgram(prog)
	if err != nil {
		return nil, loader.WrapExecution(tag, err)
	}
	outer, ok := goja.AssertFunction(outerVal)
	if !ok {
		return nil, &fault.CompileError{Name: tag, Message: "snippet did not compile to a callable unit"}
	}

	handlerVal, err := outer(goja.Undefined(), entry.Scope.Object())
	if err != nil {
		return nil, loader.WrapExecution(tag, err)
	}
	handler, ok := goja.AssertFunction(handlerVal)
	if !ok {
		return nil, &fault.ExecutionError{Name: tag, Message: "snippet evaluation did not produce a handler"}
	}

	entry.StoreAction(src, handler)
	return handler, nil
}
