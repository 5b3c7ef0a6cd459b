package ui

import (
	"reflect"

	"github.com/dop251/goja"

	"github.com/Thinkofname/UniverCity/internal/script/fault"
	"github.com/Thinkofname/UniverCity/internal/script/loader"
	"github.com/Thinkofname/UniverCity/internal/script/scope"
)

// Build executes body inside a throwaway environment where every free
// identifier resolves to a node-constructor closure named after it. The
// environment exists only for the duration of the call: it is pushed as a
// dynamic overlay on the lookup chain, never cached, and never escapes.
//
// Calling a constructor: object arguments set typed properties on the node,
// every other argument is a positional child. A bare string child is
// auto-wrapped into a text node.
func Build(env *scope.Env, body goja.Callable) (*Node, error) {
	overlay := newConstructorEnv(env.Runtime())
	env.PushOverlay(overlay)
	defer env.PopOverlay()

	v, err := body(goja.Undefined())
	if err != nil {
		return nil, loader.WrapExecution("ui_builder", err)
	}
	node, ok := v.Export().(*Node)
	if !ok {
		return nil, &fault.InvalidArgumentError{What: "builder body did not return a node"}
	}
	return node, nil
}

// constructorEnv is the overlay layer of one Build call. Constructors are
// memoized per name within the call so repeated tags share a closure.
type constructorEnv struct {
	rt    *goja.Runtime
	ctors map[string]goja.Value
}

func newConstructorEnv(rt *goja.Runtime) *constructorEnv {
	return &constructorEnv{rt: rt, ctors: map[string]goja.Value{}}
}

// Lookup implements scope.Layer. Any identifier yields a constructor.
func (e *constructorEnv) Lookup(name string) (goja.Value, bool) {
	if v, ok := e.ctors[name]; ok {
		return v, true
	}
	v := e.rt.ToValue(e.constructor(name))
	e.ctors[name] = v
	return v, true
}

func (e *constructorEnv) constructor(name string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		node := NewNode(name)
		for _, arg := range call.Arguments {
			e.apply(node, arg)
		}
		return e.rt.ToValue(node)
	}
}

func (e *constructorEnv) apply(node *Node, arg goja.Value) {
	if arg == nil || goja.IsUndefined(arg) || goja.IsNull(arg) {
		return
	}

	t := arg.ExportType()
	if t != nil && t.Kind() == reflect.String {
		node.AddChild(NewText(arg.String()))
		return
	}

	switch exported := arg.Export().(type) {
	case *Node:
		node.AddChild(exported)
	case map[string]interface{}:
		// Keyed entries become typed properties; read through the original
		// object so property values keep their script types.
		obj := arg.ToObject(e.rt)
		for _, key := range obj.Keys() {
			node.SetProp(key, obj.Get(key))
		}
	}
	// Anything else cannot be attached and is dropped.
}
