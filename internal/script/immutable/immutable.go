// Package immutable provides the write-protected table handed to scripts.
//
// Reads pass through to the backing entries unchanged; any write or delete
// throws fault.ErrImmutableWrite into the running script. The backing map is
// never reachable from script code, so the protection cannot be unwrapped.
package immutable

import (
	"github.com/dop251/goja"

	"github.com/Thinkofname/UniverCity/internal/script/fault"
)

// Table is a read-through, write-reject view over a set of entries.
// It implements goja.DynamicObject.
type Table struct {
	rt      *goja.Runtime
	entries map[string]goja.Value
}

// Wrap builds an immutable script-visible object over entries. The map is
// owned by the table after the call; callers must not mutate it.
func Wrap(rt *goja.Runtime, entries map[string]goja.Value) *goja.Object {
	if entries == nil {
		entries = map[string]goja.Value{}
	}
	return rt.NewDynamicObject(&Table{rt: rt, entries: entries})
}

// WrapValues converts plain Go values and wraps them. Nested maps become
// immutable tables themselves so sub-namespaces carry the same protection.
func WrapValues(rt *goja.Runtime, values map[string]interface{}) *goja.Object {
	entries := make(map[string]goja.Value, len(values))
	for k, v := range values {
		if nested, ok := v.(map[string]interface{}); ok {
			entries[k] = WrapValues(rt, nested)
			continue
		}
		entries[k] = rt.ToValue(v)
	}
	return Wrap(rt, entries)
}

// Get implements goja.DynamicObject.
func (t *Table) Get(key string) goja.Value {
	if v, ok := t.entries[key]; ok {
		return v
	}
	return goja.Undefined()
}

// Set implements goja.DynamicObject. It never stores; it throws into the VM.
func (t *Table) Set(key string, val goja.Value) bool {
	panic(t.rt.NewGoError(fault.ErrImmutableWrite))
}

// Has implements goja.DynamicObject.
func (t *Table) Has(key string) bool {
	_, ok := t.entries[key]
	return ok
}

// Delete implements goja.DynamicObject.
func (t *Table) Delete(key string) bool {
	panic(t.rt.NewGoError(fault.ErrImmutableWrite))
}

// Keys implements goja.DynamicObject.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	return keys
}
