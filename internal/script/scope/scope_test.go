package scope

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thinkofname/UniverCity/internal/script/fault"
)

type mapLayer map[string]goja.Value

func (m mapLayer) Lookup(name string) (goja.Value, bool) {
	v, ok := m[name]
	return v, ok
}

// runIn executes src with s as its binding environment, the same shape the
// loader produces.
func runIn(t *testing.T, rt *goja.Runtime, s *Scope, src string) (goja.Value, error) {
	t.Helper()
	v, err := rt.RunString("(function(scope){with(scope){\n" + src + "\n}})")
	require.NoError(t, err)
	fn, ok := goja.AssertFunction(v)
	require.True(t, ok)
	return fn(goja.Undefined(), s.Object())
}

func TestLookupChain(t *testing.T) {
	rt := goja.New()
	env := NewEnv(rt)
	root := mapLayer{"root_only": rt.ToValue("root"), "shadowed": rt.ToValue("root")}

	parent := New(env, root)
	require.NoError(t, parent.SetEntry("parent_only", rt.ToValue("parent")))
	require.NoError(t, parent.SetEntry("shadowed", rt.ToValue("parent")))

	child := New(env, parent)
	require.NoError(t, child.SetEntry("child_only", rt.ToValue("child")))

	tests := []struct {
		name string
		want string
	}{
		{"child_only", "child"},
		{"parent_only", "parent"},
		{"root_only", "root"},
		{"shadowed", "parent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := child.Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, v.String())
		})
	}

	_, ok := child.Lookup("nowhere")
	assert.False(t, ok)
}

func TestScriptResolution(t *testing.T) {
	rt := goja.New()
	env := NewEnv(rt)
	root := mapLayer{"greeting": rt.ToValue("hello")}
	s := New(env, root)

	// Free identifiers resolve through the chain, unknown ones read as
	// undefined rather than throwing.
	v, err := runIn(t, rt, s, "return greeting + (missing === undefined ? '!' : '?')")
	require.NoError(t, err)
	assert.Equal(t, "hello!", v.String())

	// Assignments land in the scope's own entries, not the VM global.
	_, err = runIn(t, rt, s, "published = 7")
	require.NoError(t, err)
	got, ok := s.Entry("published")
	require.True(t, ok)
	assert.Equal(t, int64(7), got.ToInteger())

	v, err = rt.RunString("typeof published")
	require.NoError(t, err)
	assert.Equal(t, "undefined", v.String())
}

func TestFreeze(t *testing.T) {
	rt := goja.New()
	env := NewEnv(rt)
	s := New(env, nil)
	require.NoError(t, s.SetEntry("x", rt.ToValue(1)))
	s.Freeze()
	require.True(t, s.Frozen())

	assert.ErrorIs(t, s.SetEntry("y", rt.ToValue(2)), fault.ErrImmutableWrite)

	_, err := runIn(t, rt, s, "x = 2")
	assert.Error(t, err)
	_, err = runIn(t, rt, s, "delete x")
	assert.Error(t, err)

	v, ok := s.Entry("x")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.ToInteger())
}

func TestOverlays(t *testing.T) {
	rt := goja.New()
	env := NewEnv(rt)
	s := New(env, nil)
	require.NoError(t, s.SetEntry("name", rt.ToValue("scope")))
	s.Freeze()

	// Overlays out-resolve scope entries while pushed, innermost first.
	env.PushOverlay(mapLayer{"name": rt.ToValue("outer")})
	env.PushOverlay(mapLayer{"name": rt.ToValue("inner")})

	v, err := runIn(t, rt, s, "return name")
	require.NoError(t, err)
	assert.Equal(t, "inner", v.String())

	env.PopOverlay()
	v, err = runIn(t, rt, s, "return name")
	require.NoError(t, err)
	assert.Equal(t, "outer", v.String())

	env.PopOverlay()
	v, err = runIn(t, rt, s, "return name")
	require.NoError(t, err)
	assert.Equal(t, "scope", v.String())

	// Overlays never leak into host-side lookups.
	env.PushOverlay(mapLayer{"name": rt.ToValue("overlay")})
	got, ok := s.Lookup("name")
	require.True(t, ok)
	assert.Equal(t, "scope", got.String())
}

func TestKeysEnumerateOwnEntriesOnly(t *testing.T) {
	rt := goja.New()
	env := NewEnv(rt)
	parent := New(env, nil)
	require.NoError(t, parent.SetEntry("hidden", rt.ToValue(1)))

	child := New(env, parent)
	require.NoError(t, child.SetEntry("a", rt.ToValue(1)))
	require.NoError(t, child.SetEntry("b", rt.ToValue(2)))

	assert.ElementsMatch(t, []string{"a", "b"}, child.Keys())
}
