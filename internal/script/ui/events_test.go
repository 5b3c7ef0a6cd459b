package ui_test

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thinkofname/UniverCity/internal/assets"
	"github.com/Thinkofname/UniverCity/internal/logging"
	"github.com/Thinkofname/UniverCity/internal/script/capability"
	"github.com/Thinkofname/UniverCity/internal/script/fault"
	"github.com/Thinkofname/UniverCity/internal/script/loader"
	"github.com/Thinkofname/UniverCity/internal/script/scope"
	"github.com/Thinkofname/UniverCity/internal/script/ui"
)

type mapStore struct {
	mu   sync.Mutex
	srcs map[string]string
}

func (s *mapStore) Fetch(module, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.srcs[module+":"+path]
	if !ok {
		return "", assets.NotFound(module, path)
	}
	return src, nil
}

func (s *mapStore) ModifiedTime(module, path string) (time.Time, bool) {
	return time.Time{}, false
}

type actionHarness struct {
	rt     *goja.Runtime
	env    *scope.Env
	entry  *loader.Entry
	record []string
}

func newActionHarness(t *testing.T, library string) *actionHarness {
	t.Helper()
	rt := goja.New()
	env := scope.NewEnv(rt)
	reg := capability.New(rt)
	store := &mapStore{srcs: map[string]string{"base:ui/menu": library}}
	mgr := loader.NewManager(env, reg, store, logging.NewNop(), nil)

	h := &actionHarness{rt: rt, env: env}
	require.NoError(t, reg.RegisterFunc("record", func(call goja.FunctionCall) goja.Value {
		h.record = append(h.record, call.Argument(0).String())
		return goja.Undefined()
	}))

	entry, err := mgr.Require(mgr.GetModule("base"), "ui/menu")
	require.NoError(t, err)
	h.entry = entry
	return h
}

func TestCompileAction(t *testing.T) {
	h := newActionHarness(t, `prefix = "btn:";`)

	// The snippet body sees the library's scope chain: prefix comes from the
	// library, node and event are the handler parameters.
	handler, err := ui.CompileAction(h.env, h.entry, "base:ui/menu#action", "record(prefix + event + '@' + node);", nil)
	require.NoError(t, err)

	_, err = handler(goja.Undefined(), h.rt.ToValue("save"), h.rt.ToValue("click"))
	require.NoError(t, err)
	assert.Equal(t, []string{"btn:click@save"}, h.record)
}

func TestCompileActionCaching(t *testing.T) {
	h := newActionHarness(t, `prefix = "x";`)
	src := "record(prefix);"

	first, err := ui.CompileAction(h.env, h.entry, "tag", src, nil)
	require.NoError(t, err)

	cached, ok := h.entry.Action(src)
	require.True(t, ok)
	assert.Equal(t, reflect.ValueOf(first).Pointer(), reflect.ValueOf(cached).Pointer())

	second, err := ui.CompileAction(h.env, h.entry, "tag", src, nil)
	require.NoError(t, err)
	assert.Equal(t, reflect.ValueOf(first).Pointer(), reflect.ValueOf(second).Pointer())

	// A different snippet compiles its own handler.
	other, err := ui.CompileAction(h.env, h.entry, "tag", "record('other');", nil)
	require.NoError(t, err)
	assert.NotEqual(t, reflect.ValueOf(first).Pointer(), reflect.ValueOf(other).Pointer())
}

func TestCompileActionErrors(t *testing.T) {
	h := newActionHarness(t, `ok = true;`)

	_, err := ui.CompileAction(h.env, h.entry, "tag", "function (", nil)
	var ce *fault.CompileError
	require.ErrorAs(t, err, &ce)

	// A throw in the snippet body surfaces at dispatch time, not compile
	// time: compiling only evaluates the wrapper, never the handler body.
	handler, err := ui.CompileAction(h.env, h.entry, "tag", "throw 'nope';", nil)
	require.NoError(t, err)
	_, err = handler(goja.Undefined(), goja.Undefined(), goja.Undefined())
	require.Error(t, err)
}
