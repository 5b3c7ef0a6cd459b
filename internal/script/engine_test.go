package script

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Thinkofname/UniverCity/internal/assets"
	"github.com/Thinkofname/UniverCity/internal/script/fault"
	"github.com/Thinkofname/UniverCity/internal/script/roam"
)

type mapStore struct {
	mu   sync.Mutex
	srcs map[string]string
}

func newMapStore() *mapStore {
	return &mapStore{srcs: map[string]string{}}
}

func (s *mapStore) put(module, path, src string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.srcs[module+":"+path] = src
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

func newEngine(t *testing.T, side Side, store assets.Store, opts ...Option) *Engine {
	t.Helper()
	e, err := New(side, store, opts...)
	require.NoError(t, err)
	require.NoError(t, e.Setup())
	return e
}

func TestLoadModule(t *testing.T) {
	store := newMapStore()
	store.put("base", "init", `
		print(format("booting %s", module_name));
		register_mission({
			name: "tutorial",
			handler: "missions#run",
			description: "learn the ropes",
			save_key: "tut",
		});
	`)
	store.put("broken", "init", `throw new Error("nope");`)

	e := newEngine(t, SideServer, store)

	assert.True(t, e.LoadModule("base"))
	assert.False(t, e.LoadModule("broken"))
	assert.False(t, e.LoadModule("absent"))

	// Mission names pick up the registering module's namespace.
	m, ok := e.Missions().Get("base:tutorial")
	require.True(t, ok)
	assert.Equal(t, "missions#run", m.Handler)
	assert.Equal(t, "tut", m.SaveKey)
}

func TestLoadBeforeSetup(t *testing.T) {
	store := newMapStore()
	store.put("base", "init", "ready = true;")

	e, err := New(SideServer, store)
	require.NoError(t, err)
	assert.False(t, e.LoadModule("base"))

	// Every path that would execute script code is refused too.
	_, err = e.InvokeModuleMethod("base", "init", "anything")
	assert.ErrorIs(t, err, fault.ErrNotSetup)
	_, err = e.InvokeFreeRoam("base", "init", "anything", nil, nil)
	assert.ErrorIs(t, err, fault.ErrNotSetup)
	_, err = e.CompileUIAction("base", "init", "1;")
	assert.ErrorIs(t, err, fault.ErrNotSetup)

	require.NoError(t, e.Setup())
	assert.True(t, e.LoadModule("base"))
	assert.ErrorIs(t, e.Setup(), fault.ErrAlreadySetup)
}

func TestInvokeModuleMethod(t *testing.T) {
	store := newMapStore()
	store.put("base", "sim", `
		update = function(state) {
			return state.money * 2;
		};
		tamper = function(state) {
			state.money = 0;
		};
	`)
	e := newEngine(t, SideServer, store)

	v, err := e.InvokeModuleMethod("base", "sim", "update", map[string]interface{}{"money": 21})
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.ToInteger())

	// Host maps cross the boundary write-protected.
	_, err = e.InvokeModuleMethod("base", "sim", "tamper", map[string]interface{}{"money": 21})
	require.Error(t, err)

	_, err = e.InvokeModuleMethod("base", "sim", "ghost")
	var invalid *fault.InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
}

func TestSideCapabilities(t *testing.T) {
	src := `
		has_builder = typeof builder;
		has_players = typeof control_get_players;
	`
	store := newMapStore()
	store.put("base", "probe", src)

	players := &fakePlayers{ids: []int{1, 2}}
	server := newEngine(t, SideServer, store, WithBridges(Bridges{Players: players}))
	entry, err := server.requireEntry("base", "probe")
	require.NoError(t, err)
	v, _ := entry.Scope.Entry("has_builder")
	assert.Equal(t, "undefined", v.String())
	v, _ = entry.Scope.Entry("has_players")
	assert.Equal(t, "function", v.String())

	clientStore := newMapStore()
	clientStore.put("base", "probe", src)
	client := newEngine(t, SideClient, clientStore)
	entry, err = client.requireEntry("base", "probe")
	require.NoError(t, err)
	v, _ = entry.Scope.Entry("has_builder")
	assert.Equal(t, "function", v.String())
	v, _ = entry.Scope.Entry("has_players")
	assert.Equal(t, "undefined", v.String())
}

func TestDirectionCapabilities(t *testing.T) {
	store := newMapStore()
	store.put("base", "geo", `
		var east = direction_offset("east");
		ex = east.x;
		ey = east.y;
		opposite = direction_reverse("north");
	`)
	e := newEngine(t, SideServer, store)

	entry, err := e.requireEntry("base", "geo")
	require.NoError(t, err)

	v, _ := entry.Scope.Entry("ex")
	assert.Equal(t, int64(-1), v.ToInteger())
	v, _ = entry.Scope.Entry("ey")
	assert.Equal(t, int64(0), v.ToInteger())
	v, _ = entry.Scope.Entry("opposite")
	assert.Equal(t, "south", v.String())
}

func TestSerializeCapabilities(t *testing.T) {
	store := newMapStore()
	store.put("base", "wire", `
		var desc = serialize_create_desc([["x", "i8"], ["label", "string"]]);
		var payload = serialize_encode(desc, {x: -5, label: "go"});
		var back = serialize_decode(desc, payload);
		x = back.x;
		label = back.label;
	`)
	e := newEngine(t, SideServer, store)

	entry, err := e.requireEntry("base", "wire")
	require.NoError(t, err)

	v, _ := entry.Scope.Entry("x")
	assert.Equal(t, int64(-5), v.ToInteger())
	v, _ = entry.Scope.Entry("label")
	assert.Equal(t, "go", v.String())
}

type fakePlayers struct {
	ids   []int
	money map[int]int
}

func (f *fakePlayers) Players() []int { return f.ids }

func (f *fakePlayers) GiveMoney(player, amount int) {
	if f.money == nil {
		f.money = map[int]int{}
	}
	f.money[player] += amount
}

type fakeCommands struct {
	names    []string
	payloads [][]byte
}

func (f *fakeCommands) Submit(name string, payload []byte) {
	f.names = append(f.names, name)
	f.payloads = append(f.payloads, payload)
}

func TestServerControlBridges(t *testing.T) {
	store := newMapStore()
	store.put("base", "economy", `
		payday = function() {
			var players = control_get_players();
			for (var i = 0; i < players.length; i++) {
				control_give_money(players[i], 100);
			}
			var desc = serialize_create_desc([["total", "u16"]]);
			control_submit_command("payday", serialize_encode(desc, {total: players.length * 100}));
		};
	`)

	players := &fakePlayers{ids: []int{1, 2}}
	commands := &fakeCommands{}
	e := newEngine(t, SideServer, store, WithBridges(Bridges{Players: players, Commands: commands}))

	_, err := e.InvokeModuleMethod("base", "economy", "payday")
	require.NoError(t, err)

	assert.Equal(t, map[int]int{1: 100, 2: 100}, players.money)
	require.Equal(t, []string{"payday"}, commands.names)
	assert.NotEmpty(t, commands.payloads[0])
}

type fakeNotifier struct {
	player  int
	script  string
	method  string
	payload []byte
}

func (f *fakeNotifier) Notify(player int, script, method string, payload []byte) error {
	f.player = player
	f.script = script
	f.method = method
	f.payload = payload
	return nil
}

func TestFreeRoamNotify(t *testing.T) {
	store := newMapStore()
	store.put("base", "behaviors", `
		chatty = function*() {
			var notify = yield "notify_player";
			var desc = serialize_create_desc([["x", "i8"]]);
			notify("handlers#on_msg", serialize_encode(desc, {x: 9}));
		};
	`)

	notifier := &fakeNotifier{}
	e := newEngine(t, SideServer, store, WithBridges(Bridges{Notifier: notifier}))

	h, err := e.InvokeFreeRoam("base", "behaviors", "chatty", nil, nil)
	require.NoError(t, err)
	require.Equal(t, roam.StateFresh, h.State())

	h, err = e.InvokeFreeRoam("base", "behaviors", "chatty", h, map[string]goja.Value{
		"notify_player": e.NotifyCallback(3, "base"),
	})
	require.NoError(t, err)
	assert.Equal(t, roam.StateCompleted, h.State())

	assert.Equal(t, 3, notifier.player)
	// Unqualified script references pick up the default module.
	assert.Equal(t, "base:handlers", notifier.script)
	assert.Equal(t, "on_msg", notifier.method)
	assert.NotEmpty(t, notifier.payload)
}

type fakeAudio struct {
	played []string
}

func (f *fakeAudio) Play(sound string) { f.played = append(f.played, sound) }

func TestCompileUIAction(t *testing.T) {
	store := newMapStore()
	store.put("base", "ui/menu", `sound = "click";`)

	audio := &fakeAudio{}
	e := newEngine(t, SideClient, store, WithBridges(Bridges{Audio: audio}))

	handler, err := e.CompileUIAction("base", "ui/menu", "audio_play(sound + ':' + event);")
	require.NoError(t, err)

	_, err = handler(goja.Undefined(), goja.Undefined(), e.ToScriptValue("pressed"))
	require.NoError(t, err)
	assert.Equal(t, []string{"click:pressed"}, audio.played)
}

func TestPollReload(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "base")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "module.toml"), []byte(`name = "base"`), 0o644))
	initFile := filepath.Join(dir, "scripts", "init.js")
	require.NoError(t, os.WriteFile(initFile, []byte("version = 1;"), 0o644))

	store, err := assets.NewDirStore(root)
	require.NoError(t, err)

	e := newEngine(t, SideServer, store, WithReloadPolling(rate.NewLimiter(rate.Inf, 1)))
	require.True(t, e.LoadModule("base"))

	// Nothing changed yet.
	assert.Empty(t, e.PollReload())

	require.NoError(t, os.WriteFile(initFile, []byte("version = 2;"), 0o644))
	future := time.Now().Add(5 * time.Second)
	require.NoError(t, os.Chtimes(initFile, future, future))

	assert.Equal(t, []string{"base"}, e.PollReload())

	entry, err := e.requireEntry("base", "init")
	require.NoError(t, err)
	v, ok := entry.Scope.Entry("version")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.ToInteger())
}

func TestPayloadValueRoundTrip(t *testing.T) {
	store := newMapStore()
	store.put("base", "wire", `
		var desc = serialize_create_desc([["x", "i8"]]);
		read_x = function(payload) {
			return serialize_decode(desc, payload).x;
		};
		make = function() {
			return serialize_encode(desc, {x: 7});
		};
	`)
	e := newEngine(t, SideServer, store)

	// Host-received bytes can be handed back into script decode calls.
	made, err := e.InvokeModuleMethod("base", "wire", "make")
	require.NoError(t, err)
	raw, ok := made.Export().(*payloadHandle)
	require.True(t, ok)

	v, err := e.InvokeModuleMethod("base", "wire", "read_x", e.PayloadValue(raw.bytes()))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.ToInteger())
}
