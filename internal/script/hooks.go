package script

import (
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/Thinkofname/UniverCity/internal/script/codec"
	"github.com/Thinkofname/UniverCity/internal/script/fault"
	"github.com/Thinkofname/UniverCity/internal/script/immutable"
	"github.com/Thinkofname/UniverCity/internal/script/mission"
	"github.com/Thinkofname/UniverCity/internal/script/scope"
	"github.com/Thinkofname/UniverCity/internal/script/ui"
	"github.com/Thinkofname/UniverCity/internal/shared/direction"
)

// descHandle and payloadHandle keep codec state opaque inside scripts:
// nothing is exported, so script code can only hand them back to the
// serialize_* capabilities.
type descHandle struct {
	d *codec.Desc
}

type payloadHandle struct {
	p *codec.Payload
}

func (h *payloadHandle) bytes() []byte { return codec.PayloadBytes(h.p) }

// PayloadValue wraps host-received bytes so they can be passed into script
// calls that expect an encoded payload, e.g. notification handlers.
func (e *Engine) PayloadValue(data []byte) goja.Value {
	return e.rt.ToValue(&payloadHandle{p: codec.PayloadFromBytes(data)})
}

func (e *Engine) throw(err error) {
	panic(e.rt.NewGoError(err))
}

func errField(err error) zap.Field { return zap.Error(err) }

// installBase enumerates the primitives common to both sides: pure
// utilities, the direction helpers, the serialization surface, and the
// level query bridge.
func (e *Engine) installBase() error {
	rt := e.rt
	reg := e.registry

	if err := reg.RegisterFunc("format", func(call goja.FunctionCall) goja.Value {
		f := call.Argument(0).String()
		rest := make([]interface{}, 0, len(call.Arguments))
		for _, arg := range call.Arguments[1:] {
			rest = append(rest, arg.Export())
		}
		return rt.ToValue(fmt.Sprintf(f, rest...))
	}); err != nil {
		return err
	}

	if err := reg.RegisterFunc("keys", func(call goja.FunctionCall) goja.Value {
		obj := call.Argument(0).ToObject(rt)
		return rt.ToValue(obj.Keys())
	}); err != nil {
		return err
	}

	if err := reg.RegisterFunc("direction_offset", func(call goja.FunctionCall) goja.Value {
		d, err := direction.Parse(call.Argument(0).String())
		if err != nil {
			e.throw(err)
		}
		x, y := d.Offset()
		return immutable.Wrap(rt, map[string]goja.Value{
			"x": rt.ToValue(x),
			"y": rt.ToValue(y),
		})
	}); err != nil {
		return err
	}

	if err := reg.RegisterFunc("direction_reverse", func(call goja.FunctionCall) goja.Value {
		d, err := direction.Parse(call.Argument(0).String())
		if err != nil {
			e.throw(err)
		}
		return rt.ToValue(d.Reverse().String())
	}); err != nil {
		return err
	}

	if err := e.installSerialize(); err != nil {
		return err
	}

	if e.bridges.Level != nil {
		if err := reg.RegisterFunc("level_tile", func(call goja.FunctionCall) goja.Value {
			x := int(call.Argument(0).ToInteger())
			y := int(call.Argument(1).ToInteger())
			return rt.ToValue(e.bridges.Level.TileAt(x, y))
		}); err != nil {
			return err
		}
	}
	return nil
}

// installSerialize exposes the schema codec. Schema compilation itself
// lives in the codec package; scripts only ever see the two calls per
// defined schema plus the definition entry point.
func (e *Engine) installSerialize() error {
	rt := e.rt
	reg := e.registry

	if err := reg.RegisterFunc("serialize_create_desc", func(call goja.FunctionCall) goja.Value {
		desc, err := codec.Define(rt, call.Argument(0).ToObject(rt))
		if err != nil {
			e.throw(err)
		}
		return rt.ToValue(&descHandle{d: desc})
	}); err != nil {
		return err
	}

	if err := reg.RegisterFunc("serialize_encode", func(call goja.FunctionCall) goja.Value {
		desc, ok := call.Argument(0).Export().(*descHandle)
		if !ok {
			e.throw(&fault.InvalidArgumentError{What: "serialize_encode expects a schema desc"})
		}
		payload, err := desc.d.Encode(call.Argument(1).ToObject(rt))
		if err != nil {
			e.throw(err)
		}
		return rt.ToValue(&payloadHandle{p: payload})
	}); err != nil {
		return err
	}

	return reg.RegisterFunc("serialize_decode", func(call goja.FunctionCall) goja.Value {
		desc, ok := call.Argument(0).Export().(*descHandle)
		if !ok {
			e.throw(&fault.InvalidArgumentError{What: "serialize_decode expects a schema desc"})
		}
		payload, ok := call.Argument(1).Export().(*payloadHandle)
		if !ok {
			e.throw(&fault.InvalidArgumentError{What: "serialize_decode expects an encoded payload"})
		}
		table, err := desc.d.Decode(rt, payload.p)
		if err != nil {
			e.throw(err)
		}
		return table
	})
}

// installClient adds the UI and audio primitives. Server engines never see
// these; a module script probing for them simply finds undefined.
func (e *Engine) installClient() error {
	rt := e.rt
	reg := e.registry

	if err := reg.RegisterFunc("builder", func(call goja.FunctionCall) goja.Value {
		body, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			e.throw(&fault.InvalidArgumentError{What: "builder expects a function"})
		}
		node, err := ui.Build(e.env, body)
		if err != nil {
			e.throw(err)
		}
		return rt.ToValue(node)
	}); err != nil {
		return err
	}

	if e.bridges.UI != nil {
		if err := reg.RegisterFunc("ui_add_node", func(call goja.FunctionCall) goja.Value {
			e.bridges.UI.AddRoot(argNode(e, call, 0))
			return goja.Undefined()
		}); err != nil {
			return err
		}
		if err := reg.RegisterFunc("ui_remove_node", func(call goja.FunctionCall) goja.Value {
			e.bridges.UI.RemoveRoot(argNode(e, call, 0))
			return goja.Undefined()
		}); err != nil {
			return err
		}
		if err := reg.RegisterFunc("ui_show_tooltip", func(call goja.FunctionCall) goja.Value {
			key := call.Argument(0).String()
			node := argNode(e, call, 1)
			x := int(call.Argument(2).ToInteger())
			y := int(call.Argument(3).ToInteger())
			e.bridges.UI.ShowTooltip(key, node, x, y)
			return goja.Undefined()
		}); err != nil {
			return err
		}
		if err := reg.RegisterFunc("ui_hide_tooltip", func(call goja.FunctionCall) goja.Value {
			e.bridges.UI.HideTooltip(call.Argument(0).String())
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}

	if e.bridges.Audio != nil {
		if err := reg.RegisterFunc("audio_play", func(call goja.FunctionCall) goja.Value {
			e.bridges.Audio.Play(call.Argument(0).String())
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return nil
}

// installServer adds player control and command submission for mission
// scripts.
func (e *Engine) installServer() error {
	rt := e.rt
	reg := e.registry

	if e.bridges.Players != nil {
		if err := reg.RegisterFunc("control_get_players", func(call goja.FunctionCall) goja.Value {
			return rt.ToValue(e.bridges.Players.Players())
		}); err != nil {
			return err
		}
		if err := reg.RegisterFunc("control_give_money", func(call goja.FunctionCall) goja.Value {
			player := int(call.Argument(0).ToInteger())
			amount := int(call.Argument(1).ToInteger())
			e.bridges.Players.GiveMoney(player, amount)
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}

	if e.bridges.Commands != nil {
		if err := reg.RegisterFunc("control_submit_command", func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			var data []byte
			if payload, ok := call.Argument(1).Export().(*payloadHandle); ok {
				data = payload.bytes()
			}
			e.bridges.Commands.Submit(name, data)
			return goja.Undefined()
		}); err != nil {
			return err
		}
	}
	return nil
}

// moduleSetup is the per-scope extension hook: entries that need the
// registering module's identity are installed here, before the scope is
// frozen.
func (e *Engine) moduleSetup(moduleID string, s *scope.Scope) {
	rt := e.rt

	s.SetEntry("module_name", rt.ToValue(moduleID))

	s.SetEntry("register_mission", rt.ToValue(func(call goja.FunctionCall) goja.Value {
		entry := mission.ParseEntry(moduleID, call.Argument(0).ToObject(rt))
		if err := e.missions.Register(entry); err != nil {
			e.throw(err)
		}
		return goja.Undefined()
	}))
}

func argNode(e *Engine, call goja.FunctionCall, idx int) *ui.Node {
	node, ok := call.Argument(idx).Export().(*ui.Node)
	if !ok {
		e.throw(&fault.InvalidArgumentError{What: "expected a ui node"})
	}
	return node
}
