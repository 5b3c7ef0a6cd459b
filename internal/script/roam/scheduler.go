// Package roam drives long-running "free-roam" behavior scripts through a
// cooperative suspend/resume protocol.
//
// A behavior method is a suspendable execution unit (a generator in the
// script language). Each yield carries a suspension key naming the context
// the behavior is waiting on; the host supplies context per invocation and
// the scheduler feeds bound values back into the script. Keys the host
// never binds park the behavior until a later invocation supplies them.
package roam

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/google/uuid"

	"github.com/Thinkofname/UniverCity/internal/infrastructure/monitoring"
	"github.com/Thinkofname/UniverCity/internal/logging"
	"github.com/Thinkofname/UniverCity/internal/script/fault"
	"github.com/Thinkofname/UniverCity/internal/script/loader"
	"github.com/Thinkofname/UniverCity/internal/script/scope"
)

// Kind classifies a suspension reason.
type Kind int

const (
	// KindTick is a bare wait: advance on the next invocation.
	KindTick Kind = iota
	// KindEntity waits for the entity this behavior is bound to.
	KindEntity
	// KindPlayer waits for the owning player.
	KindPlayer
	// KindNotify waits for the player-notification callback.
	KindNotify
	// KindExtension is a host-specific key outside the built-in set.
	KindExtension
)

// Reason is one decoded suspension request.
type Reason struct {
	Kind Kind
	Key  string
}

// ParseReason decodes a yielded suspension key.
func ParseReason(key string) Reason {
	switch key {
	case "", "tick":
		return Reason{Kind: KindTick, Key: "tick"}
	case "entity":
		return Reason{Kind: KindEntity, Key: key}
	case "player":
		return Reason{Kind: KindPlayer, Key: key}
	case "notify_player":
		return Reason{Kind: KindNotify, Key: key}
	default:
		return Reason{Kind: KindExtension, Key: key}
	}
}

// Recognized reports whether the scheduler always knows how to advance past
// this reason, even when the host leaves it unbound.
func (r Reason) Recognized() bool { return r.Kind != KindExtension }

// State is the lifecycle position of a behavior execution.
type State int

const (
	// StateFresh means created but never resumed; no body has run.
	StateFresh State = iota
	// StateSuspended means parked at a yield.
	StateSuspended
	// StateCompleted means the behavior ran to completion.
	StateCompleted
	// StateFailed means a resume raised an error.
	StateFailed
)

// Handle is an opaque reference to one suspendable execution of a behavior
// method. Callers track it per logical behavior owner; feeding a terminal
// handle back into Invoke restarts rather than errors.
type Handle struct {
	id      uuid.UUID
	tag     string
	state   State
	iter    *goja.Object
	next    goja.Callable
	pending Reason
}

// ID identifies the execution for diagnostics.
func (h *Handle) ID() uuid.UUID { return h.id }

// State returns the current lifecycle state.
func (h *Handle) State() State { return h.state }

// Terminal reports whether the execution finished, successfully or not.
func (h *Handle) Terminal() bool {
	return h == nil || h.state == StateCompleted || h.state == StateFailed
}

// Pending returns the suspension reason the behavior is parked on.
func (h *Handle) Pending() Reason { return h.pending }

// Scheduler creates and resumes behavior executions.
type Scheduler struct {
	env     *scope.Env
	resolve func(module, sub string) (*scope.Scope, error)
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewScheduler builds a scheduler; resolve loads a behavior library's scope
// (normally the loader's Require bound to an engine).
func NewScheduler(env *scope.Env, resolve func(module, sub string) (*scope.Scope, error), log *logging.Logger, metrics *monitoring.Metrics) *Scheduler {
	return &Scheduler{env: env, resolve: resolve, log: log, metrics: metrics}
}

// Invoke implements the free-roam protocol.
//
// A nil or terminal handle creates a brand-new suspended execution of
// sub[method] and returns it without running any of the body. Otherwise the
// execution is resumed repeatedly: yields whose keys are bound in ctx
// advance immediately with the bound value; a recognized-but-unbound key
// advances once per invocation with an empty payload; an unrecognized
// unbound key parks the behavior until a later invocation binds it. A
// failure during resume is fatal to this behavior instance and propagates.
func (s *Scheduler) Invoke(module, sub, method string, h *Handle, ctx map[string]goja.Value) (*Handle, error) {
	if h.Terminal() {
		return s.create(module, sub, method)
	}
	return s.resume(h, ctx)
}

func (s *Scheduler) create(module, sub, method string) (*Handle, error) {
	libScope, err := s.resolve(module, sub)
	if err != nil {
		return nil, err
	}

	tag := module + ":" + sub + "#" + method

	fnVal, ok := libScope.Entry(method)
	if !ok {
		return nil, &fault.InvalidArgumentError{What: fmt.Sprintf("no behavior method %s", tag)}
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, &fault.InvalidArgumentError{What: fmt.Sprintf("behavior method %s is not callable", tag)}
	}

	// Calling a generator function runs none of its body; it hands back a
	// suspended iterator.
	iterVal, err := fn(goja.Undefined())
	if err != nil {
		return nil, loader.WrapExecution(tag, err)
	}
	rt := s.env.Runtime()
	iter := iterVal.ToObject(rt)
	next, ok := goja.AssertFunction(iter.Get("next"))
	if !ok {
		return nil, &fault.InvalidArgumentError{What: fmt.Sprintf("behavior method %s is not suspendable", tag)}
	}

	return &Handle{
		id:    uuid.New(),
		tag:   tag,
		state: StateFresh,
		iter:  iter,
		next:  next,
	}, nil
}

func (s *Scheduler) resume(h *Handle, ctx map[string]goja.Value) (*Handle, error) {
	payload := goja.Value(goja.Undefined())

	if h.state == StateSuspended {
		// Advance past the reason we parked on last time, or stay parked if
		// an extension key is still unbound.
		if v, ok := ctx[h.pending.Key]; ok {
			payload = v
		} else if !h.pending.Recognized() {
			s.metrics.RecordParked()
			return h, nil
		}
	}

	rt := s.env.Runtime()
	for {
		s.metrics.RecordResume()
		res, err := h.next(h.iter, payload)
		if err != nil {
			h.state = StateFailed
			return h, loader.WrapExecution(h.tag, err)
		}

		step := res.ToObject(rt)
		if step.Get("done").ToBoolean() {
			h.state = StateCompleted
			return h, nil
		}

		h.state = StateSuspended
		h.pending = ParseReason(valueKey(step.Get("value")))

		// Bound keys keep the behavior moving inside this invocation.
		if v, ok := ctx[h.pending.Key]; ok {
			payload = v
			continue
		}
		if !h.pending.Recognized() {
			s.metrics.RecordParked()
		}
		return h, nil
	}
}

func valueKey(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
