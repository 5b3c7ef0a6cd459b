// Package mission tracks the mission scripts modules register.
//
// The registry owns both views the host needs behind defined accessors: the
// ordered sequence (registration order, for menus and iteration) and the
// name index keyed by canonical namespaced name.
package mission

import (
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/Thinkofname/UniverCity/internal/script/fault"
)

// Mission is one registered mission entry.
type Mission struct {
	// Module is the module that registered the mission.
	Module string
	// Name is the declared mission name, possibly already namespaced.
	Name string
	// Handler references the library that drives the mission,
	// "library#method" style.
	Handler string
	// Description is shown to players when picking a mission.
	Description string
	// SaveKey names the save-file slot for the mission's state.
	SaveKey string
}

// Key returns the canonical namespaced key: module:name, unless the
// declared name already carries a namespace separator.
func (m Mission) Key() string {
	if strings.ContainsRune(m.Name, ':') {
		return m.Name
	}
	return m.Module + ":" + m.Name
}

// Registry holds every mission registered by loaded modules.
type Registry struct {
	mu      sync.Mutex
	ordered []string
	byName  map[string]Mission
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: map[string]Mission{}}
}

// Register validates and stores a mission. Registering the same canonical
// key again replaces the entry in place, keeping its original order slot;
// hot reload re-runs registrations and must not duplicate missions.
func (r *Registry) Register(m Mission) error {
	switch {
	case m.Name == "":
		return &fault.MissingRequiredFieldError{What: "mission", Field: "name"}
	case m.Handler == "":
		return &fault.MissingRequiredFieldError{What: "mission", Field: "handler"}
	case m.Description == "":
		return &fault.MissingRequiredFieldError{What: "mission", Field: "description"}
	case m.SaveKey == "":
		return &fault.MissingRequiredFieldError{What: "mission", Field: "save_key"}
	}

	key := m.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[key]; !exists {
		r.ordered = append(r.ordered, key)
	}
	r.byName[key] = m
	return nil
}

// Get resolves a mission by canonical key.
func (r *Registry) Get(key string) (Mission, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byName[key]
	return m, ok
}

// All returns missions in registration order.
func (r *Registry) All() []Mission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Mission, 0, len(r.ordered))
	for _, key := range r.ordered {
		out = append(out, r.byName[key])
	}
	return out
}

// ParseEntry reads a mission from the table a script passed to
// register_mission.
func ParseEntry(module string, table *goja.Object) Mission {
	get := func(name string) string {
		v := table.Get(name)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return ""
		}
		return v.String()
	}
	return Mission{
		Module:      module,
		Name:        get("name"),
		Handler:     get("handler"),
		Description: get("description"),
		SaveKey:     get("save_key"),
	}
}
