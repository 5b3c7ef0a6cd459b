package loader

import (
	"errors"
	"sort"

	"go.uber.org/zap"
)

// ErrModuleNotLoaded is returned when Reload is asked for a module that
// never had a scope created.
var ErrModuleNotLoaded = errors.New("module not loaded")

// Reload re-executes the module's reloadable libraries against a fresh
// cache. Entries flagged non-reloadable are carried over by identity. A
// library that fails to come back is logged and rolled back to its previous
// entry; one broken script never aborts the reload of its siblings and the
// reload itself reports success for the module as a whole.
//
// "init" is just a library keyed "init" and follows the same rule.
func (m *Manager) Reload(moduleID string, clear func(moduleID string)) error {
	m.mu.Lock()
	mod, ok := m.modules[moduleID]
	m.mu.Unlock()
	if !ok {
		return ErrModuleNotLoaded
	}

	if clear != nil {
		clear(moduleID)
	}
	m.metrics.RecordReload(moduleID)
	log := m.log.WithModule(moduleID)

	mod.mu.Lock()
	old := mod.libs
	mod.libs = make(map[string]*Entry, len(old))

	// Reload is opt-out per library.
	var pending []string
	for path, entry := range old {
		if !entry.Reloadable {
			mod.libs[path] = entry
			continue
		}
		pending = append(pending, path)
	}
	mod.mu.Unlock()
	sort.Strings(pending)

	for _, path := range pending {
		// Cache keys are already normalized; going back through Require
		// would sanitize them a second time and mangle slashed paths.
		if _, err := m.load(mod, path); err != nil {
			log.Warn("library reload failed, keeping previous version",
				zap.String("path", path),
				zap.Error(err),
			)
			m.metrics.RecordRollback(moduleID)
			mod.mu.Lock()
			mod.libs[path] = old[path]
			mod.mu.Unlock()
			continue
		}
		log.Debug("library reloaded", zap.String("path", path))
	}
	return nil
}
