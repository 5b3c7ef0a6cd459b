// Package assets resolves module script paths to source text.
//
// The sandbox's loader treats the store as an untrusted-input boundary: the
// loader sanitizes paths before asking, and the store independently refuses
// anything that would escape a module's script root.
package assets

import (
	"time"

	"github.com/Thinkofname/UniverCity/internal/script/fault"
)

// Store serves script source for the loader.
type Store interface {
	// Fetch returns the source text for a module-relative script path.
	// A missing script is reported as *fault.ScriptNotFoundError.
	Fetch(module, path string) (string, error)

	// ModifiedTime reports the last modification time for a script, if the
	// backing storage can know it. Used by the reload watcher.
	ModifiedTime(module, path string) (time.Time, bool)
}

// WatchedFile is one script the store has served, remembered for the
// reload watcher.
type WatchedFile struct {
	Module  string
	Path    string
	ModTime time.Time
}

// Watchable is implemented by stores that track which scripts they served.
type Watchable interface {
	Store
	// Watched snapshots every script served so far with the modification
	// time observed when it was fetched.
	Watched() []WatchedFile
}

// NotFound builds the canonical missing-script error.
func NotFound(module, path string) error {
	return &fault.ScriptNotFoundError{Module: module, Path: path}
}
