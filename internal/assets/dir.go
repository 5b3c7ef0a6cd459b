package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pelletier/go-toml/v2"
)

// Manifest describes one module directory. Kept deliberately small; the
// sandbox only needs a name and where the scripts live.
type Manifest struct {
	Name    string `toml:"name"`
	Scripts string `toml:"scripts"`
}

const (
	manifestFile   = "module.toml"
	scriptExt      = ".js"
	defaultScripts = "scripts"
)

// DirStore serves scripts from a directory tree of module packs:
//
//	<root>/<dir>/module.toml
//	<root>/<dir>/scripts/<path>.js
type DirStore struct {
	root string

	mu      sync.Mutex
	modules map[string]string // module name -> absolute module dir
	scripts map[string]string // module name -> scripts subdir
	watched map[[2]string]time.Time
}

// NewDirStore scans root for module manifests and returns a store serving
// every module found.
func NewDirStore(root string) (*DirStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve asset root: %w", err)
	}

	s := &DirStore{
		root:    abs,
		modules: map[string]string{},
		scripts: map[string]string{},
		watched: map[[2]string]time.Time{},
	}

	matches, err := doublestar.Glob(os.DirFS(abs), "*/"+manifestFile)
	if err != nil {
		return nil, fmt.Errorf("scan asset root: %w", err)
	}
	for _, m := range matches {
		dir := path.Dir(m)
		data, err := os.ReadFile(filepath.Join(abs, filepath.FromSlash(m)))
		if err != nil {
			return nil, fmt.Errorf("read manifest %s: %w", m, err)
		}
		var manifest Manifest
		if err := toml.Unmarshal(data, &manifest); err != nil {
			return nil, fmt.Errorf("parse manifest %s: %w", m, err)
		}
		name := manifest.Name
		if name == "" {
			name = dir
		}
		scripts := manifest.Scripts
		if scripts == "" {
			scripts = defaultScripts
		}
		s.modules[name] = filepath.Join(abs, filepath.FromSlash(dir))
		s.scripts[name] = scripts
	}
	return s, nil
}

// Modules lists the module names the store can serve.
func (s *DirStore) Modules() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.modules))
	for name := range s.modules {
		names = append(names, name)
	}
	return names
}

// Fetch implements Store. The resolved file must stay under the module's
// script root; anything else is reported as missing rather than served.
func (s *DirStore) Fetch(module, p string) (string, error) {
	file, ok := s.resolve(module, p)
	if !ok {
		return "", NotFound(module, p)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return "", NotFound(module, p)
		}
		return "", fmt.Errorf("read script %s:%s: %w", module, p, err)
	}

	s.mu.Lock()
	if t, ok := s.modTime(file); ok {
		s.watched[[2]string{module, p}] = t
	}
	s.mu.Unlock()
	return string(data), nil
}

// ModifiedTime implements Store.
func (s *DirStore) ModifiedTime(module, p string) (time.Time, bool) {
	file, ok := s.resolve(module, p)
	if !ok {
		return time.Time{}, false
	}
	return s.modTime(file)
}

// Watched implements Watchable.
func (s *DirStore) Watched() []WatchedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WatchedFile, 0, len(s.watched))
	for key, t := range s.watched {
		out = append(out, WatchedFile{Module: key[0], Path: key[1], ModTime: t})
	}
	return out
}

func (s *DirStore) modTime(file string) (time.Time, bool) {
	info, err := os.Stat(file)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// resolve maps a module-relative script path to an absolute file, refusing
// anything outside the module's script root.
func (s *DirStore) resolve(module, p string) (string, bool) {
	s.mu.Lock()
	dir, ok := s.modules[module]
	scripts := s.scripts[module]
	s.mu.Unlock()
	if !ok {
		return "", false
	}

	if p == "" || strings.Contains(p, "..") || strings.HasPrefix(p, "/") {
		return "", false
	}
	scriptRoot := filepath.Join(dir, scripts)
	file := filepath.Join(scriptRoot, filepath.FromSlash(p)+scriptExt)
	if !strings.HasPrefix(file, scriptRoot+string(filepath.Separator)) {
		return "", false
	}
	return file, true
}

// FSStore serves scripts from an fs.FS, one directory per module. It exists
// for embedding base packs and for tests.
type FSStore struct {
	fsys fs.FS
}

// NewFSStore wraps fsys, expecting <module>/<path>.js entries.
func NewFSStore(fsys fs.FS) *FSStore {
	return &FSStore{fsys: fsys}
}

// Fetch implements Store.
func (s *FSStore) Fetch(module, p string) (string, error) {
	if p == "" || strings.Contains(p, "..") {
		return "", NotFound(module, p)
	}
	data, err := fs.ReadFile(s.fsys, path.Join(module, p)+scriptExt)
	if err != nil {
		return "", NotFound(module, p)
	}
	return string(data), nil
}

// ModifiedTime implements Store. fs.FS content is treated as static.
func (s *FSStore) ModifiedTime(module, p string) (time.Time, bool) {
	return time.Time{}, false
}
