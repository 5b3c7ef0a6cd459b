package assets

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/Thinkofname/UniverCity/internal/logging"
)

// Watcher polls a watchable store for script modifications and reports the
// modules that changed. It replaces the original tick-counting reload check
// with a rate-limited poll so a large pack cannot stat-storm the disk.
// Scans may run from any goroutine; the observed-state map is guarded.
type Watcher struct {
	store   Watchable
	log     *logging.Logger
	limiter *rate.Limiter

	mu   sync.Mutex
	seen map[[2]string]int64 // unix nanos of last observed mod time
}

// NewWatcher creates a watcher polling at most once per interval given by
// the limiter. A typical embedding uses rate.Every(2 * time.Second).
func NewWatcher(store Watchable, log *logging.Logger, limiter *rate.Limiter) *Watcher {
	return &Watcher{
		store:   store,
		log:     log,
		limiter: limiter,
		seen:    map[[2]string]int64{},
	}
}

// Run polls until ctx is cancelled, invoking reload with each module whose
// scripts changed since the previous poll. reload runs on the watcher's
// goroutine; callers route it onto whichever goroutine owns the engine.
func (w *Watcher) Run(ctx context.Context, reload func(module string)) error {
	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		for _, module := range w.Scan() {
			reload(module)
		}
	}
}

// Scan performs one poll pass and returns modules with changed scripts.
func (w *Watcher) Scan() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	changed := map[string]bool{}
	for _, f := range w.store.Watched() {
		key := [2]string{f.Module, f.Path}
		now, ok := w.store.ModifiedTime(f.Module, f.Path)
		if !ok {
			continue
		}
		prev, seen := w.seen[key]
		if !seen {
			w.seen[key] = f.ModTime.UnixNano()
			prev = f.ModTime.UnixNano()
		}
		if now.UnixNano() != prev {
			w.seen[key] = now.UnixNano()
			changed[f.Module] = true
		}
	}

	out := make([]string, 0, len(changed))
	for m := range changed {
		w.log.WithModule(m).Info("scripts changed on disk")
		out = append(out, m)
	}
	return out
}
