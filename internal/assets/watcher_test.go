package assets

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Thinkofname/UniverCity/internal/logging"
)

// fakeWatchable hands out modification times from memory so scan behavior
// can be tested without touching the disk.
type fakeWatchable struct {
	times map[[2]string]time.Time
}

func (f *fakeWatchable) Fetch(module, path string) (string, error) {
	return "", nil
}

func (f *fakeWatchable) ModifiedTime(module, path string) (time.Time, bool) {
	t, ok := f.times[[2]string{module, path}]
	return t, ok
}

func (f *fakeWatchable) Watched() []WatchedFile {
	out := make([]WatchedFile, 0, len(f.times))
	for key, t := range f.times {
		out = append(out, WatchedFile{Module: key[0], Path: key[1], ModTime: t})
	}
	return out
}

func TestWatcherScan(t *testing.T) {
	base := time.Now()
	store := &fakeWatchable{times: map[[2]string]time.Time{
		{"base", "init"}:    base,
		{"base", "ui/menu"}: base,
		{"extra", "init"}:   base,
	}}
	w := NewWatcher(store, logging.NewNop(), rate.NewLimiter(rate.Inf, 1))

	// First pass only learns the current state.
	assert.Empty(t, w.Scan())
	assert.Empty(t, w.Scan())

	// One touched script flags its module once.
	store.times[[2]string{"base", "ui/menu"}] = base.Add(time.Second)
	assert.Equal(t, []string{"base"}, w.Scan())
	assert.Empty(t, w.Scan())

	// Touches in different modules are reported per module.
	store.times[[2]string{"base", "init"}] = base.Add(2 * time.Second)
	store.times[[2]string{"extra", "init"}] = base.Add(2 * time.Second)
	changed := w.Scan()
	assert.ElementsMatch(t, []string{"base", "extra"}, changed)
}

func TestWatcherConcurrentScans(t *testing.T) {
	base := time.Now()
	store := &fakeWatchable{times: map[[2]string]time.Time{
		{"base", "init"}: base,
	}}
	w := NewWatcher(store, logging.NewNop(), rate.NewLimiter(rate.Inf, 1))
	require.Empty(t, w.Scan())

	store.times[[2]string{"base", "init"}] = base.Add(time.Second)

	// Scans from multiple goroutines share the observed-state map; the
	// change is reported by exactly one of them.
	results := make(chan int, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- len(w.Scan())
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for n := range results {
		total += n
	}
	assert.Equal(t, 1, total)
}

func TestWatcherSkipsUnknowableTimes(t *testing.T) {
	base := time.Now()
	store := &fakeWatchable{times: map[[2]string]time.Time{
		{"base", "init"}: base,
	}}
	w := NewWatcher(store, logging.NewNop(), rate.NewLimiter(rate.Inf, 1))
	require.Empty(t, w.Scan())

	// A script whose time can no longer be read is skipped, not reported.
	delete(store.times, [2]string{"base", "init"})
	assert.Empty(t, w.Scan())
}
