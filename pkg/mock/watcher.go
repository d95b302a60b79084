package mock

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceDuration coalesces bursts of fixture writes (editors tend
// to write-then-rename) into one change notification.
const DefaultDebounceDuration = 200 * time.Millisecond

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounceDuration = d
		}
	}
}

// WithOnError sets the callback invoked on watch errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// Watcher monitors the fixture directory and signals when any .json file
// changes. One signal per debounce window, however many files changed.
type Watcher struct {
	dir              string
	debounceDuration time.Duration
	onError          func(error)

	fsWatcher *fsnotify.Watcher
	debouncer *debouncer

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
}

// NewWatcher creates a watcher for the given fixture directory.
func NewWatcher(dir string, opts ...WatcherOption) (*Watcher, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		dir:              absDir,
		debounceDuration: DefaultDebounceDuration,
		onError:          func(error) {},
		changeCh:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = newDebouncer(w.debounceDuration)
	return w, nil
}

// Start begins watching. Idempotent while running.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		_ = fsw.Close()
		return err
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.fsWatcher = fsw
	w.started = true
	go w.watch(fsw)
	return nil
}

// Stop stops watching. The change channel is deliberately left open;
// readers should select on it together with their own shutdown signal.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}
	w.cancel()
	_ = w.fsWatcher.Close()
	w.fsWatcher = nil
	w.debouncer.cancel()
	w.started = false
}

// Changed returns a channel that receives after fixture files change.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

func (w *Watcher) watch(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				w.debouncer.trigger(w.notifyChange)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) notifyChange() {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if !started {
		return
	}
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}

// debouncer delays a callback until triggers stop arriving for the
// configured duration. Each trigger resets the timer.
type debouncer struct {
	mu       sync.Mutex
	duration time.Duration
	timer    *time.Timer
}

func newDebouncer(duration time.Duration) *debouncer {
	if duration <= 0 {
		duration = DefaultDebounceDuration
	}
	return &debouncer{duration: duration}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, fn)
}

func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
