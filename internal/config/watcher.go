package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"pkt.systems/pslog"

	"github.com/dshills/termmark/internal/logging"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// ReloadHandler receives each successfully reloaded Config.
type ReloadHandler func(Config)

// Watcher reloads a config file when it changes on disk.
//
// The parent directory is watched rather than the file, so editors that
// replace the file by rename are seen. Bursts of events are coalesced into
// one reload after the debounce period. A reload that fails to parse or
// validate is logged and the previous config stays in effect.
type Watcher struct {
	mu sync.Mutex

	path     string
	loadOpts []Option
	debounce time.Duration
	logger   pslog.Logger

	fsw      *fsnotify.Watcher
	handlers []ReloadHandler
	timer    *time.Timer

	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration for rapid changes.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the logger used for reload failures.
func WithWatcherLogger(l pslog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithLoadOptions sets extra options passed to Load on every reload.
func WithLoadOptions(opts ...Option) WatcherOption {
	return func(w *Watcher) {
		w.loadOpts = append(w.loadOpts, opts...)
	}
}

// NewWatcher starts watching path. The handler runs on the watcher's
// goroutine after each successful reload.
func NewWatcher(path string, handler ReloadHandler, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     absPath,
		debounce: DefaultDebounce,
		logger:   logging.Discard(),
		closeCh:  make(chan struct{}),
	}
	if handler != nil {
		w.handlers = append(w.handlers, handler)
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.processLoop()

	return w, nil
}

// Path returns the absolute path of the watched file.
func (w *Watcher) Path() string {
	return w.path
}

// OnReload registers another handler.
func (w *Watcher) OnReload(handler ReloadHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.closeCh)
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsw.Close()
}

// processLoop handles incoming fsnotify events.
func (w *Watcher) processLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.schedule()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watch error", "path", w.path, "err", err)
		}
	}
}

// schedule arms or re-arms the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// reload loads the file and delivers the result to every handler.
func (w *Watcher) reload() {
	opts := append([]Option{WithFile(w.path)}, w.loadOpts...)
	cfg, err := Load(opts...)
	if err != nil {
		w.logger.Warn("config reload failed", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	handlers := make([]ReloadHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path)
	for _, h := range handlers {
		w.safeCallHandler(h, cfg)
	}
}

// safeCallHandler calls a handler with panic recovery.
func (w *Watcher) safeCallHandler(h ReloadHandler, cfg Config) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("config reload handler panicked", "panic", r)
		}
	}()
	h(cfg)
}
