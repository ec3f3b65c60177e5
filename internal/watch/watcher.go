// Package watch drives a source.FileSource's incremental rebuilds as
// its underlying file grows, at the caller's requested cadence. It
// pairs an fsnotify event loop with a polling fallback for platforms
// where write events aren't reliably delivered for every append; the
// ticker path is also used, unconditionally, as a low-frequency safety
// net in case an editor replaces rather than appends to a watched
// file, which some filesystems report as a rename+create pair
// fsnotify can miss.
package watch

import (
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Refresher is anything whose backing file may have grown. It matches
// source.FileSource.Refresh's shape without importing internal/source,
// keeping this package usable against any similarly-shaped watched
// target.
type Refresher interface {
	Refresh() (int, error)
	Path() string
}

// Watcher polls one or more Refreshers, notifying a callback whenever a
// refresh reports newly indexed lines.
type Watcher struct {
	fsw          *fsnotify.Watcher
	tickInterval time.Duration
	log          *slog.Logger

	mu        sync.Mutex
	targets   map[string]Refresher
	onNewLine func(path string, newLines int)
	onError   func(path string, err error)

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Watcher with the given ticker fallback interval.
func New(tickInterval time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:          fsw,
		tickInterval: tickInterval,
		log:          slog.Default().With("component", "watch"),
		targets:      make(map[string]Refresher),
		stop:         make(chan struct{}),
	}, nil
}

// OnNewLines registers the callback invoked after a successful refresh
// that appended lines.
func (w *Watcher) OnNewLines(fn func(path string, newLines int)) { w.onNewLine = fn }

// OnError registers the callback invoked when a refresh fails.
func (w *Watcher) OnError(fn func(path string, err error)) { w.onError = fn }

// Add starts watching r's file, both via fsnotify and the ticker
// fallback.
func (w *Watcher) Add(r Refresher) error {
	w.mu.Lock()
	w.targets[r.Path()] = r
	w.mu.Unlock()

	dir := filepath.Dir(r.Path())
	return w.fsw.Add(dir)
}

// Remove stops watching r's file.
func (w *Watcher) Remove(r Refresher) {
	w.mu.Lock()
	delete(w.targets, r.Path())
	w.mu.Unlock()
}

// Run starts the event loop; call in a goroutine. Returns when Close is
// called.
func (w *Watcher) Run() {
	w.wg.Add(1)
	defer w.wg.Done()

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Chmod) {
				w.refresh(ev.Name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Debug("fsnotify error", "err", err)

		case <-ticker.C:
			w.refreshAll()
		}
	}
}

func (w *Watcher) refresh(path string) {
	w.mu.Lock()
	r, ok := w.targets[path]
	w.mu.Unlock()
	if !ok {
		return
	}
	w.doRefresh(r)
}

func (w *Watcher) refreshAll() {
	w.mu.Lock()
	targets := make([]Refresher, 0, len(w.targets))
	for _, r := range w.targets {
		targets = append(targets, r)
	}
	w.mu.Unlock()

	for _, r := range targets {
		w.doRefresh(r)
	}
}

func (w *Watcher) doRefresh(r Refresher) {
	newLines, err := r.Refresh()
	if err != nil {
		if w.onError != nil {
			w.onError(r.Path(), err)
		}
		return
	}
	if newLines > 0 && w.onNewLine != nil {
		w.onNewLine(r.Path(), newLines)
	}
}

// Close stops the event loop and releases the fsnotify watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	w.wg.Wait()
	return w.fsw.Close()
}
