// Package filewatcher notifies subscribers when a single file changes,
// debouncing the rapid event bursts editors and atomic-save tools emit.
package filewatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event describes one (debounced) change to the watched file.
type Event struct {
	Path      string
	Timestamp time.Time
	Err       error
}

// Handler receives change events. Handlers run on their own goroutine
// and must not block forever.
type Handler func(Event)

// Watcher monitors one file and notifies handlers after a debounce
// window. It watches the parent directory rather than the file itself
// so atomic saves (write to temp, rename over target) are still seen.
type Watcher struct {
	fs       *fsnotify.Watcher
	path     string
	debounce time.Duration

	mu       sync.RWMutex
	handlers []Handler
}

// New creates a watcher for the given file with the specified debounce
// window.
func New(path string, debounce time.Duration) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("filewatcher: resolve path: %w", err)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("filewatcher: %w", err)
	}

	if err := fs.Add(filepath.Dir(absPath)); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("filewatcher: watch %s: %w", filepath.Dir(absPath), err)
	}

	return &Watcher{
		fs:       fs,
		path:     absPath,
		debounce: debounce,
	}, nil
}

// Subscribe registers a handler for change events.
func (w *Watcher) Subscribe(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// Run watches until the context is canceled. Blocking; run it in a
// goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	pending := make(chan struct{}, 1)
	go w.drain(ctx, pending)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return fmt.Errorf("filewatcher: events channel closed")
			}

			eventPath, err := filepath.Abs(event.Name)
			if err != nil || eventPath != w.path {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			select {
			case pending <- struct{}{}:
			default:
				// A notification is already queued
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return fmt.Errorf("filewatcher: errors channel closed")
			}
			w.notify(Event{Path: w.path, Timestamp: time.Now(), Err: err})
		}
	}
}

// drain collapses queued changes into one notification per debounce
// window.
func (w *Watcher) drain(ctx context.Context, pending <-chan struct{}) {
	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case <-pending:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				w.notify(Event{Path: w.path, Timestamp: time.Now()})
			})
		}
	}
}

func (w *Watcher) notify(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, h := range w.handlers {
		go h(event)
	}
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
