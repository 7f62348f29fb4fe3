// Package folderwatcher implements the FolderWatcher external collaborator
// add/remove watched directories, emitting changed(path) when a
// watched directory's contents change.
package folderwatcher

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_folderwatcher.go -package=mocks localdocs/internal/folderwatcher Watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"localdocs/internal/contextutil"
)

// Watcher is the interface the coordinator depends on, exposing
// add/remove/changed contract.
type Watcher interface {
	Add(path string) bool
	Remove(path string) bool
	Changes() <-chan string
	Close() error
}

// FSWatcher watches directories with fsnotify and reports any event inside
// a watched directory as a change to that directory (the coordinator
// re-walks the whole folder on a change, so individual file-level detail
// is not preserved).
type FSWatcher struct {
	watcher *fsnotify.Watcher
	changes chan string

	mu      sync.Mutex
	watched map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New starts a watcher whose background loop runs until ctx is done or
// Close is called.
func New(ctx context.Context) (*FSWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	fw := &FSWatcher{
		watcher: w,
		changes: make(chan string, 100),
		watched: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

// Add registers path for change notifications. Returns false if the
// directory could not be watched (missing, unreadable).
func (w *FSWatcher) Add(path string) bool {
	if err := w.watcher.Add(path); err != nil {
		return false
	}
	w.mu.Lock()
	w.watched[path] = struct{}{}
	w.mu.Unlock()
	return true
}

// Remove unregisters path. Returns false if it was not being watched.
func (w *FSWatcher) Remove(path string) bool {
	w.mu.Lock()
	_, ok := w.watched[path]
	delete(w.watched, path)
	w.mu.Unlock()
	if !ok {
		return false
	}
	_ = w.watcher.Remove(path)
	return true
}

// Changes returns the channel of changed directory paths.
func (w *FSWatcher) Changes() <-chan string {
	return w.changes
}

// Close stops the watcher and its background loop.
func (w *FSWatcher) Close() error {
	w.cancel()
	<-w.done
	return w.watcher.Close()
}

func (w *FSWatcher) loop() {
	defer close(w.done)
	logger := contextutil.LoggerFromContext(w.ctx)

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			dir := w.dirFor(event.Name)
			if dir == "" {
				continue
			}
			select {
			case w.changes <- dir:
			case <-w.ctx.Done():
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("folder watcher error", slog.Any("error", err))
		}
	}
}

// dirFor resolves a raw fsnotify event path to the watched directory it
// belongs to: either the path itself (if it is a watched directory) or its
// immediate parent (if a file inside a watched directory changed).
func (w *FSWatcher) dirFor(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.watched[path]; ok {
		return path
	}
	parent := filepath.Dir(path)
	if _, ok := w.watched[parent]; ok {
		return parent
	}
	return ""
}
