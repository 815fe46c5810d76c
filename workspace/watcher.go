package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// UpdateFunc receives each document reparsed by a Watcher. doc is nil when
// the file was removed.
type UpdateFunc func(path string, doc *Document, err error)

// Watcher reparses open documents when their files change on disk.
type Watcher struct {
	ws        *Workspace
	fsWatcher *fsnotify.Watcher
	debounce  time.Duration
	onUpdate  UpdateFunc
	done      chan struct{}
	stopped   chan struct{}
}

func NewWatcher(ws *Workspace, debounce time.Duration, onUpdate UpdateFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if onUpdate == nil {
		onUpdate = func(string, *Document, error) {}
	}
	return &Watcher{
		ws:        ws,
		fsWatcher: fsw,
		debounce:  debounce,
		onUpdate:  onUpdate,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}, nil
}

// Start watches the directories of the given paths and of every open
// document.
func (w *Watcher) Start(ctx context.Context, paths ...string) error {
	dirs := make(map[string]bool)
	for _, path := range append(paths, w.ws.Paths()...) {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("watching directory %s: %w", dir, err)
		}
	}
	go w.loop(ctx)
	return nil
}

// Stop terminates the watcher and waits for pending updates to finish.
func (w *Watcher) Stop() error {
	close(w.done)
	err := w.fsWatcher.Close()
	<-w.stopped
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.stopped)
	var timer *time.Timer
	pending := make(map[string]bool)

	for {
		var fire <-chan time.Time
		if timer != nil {
			fire = timer.C
		}
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			pending[filepath.Clean(event.Name)] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			w.flush(ctx, pending)
			clear(pending)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warningf("watch error: %s", err)

		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	_, ok := w.ws.LanguageFor(event.Name)
	return ok
}

func (w *Watcher) flush(ctx context.Context, pending map[string]bool) {
	paths := make([]string, 0, len(pending))
	for path := range pending {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		text, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			w.ws.Close(path)
			log.Infof("closed %s", path)
			w.onUpdate(path, nil, nil)
			continue
		}
		if err != nil {
			w.onUpdate(path, nil, err)
			continue
		}
		doc, err := w.ws.Update(ctx, path, text)
		if err == nil {
			log.Infof("updated %s (version %d, %d changed ranges)", path, doc.Version, len(doc.LastChanges))
		}
		w.onUpdate(path, doc, err)
	}
}
