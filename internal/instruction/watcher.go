package instruction

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates the store's caches when agent definitions change on
// disk, so edits take effect without a restart.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
}

// Watch starts watching the store's config directory. Invalidation runs
// until the context is cancelled or Close is called.
func Watch(ctx context.Context, store *Store) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fs watcher: %w", err)
	}

	dirs := []string{
		store.dir,
		filepath.Join(store.dir, "prompts"),
		filepath.Join(store.dir, "knowledge"),
	}
	for _, d := range dirs {
		// Missing optional subdirectories are not fatal.
		_ = fw.Add(d)
	}

	w := &Watcher{store: store, watcher: fw}
	go w.run(ctx)
	return w, nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.store.Invalidate()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
