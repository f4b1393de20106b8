// Package watcher turns filesystem events into cache/index invalidations.
// Writes invalidate the file's cached analysis; removals and renames drop
// it from the reverse index entirely.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mkowalski/depspider/internal/fspath"
)

// Hooks are the callbacks the watcher drives. Both receive normalized paths.
type Hooks struct {
	Invalidate func(path string) // file content changed
	Remove     func(path string) // file deleted or renamed away
}

// Watcher wraps an fsnotify watcher over a workspace tree.
type Watcher struct {
	fs     *fsnotify.Watcher
	hooks  Hooks
	logger *slog.Logger
}

// New creates a Watcher watching root and all its subdirectories.
func New(root string, hooks Hooks, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{fs: fw, hooks: hooks, logger: logger}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// addTree registers root and every subdirectory. fsnotify watches are not
// recursive.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if name := d.Name(); name != filepath.Base(root) && (name == ".git" || name == "node_modules") {
				return filepath.SkipDir
			}
			if err := w.fs.Add(path); err != nil {
				w.logger.Warn("watch add failed", "dir", path, "error", err)
			}
		}
		return nil
	})
}

// Run dispatches events until ctx is cancelled or the watcher closes.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			path := fspath.Normalize(ev.Name)
			switch {
			case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
				if w.hooks.Remove != nil {
					w.hooks.Remove(path)
				}
			case ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create):
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					// New directories need their own watch.
					_ = w.fs.Add(ev.Name)
					continue
				}
				if w.hooks.Invalidate != nil {
					w.hooks.Invalidate(path)
				}
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
