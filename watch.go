package depspider

import (
	"context"
	"path/filepath"

	"github.com/mkowalski/depspider/internal/watcher"
)

// Watch keeps the caches and reverse index current with filesystem
// changes: writes invalidate the file's cached analysis, deletions drop
// the file and its edges. Blocks until ctx is cancelled.
func (s *Spider) Watch(ctx context.Context) error {
	w, err := watcher.New(filepath.FromSlash(s.root), watcher.Hooks{
		Invalidate: s.Invalidate,
		Remove:     s.RemoveFile,
	}, s.logger)
	if err != nil {
		return err
	}
	defer w.Close()
	s.logger.Info("watching workspace", "root", s.root)
	w.Run(ctx)
	return nil
}
