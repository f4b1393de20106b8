package depspider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkowalski/depspider/internal/collector"
	"github.com/mkowalski/depspider/internal/fspath"
	"github.com/mkowalski/depspider/internal/persist"
	"github.com/mkowalski/depspider/internal/status"
)

// IndexResult summarizes a full-workspace indexing run. DurationMs is wall
// time in milliseconds, matching the field name consumers see on the wire.
type IndexResult struct {
	Processed  int      `json:"processedCount"`
	Total      int      `json:"totalCount"`
	DurationMs int64    `json:"durationMs"`
	Cancelled  bool     `json:"cancelled"`
	Failed     []string `json:"failed,omitempty"`
}

// CancelIndex requests cooperative cancellation of an in-flight full-index
// run. The flag stays set until the next run resets it.
func (s *Spider) CancelIndex() {
	s.cancel.Cancel()
}

// BuildFullIndex enumerates every supported file under the root and
// analyzes them with a bounded worker pool, updating the status tracker
// after each batch. onProgress, when non-nil, receives the same snapshots.
//
// Cancellation — via ctx or CancelIndex — returns whatever completed with
// Cancelled set, never an error and never a partially-updated entry:
// per-file commits are atomic.
func (s *Spider) BuildFullIndex(ctx context.Context, onProgress func(IndexerSnapshot)) (*IndexResult, error) {
	start := time.Now()
	s.cancel.Reset()
	s.tracker.Reset()

	// Tie the cancel flag into the context so the collector and workers
	// observe either signal.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	done := s.cancel.Done()
	go func() {
		select {
		case <-done:
			stop()
		case <-runCtx.Done():
		}
	}()

	report := func(snap IndexerSnapshot) {
		s.tracker.Set(snap)
		if onProgress != nil {
			onProgress(snap)
		}
	}

	report(IndexerSnapshot{Phase: status.PhaseCounting})
	files := s.collector.Collect(runCtx, s.root, collector.Options{IncludeDependencyDirs: s.includeDepDirs})
	total := len(files)

	var (
		mu        sync.Mutex
		processed int
		failed    []string
	)
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(s.concurrency)

	report(IndexerSnapshot{Phase: status.PhaseIndexing, Total: total})
	for _, file := range files {
		if gctx.Err() != nil || s.cancel.Cancelled() {
			break
		}
		file := file
		g.Go(func() error {
			if gctx.Err() != nil || s.cancel.Cancelled() {
				return nil
			}
			_, err := s.Analyze(gctx, file)

			mu.Lock()
			processed++
			if err != nil {
				failed = append(failed, file)
				s.logger.Warn("index: analysis failed", "file", file, "error", err)
			}
			n := processed
			mu.Unlock()

			if n%s.batchSize == 0 || n == total {
				report(IndexerSnapshot{
					Phase:       status.PhaseIndexing,
					Processed:   n,
					Total:       total,
					CurrentFile: file,
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &IndexResult{
		Processed:  processed,
		Total:      total,
		DurationMs: time.Since(start).Milliseconds(),
		Cancelled:  s.cancel.Cancelled() || ctx.Err() != nil,
		Failed:     failed,
	}
	report(IndexerSnapshot{Phase: status.PhaseComplete, Processed: processed, Total: total})
	return result, nil
}

// MergeIndexData merges per-file dependency results produced by an
// isolated indexing context into this Spider's cache and reverse index.
// Sources merge commutatively; the per-source commit is atomic. Sources
// present only in metas carry zero dependencies but keep their identity
// for staleness checks.
func (s *Spider) MergeIndexData(results map[string][]Dependency, metas map[string]FileMeta) {
	for source, deps := range results {
		s.commit(source, deps, metas[source])
	}
	for source, meta := range metas {
		if _, ok := results[source]; !ok {
			s.commit(source, nil, meta)
		}
	}
}

// IndexData exports the per-file dependency lists and source identities
// currently held by the reverse index, the payload an isolated context
// hands back to its owner. Metas covers every analyzed source, including
// those with zero dependencies.
func (s *Spider) IndexData() (map[string][]Dependency, map[string]FileMeta) {
	return s.index.Entries(), s.index.Metas()
}

// SaveIndex persists the current reverse index to a SQLite snapshot at
// dbPath.
func (s *Spider) SaveIndex(dbPath string) error {
	store, err := persist.NewStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return err
	}
	deps, metas := s.IndexData()
	return store.Save(persist.Snapshot{Root: s.root, Deps: deps, Sources: metas})
}

// LoadIndex restores a persisted snapshot from dbPath. Returns false when
// no snapshot exists or it was built for a different root.
func (s *Spider) LoadIndex(dbPath string) (bool, error) {
	store, err := persist.NewStore(dbPath)
	if err != nil {
		return false, err
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return false, err
	}
	snap, err := store.Load(s.root)
	if err != nil {
		return false, err
	}
	if snap == nil {
		return false, nil
	}
	for source, deps := range snap.Deps {
		s.commit(fspath.Normalize(source), deps, snap.Sources[source])
	}
	// Sources with zero dependencies still carry staleness metadata.
	for source, meta := range snap.Sources {
		if _, ok := snap.Deps[source]; !ok {
			s.commit(fspath.Normalize(source), nil, meta)
		}
	}
	return true, nil
}
