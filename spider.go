package depspider

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mkowalski/depspider/internal/cache"
	"github.com/mkowalski/depspider/internal/collector"
	"github.com/mkowalski/depspider/internal/fspath"
	"github.com/mkowalski/depspider/internal/model"
	"github.com/mkowalski/depspider/internal/parser"
	"github.com/mkowalski/depspider/internal/resolver"
	"github.com/mkowalski/depspider/internal/revindex"
	"github.com/mkowalski/depspider/internal/status"
)

// FileParser is the per-language fact extraction capability the Spider
// consumes. The default is the tree-sitter implementation in
// internal/parser; hosts with their own AST layer can substitute it.
type FileParser interface {
	// ParseImports returns the raw import records found in content.
	ParseImports(path string, content []byte) ([]ImportRecord, error)
	// ParseSymbols returns the declared symbols and lexical references.
	ParseSymbols(path string, content []byte) (*SymbolGraph, error)
}

// Spider orchestrates dependency analysis for one workspace root. Its
// cache, reverse index, status tracker, and cancellation flag belong to it
// alone; two Spiders never share these structures.
type Spider struct {
	root      string
	parser    FileParser
	resolver  *resolver.Resolver
	collector *collector.Collector
	logger    *slog.Logger

	depCache *cache.Cache[[]Dependency]
	symCache *cache.Cache[*SymbolGraph]
	index    *revindex.Index
	tracker  *status.Tracker
	cancel   *CancelFlag

	// commitMu sequences cache+index commits so concurrent re-analysis of
	// the same file cannot interleave edge removal with insertion.
	commitMu sync.Mutex

	// opts preserves construction options so background pipelines can
	// build an identically-configured isolated Spider.
	opts []Option

	maxDepth         int
	concurrency      int
	batchSize        int
	cacheSize        int
	includeExternals bool
	includeDepDirs   bool
	aliasConfigPath  string
}

// Option configures a Spider.
type Option func(*Spider)

// WithMaxDepth sets the default crawl depth bound.
func WithMaxDepth(depth int) Option {
	return func(s *Spider) { s.maxDepth = depth }
}

// WithConcurrency bounds the worker pool used by full-workspace indexing.
func WithConcurrency(n int) Option {
	return func(s *Spider) { s.concurrency = n }
}

// WithCacheSize bounds the analysis caches. 0 means unbounded.
func WithCacheSize(n int) Option {
	return func(s *Spider) { s.cacheSize = n }
}

// WithBatchSize sets how many files are processed between progress updates
// during full indexing.
func WithBatchSize(n int) Option {
	return func(s *Spider) { s.batchSize = n }
}

// WithIncludeExternals keeps bare external-ecosystem specifiers as graph
// nodes instead of dropping them.
func WithIncludeExternals(include bool) Option {
	return func(s *Spider) { s.includeExternals = include }
}

// WithDependencyDirs traverses node_modules/vendor-style directories during
// collection.
func WithDependencyDirs(include bool) Option {
	return func(s *Spider) { s.includeDepDirs = include }
}

// WithAliasConfig loads path aliases from an explicit alias-configuration
// file in addition to discovered ones.
func WithAliasConfig(path string) Option {
	return func(s *Spider) { s.aliasConfigPath = path }
}

// WithParser substitutes the fact-extraction capability.
func WithParser(p FileParser) Option {
	return func(s *Spider) { s.parser = p }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Spider) { s.logger = l }
}

// New creates a Spider for the workspace rooted at root.
func New(root string, opts ...Option) (*Spider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	s := &Spider{
		root:        fspath.Normalize(abs),
		maxDepth:    3,
		concurrency: 6,
		batchSize:   25,
		opts:        opts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.parser == nil {
		s.parser = parser.New()
	}
	s.resolver = resolver.New(resolver.Config{
		Root:             s.root,
		AliasConfigPath:  s.aliasConfigPath,
		IncludeExternals: s.includeExternals,
		Logger:           s.logger,
	})
	s.collector = collector.New(resolver.DefaultExtensions, s.logger)
	s.depCache = cache.New[[]Dependency](s.cacheSize, true)
	s.symCache = cache.New[*SymbolGraph](s.cacheSize, true)
	s.index = revindex.New(s.root)
	s.tracker = status.NewTracker()
	s.cancel = NewCancelFlag()
	return s, nil
}

// Root returns the normalized workspace root.
func (s *Spider) Root() string { return s.root }

// Status returns the current indexing snapshot.
func (s *Spider) Status() IndexerSnapshot { return s.tracker.Snapshot() }

// SubscribeStatus registers for indexing snapshots; call the returned
// cancel func when done.
func (s *Spider) SubscribeStatus() (<-chan IndexerSnapshot, func()) {
	return s.tracker.Subscribe()
}

// Analyze returns the resolved dependencies of file. Results are cached;
// a second call without intervening invalidation is served from the cache.
// Read and parse failures surface as *AnalyzeError; specifiers that do not
// resolve simply contribute no edge.
func (s *Spider) Analyze(ctx context.Context, file string) ([]Dependency, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := fspath.Normalize(file)
	if deps, ok := s.depCache.Get(path); ok {
		return deps, nil
	}

	content, err := os.ReadFile(filepath.FromSlash(path))
	if err != nil {
		return nil, &AnalyzeError{Path: path, Err: err}
	}
	meta := statMeta(path)

	records, err := s.parser.ParseImports(path, content)
	if err != nil {
		return nil, &AnalyzeError{Path: path, Err: err}
	}

	deps := make([]Dependency, 0, len(records))
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		target, ok := s.resolver.Resolve(path, rec.Module)
		if !ok {
			continue // a miss is "no dependency", never an error
		}
		key := target + "\x00" + string(rec.Kind)
		if seen[key] {
			continue
		}
		seen[key] = true
		deps = append(deps, Dependency{
			Path:   target,
			Kind:   rec.Kind,
			Line:   rec.Line,
			Module: rec.Module,
		})
	}

	s.commit(path, deps, meta)
	return deps, nil
}

// commit atomically publishes a file's analysis to the cache and reverse
// index. Per-file all-or-nothing edge replacement keeps concurrent runs
// from interleaving partial updates for the same source.
func (s *Spider) commit(path string, deps []Dependency, meta FileMeta) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.depCache.Set(path, deps)
	s.index.AddDependencies(path, deps, meta)
}

// Invalidate drops the cached analysis for file so the next Analyze
// re-reads it. The reverse index keeps its edges until re-analysis
// replaces them.
func (s *Spider) Invalidate(file string) {
	path := fspath.Normalize(file)
	s.depCache.Delete(path)
	s.symCache.Delete(path)
}

// RemoveFile handles a file-deletion notification: cached results and all
// edges originating from the file are dropped.
func (s *Spider) RemoveFile(file string) {
	path := fspath.Normalize(file)
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	s.depCache.Delete(path)
	s.symCache.Delete(path)
	s.index.RemoveSource(path)
}

// FindReferencingFiles returns every file depending on target. Served from
// the reverse index when it has entries; otherwise falls back to a full
// tree scan that analyzes every candidate. Both paths return the same set.
func (s *Spider) FindReferencingFiles(ctx context.Context, target string) ([]Reference, error) {
	path := fspath.Normalize(target)
	if s.index.HasEntries() {
		return s.index.ReferencingFiles(path), nil
	}

	files := s.collector.Collect(ctx, s.root, collector.Options{IncludeDependencyDirs: s.includeDepDirs})
	scan := revindex.New(s.root)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		deps, err := s.Analyze(ctx, f)
		if err != nil {
			s.logger.Warn("skipping unreadable file during reference scan", "file", f, "error", err)
			continue
		}
		scan.AddDependencies(f, deps, model.FileMeta{})
	}
	return scan.ReferencingFiles(path), nil
}

// EnableReverseIndex restores a serialized index blob. Returns whether the
// blob was accepted; a blob built for a different root is discarded.
func (s *Spider) EnableReverseIndex(blob []byte) bool {
	return s.index.Restore(blob)
}

// SerializeIndex encodes the reverse index as a versioned blob embedding
// the workspace root.
func (s *Spider) SerializeIndex() ([]byte, error) {
	return s.index.Serialize()
}

// ValidateIndex samples the reverse index and reports how much of it is
// stale or missing on disk, for rebuild decisions.
func (s *Spider) ValidateIndex(staleThreshold float64) IndexValidation {
	return s.index.Validate(staleThreshold, 100)
}

// CacheStats returns the dependency and symbol cache counters.
func (s *Spider) CacheStats() (deps CacheStats, symbols CacheStats) {
	return s.depCache.Stats(), s.symCache.Stats()
}

// IndexStats returns aggregate reverse-index counters.
func (s *Spider) IndexStats() IndexStats {
	return s.index.Stats()
}

// ClearCaches empties both analysis caches and resets their statistics.
func (s *Spider) ClearCaches() {
	s.depCache.Clear()
	s.symCache.Clear()
}

// statMeta captures a file's modification identity; missing files yield a
// zero meta.
func statMeta(path string) FileMeta {
	info, err := os.Stat(filepath.FromSlash(path))
	if err != nil {
		return FileMeta{}
	}
	return FileMeta{ModTime: info.ModTime().UnixNano(), Size: info.Size()}
}
