// Package resolver turns raw module specifiers into absolute file paths.
//
// Resolution runs an ordered chain of strategies sharing one interface,
// short-circuiting on the first hit: static aliases, discovered alias
// configs, package subpath imports, scoped packages, language-specific
// relative/absolute forms, bare externals, and plain relative paths. Adding
// a language means adding a strategy, not touching the existing ones.
//
// A miss is not an error: Resolve never fails, it reports (path, ok).
package resolver

import (
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mkowalski/depspider/internal/fspath"
)

// DefaultExtensions is the closed set of source extensions the resolver
// probes, in probe priority order.
var DefaultExtensions = []string{
	".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs",
	".svelte", ".vue",
	".py", ".rs",
	".graphql", ".gql", ".sql",
}

// Resolver resolves specifiers for one workspace root. Safe for concurrent
// use: config discovery and parsing are memoized behind a mutex, and
// concurrent parses of the same file share one in-flight operation.
type Resolver struct {
	root             string
	exts             []string
	includeExternals bool
	logger           *slog.Logger

	strategies []strategy

	mu sync.Mutex
	// nearestDirCache: config file name → directory → nearest config file
	// path ("" means none up to the root). Backfilled for every directory
	// traversed during a search, so later ancestor queries are O(1).
	nearestDirCache map[string]map[string]string
	aliasCache      map[string]*aliasConfig // config path → parsed aliases
	manifestCache   map[string]*manifest    // manifest path → parsed manifest

	group singleflight.Group
}

// Config holds Resolver construction parameters.
type Config struct {
	Root             string
	Extensions       []string // defaults to DefaultExtensions
	AliasConfigPath  string   // optional explicit alias-configuration file
	IncludeExternals bool
	Logger           *slog.Logger
}

// New creates a Resolver for the workspace rooted at cfg.Root.
func New(cfg Config) *Resolver {
	exts := cfg.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		root:             fspath.Normalize(cfg.Root),
		exts:             exts,
		includeExternals: cfg.IncludeExternals,
		logger:           logger,
		nearestDirCache:  make(map[string]map[string]string),
		aliasCache:       make(map[string]*aliasConfig),
		manifestCache:    make(map[string]*manifest),
	}

	var static *aliasConfig
	if cfg.AliasConfigPath != "" {
		static = r.loadAliasConfig(fspath.Normalize(cfg.AliasConfigPath))
	}

	r.strategies = []strategy{
		&staticAliasStrategy{r: r, cfg: static},
		&discoveredAliasStrategy{r: r},
		&subpathImportStrategy{r: r},
		&scopedPackageStrategy{r: r},
		&pythonStrategy{r: r},
		&rustStrategy{r: r},
		&externalStrategy{r: r},
		&relativeStrategy{r: r},
	}
	return r
}

// Root returns the workspace root boundary for upward searches.
func (r *Resolver) Root() string { return r.root }

// Resolve maps the raw specifier found in fromFile to an absolute normalized
// path. Strategies run in strict priority order; the first hit wins.
// Unresolvable specifiers return ("", false).
func (r *Resolver) Resolve(fromFile, specifier string) (string, bool) {
	if specifier == "" {
		return "", false
	}
	from := fspath.Normalize(fromFile)
	for _, s := range r.strategies {
		if p, ok := s.try(from, specifier); ok {
			r.logger.Debug("resolve: hit",
				"strategy", s.name(), "specifier", specifier, "path", p)
			return p, true
		}
	}
	return "", false
}

// strategy is one step in the resolution chain.
type strategy interface {
	name() string
	try(fromFile, specifier string) (string, bool)
}

// isRegularFile reports whether p exists and is a regular file.
func isRegularFile(p string) bool {
	info, err := os.Stat(filepath.FromSlash(p))
	return err == nil && info.Mode().IsRegular()
}

// probe tries, in order: the exact path, the path with each supported
// extension appended, then each index basename under the path with each
// extension. First existing regular file wins.
func (r *Resolver) probe(base string, indexNames ...string) (string, bool) {
	return probeWith(base, r.exts, indexNames)
}

func probeWith(base string, exts []string, indexNames []string) (string, bool) {
	base = path.Clean(base)
	if isRegularFile(base) {
		return fspath.Normalize(base), true
	}
	for _, ext := range exts {
		if p := base + ext; isRegularFile(p) {
			return fspath.Normalize(p), true
		}
	}
	for _, idx := range indexNames {
		for _, ext := range exts {
			if p := base + "/" + idx + ext; isRegularFile(p) {
				return fspath.Normalize(p), true
			}
		}
	}
	return "", false
}

// nearestFile finds the closest file named name in dir or any ancestor up
// to (and including) the workspace root. Results — hits and misses — are
// memoized and backfilled for every directory traversed.
func (r *Resolver) nearestFile(dir, name string) string {
	r.mu.Lock()
	byDir := r.nearestDirCache[name]
	if byDir == nil {
		byDir = make(map[string]string)
		r.nearestDirCache[name] = byDir
	}
	if p, ok := byDir[dir]; ok {
		r.mu.Unlock()
		return p
	}
	r.mu.Unlock()

	var traversed []string
	found := ""
	d := dir
	for {
		r.mu.Lock()
		if p, ok := byDir[d]; ok {
			r.mu.Unlock()
			found = p
			break
		}
		r.mu.Unlock()

		traversed = append(traversed, d)
		candidate := d + "/" + name
		if isRegularFile(candidate) {
			found = candidate
			break
		}
		if d == r.root || !strings.HasPrefix(d, r.root) {
			break
		}
		parent := fspath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}

	r.mu.Lock()
	for _, t := range traversed {
		byDir[t] = found
	}
	r.mu.Unlock()
	return found
}

// withinRoot reports whether p is the root or beneath it.
func (r *Resolver) withinRoot(p string) bool {
	return p == r.root || strings.HasPrefix(p, r.root+"/")
}
