// Package collector enumerates candidate source files under a workspace
// root. The walk is cooperative: it checks for cancellation before every
// directory descent and every entry, yields the processor periodically on
// long traversals, and returns whatever it has collected when cancelled.
package collector

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/mkowalski/depspider/internal/fspath"
)

// ignoreDirs are always skipped: version control, build output, coverage,
// and framework cache directories.
var ignoreDirs = map[string]bool{
	".git":          true,
	".hg":           true,
	".svn":          true,
	"dist":          true,
	"build":         true,
	"out":           true,
	"coverage":      true,
	".nyc_output":   true,
	".next":         true,
	".nuxt":         true,
	".svelte-kit":   true,
	".turbo":        true,
	"__pycache__":   true,
	".pytest_cache": true,
	".mypy_cache":   true,
	"target":        true,
}

// dependencyDirs are skipped unless the caller opts in to traversing them.
var dependencyDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
}

// yieldEvery bounds how long the walk runs before handing the processor
// back to the scheduler.
const yieldEvery = 15 * time.Millisecond

// Collector walks directory trees for files with supported extensions.
type Collector struct {
	exts   map[string]bool
	logger *slog.Logger
}

// New creates a Collector recognizing the given extensions (with leading
// dot, e.g. ".ts").
func New(exts []string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[strings.ToLower(e)] = true
	}
	return &Collector{exts: m, logger: logger}
}

// Options control a single Collect call.
type Options struct {
	// IncludeDependencyDirs traverses node_modules/vendor-style directories.
	IncludeDependencyDirs bool
}

// Collect returns the normalized paths of all supported files under rootDir.
// Cancellation via ctx returns the partial list collected so far, not an
// error. Unreadable directories are logged and treated as empty.
func (c *Collector) Collect(ctx context.Context, rootDir string, opts Options) []string {
	root := fspath.Normalize(rootDir)
	gi := loadGitignore(root)

	w := &walk{
		c:         c,
		ctx:       ctx,
		root:      root,
		gi:        gi,
		opts:      opts,
		lastYield: time.Now(),
	}
	w.dir(root)
	return w.files
}

type walk struct {
	c         *Collector
	ctx       context.Context
	root      string
	gi        *ignore.GitIgnore
	opts      Options
	files     []string
	lastYield time.Time
}

func (w *walk) cancelled() bool {
	select {
	case <-w.ctx.Done():
		return true
	default:
		return false
	}
}

// yield hands control back to the scheduler when the walk has run
// uninterrupted for longer than yieldEvery.
func (w *walk) yield() {
	if time.Since(w.lastYield) >= yieldEvery {
		runtime.Gosched()
		w.lastYield = time.Now()
	}
}

func (w *walk) dir(dir string) {
	if w.cancelled() {
		return
	}
	entries, err := os.ReadDir(filepath.FromSlash(dir))
	if err != nil {
		w.c.logger.Warn("skipping unreadable directory", "dir", dir, "error", err)
		return
	}
	for _, e := range entries {
		if w.cancelled() {
			return
		}
		w.yield()

		name := e.Name()
		path := dir + "/" + name
		if e.IsDir() {
			if ignoreDirs[name] || strings.HasPrefix(name, ".") {
				continue
			}
			if dependencyDirs[name] && !w.opts.IncludeDependencyDirs {
				continue
			}
			if w.gi != nil && w.gi.MatchesPath(strings.TrimPrefix(path, w.root+"/")) {
				continue
			}
			w.dir(path)
			continue
		}
		if !w.c.exts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		if w.gi != nil && w.gi.MatchesPath(strings.TrimPrefix(path, w.root+"/")) {
			continue
		}
		w.files = append(w.files, path)
	}
}

// loadGitignore compiles the root .gitignore when present.
func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(filepath.FromSlash(root), ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
