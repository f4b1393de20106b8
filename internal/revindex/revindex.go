// Package revindex maintains the inverted dependency index: for each target
// file, the set of source files referencing it with per-edge metadata and
// the source's modification identity at index time.
package revindex

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"

	"github.com/mkowalski/depspider/internal/model"
)

// serializationVersion stamps serialized blobs. Restores of any other
// version are discarded.
const serializationVersion = 1

// entry is one inbound edge plus the source file's identity when indexed.
type entry struct {
	Dep  model.Dependency `json:"dep"` // Dep.Path is the target
	Meta model.FileMeta   `json:"meta"`
}

// Stats are aggregate index counters.
type Stats struct {
	IndexedFiles    int `json:"indexedFiles"`
	TargetFiles     int `json:"targetFiles"`
	TotalReferences int `json:"totalReferences"`
}

// Validation reports the health of the index against the filesystem.
type Validation struct {
	IsValid         bool     `json:"isValid"`
	StaleFiles      []string `json:"staleFiles"`
	MissingFiles    []string `json:"missingFiles"`
	StalePercentage float64  `json:"stalePercentage"`
}

// Index is the reverse dependency index for one workspace root. It is owned
// by a single Spider; the mutex exists because background merges and
// navigation queries may overlap.
type Index struct {
	mu   sync.RWMutex
	root string

	// targets: target path → source path → edge entry.
	targets map[string]map[string]entry

	// sources: source path → set of targets it currently points at, so
	// edge replacement does not scan the whole index.
	sources map[string]map[string]bool

	// meta: source path → identity recorded at last AddDependencies.
	meta map[string]model.FileMeta
}

// New creates an empty index bound to a workspace root.
func New(root string) *Index {
	return &Index{
		root:    root,
		targets: make(map[string]map[string]entry),
		sources: make(map[string]map[string]bool),
		meta:    make(map[string]model.FileMeta),
	}
}

// Root returns the workspace root the index was built for.
func (ix *Index) Root() string {
	return ix.root
}

// AddDependencies replaces every edge originating from source with deps.
// Removing the old edge set first is the central correctness invariant:
// re-analyzing a file must never leave references to targets it no longer
// depends on. Idempotent for repeated identical calls.
func (ix *Index) AddDependencies(source string, deps []model.Dependency, meta model.FileMeta) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeSourceLocked(source)

	if len(deps) > 0 {
		ts := make(map[string]bool, len(deps))
		for _, d := range deps {
			m := ix.targets[d.Path]
			if m == nil {
				m = make(map[string]entry)
				ix.targets[d.Path] = m
			}
			m[source] = entry{Dep: d, Meta: meta}
			ts[d.Path] = true
		}
		ix.sources[source] = ts
	}
	ix.meta[source] = meta
}

// RemoveSource drops every edge originating from source, e.g. after a file
// deletion notification.
func (ix *Index) RemoveSource(source string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeSourceLocked(source)
	delete(ix.meta, source)
}

func (ix *Index) removeSourceLocked(source string) {
	for target := range ix.sources[source] {
		m := ix.targets[target]
		delete(m, source)
		if len(m) == 0 {
			// Prune so "no referents" and "never observed" look the same.
			delete(ix.targets, target)
		}
	}
	delete(ix.sources, source)
}

// ReferencingFiles returns every source file with an edge into target,
// sorted by path. O(1) in the number of distinct sources for that target.
func (ix *Index) ReferencingFiles(target string) []model.Reference {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	m := ix.targets[target]
	refs := make([]model.Reference, 0, len(m))
	for source, e := range m {
		refs = append(refs, model.Reference{
			Path:   source,
			Kind:   e.Dep.Kind,
			Line:   e.Dep.Line,
			Module: e.Dep.Module,
		})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs
}

// HasEntries reports whether the index has observed at least one source.
func (ix *Index) HasEntries() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.meta) > 0
}

// IsFileStale compares the recorded identity of source against current.
// Unknown sources are stale by definition.
func (ix *Index) IsFileStale(source string, current model.FileMeta) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	stored, ok := ix.meta[source]
	if !ok {
		return true
	}
	return stored.ModTime != current.ModTime || stored.Size != current.Size
}

// Validate samples up to sampleSize indexed sources and reports the fraction
// that are stale or missing on disk. The index is considered invalid when
// that fraction exceeds staleThreshold (0..1).
func (ix *Index) Validate(staleThreshold float64, sampleSize int) Validation {
	ix.mu.RLock()
	sources := make([]string, 0, len(ix.meta))
	for s := range ix.meta {
		sources = append(sources, s)
	}
	metas := make(map[string]model.FileMeta, len(sources))
	for s, m := range ix.meta {
		metas[s] = m
	}
	ix.mu.RUnlock()

	if sampleSize > 0 && len(sources) > sampleSize {
		rand.Shuffle(len(sources), func(i, j int) {
			sources[i], sources[j] = sources[j], sources[i]
		})
		sources = sources[:sampleSize]
	}

	v := Validation{IsValid: true}
	for _, s := range sources {
		info, err := os.Stat(s)
		if err != nil {
			v.MissingFiles = append(v.MissingFiles, s)
			continue
		}
		stored := metas[s]
		if stored.ModTime != info.ModTime().UnixNano() || stored.Size != info.Size() {
			v.StaleFiles = append(v.StaleFiles, s)
		}
	}
	if n := len(sources); n > 0 {
		v.StalePercentage = float64(len(v.StaleFiles)+len(v.MissingFiles)) / float64(n)
	}
	if v.StalePercentage > staleThreshold {
		v.IsValid = false
	}
	return v
}

// Stats returns aggregate counters.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	total := 0
	for _, m := range ix.targets {
		total += len(m)
	}
	return Stats{
		IndexedFiles:    len(ix.meta),
		TargetFiles:     len(ix.targets),
		TotalReferences: total,
	}
}

// Entries returns, per source, the dependency list currently indexed.
// Used when persisting the index.
func (ix *Index) Entries() map[string][]model.Dependency {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string][]model.Dependency, len(ix.sources))
	for source, ts := range ix.sources {
		deps := make([]model.Dependency, 0, len(ts))
		for target := range ts {
			deps = append(deps, ix.targets[target][source].Dep)
		}
		sort.Slice(deps, func(i, j int) bool { return deps[i].Path < deps[j].Path })
		out[source] = deps
	}
	return out
}

// Metas returns a copy of every recorded source identity, including sources
// with zero dependencies.
func (ix *Index) Metas() map[string]model.FileMeta {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string]model.FileMeta, len(ix.meta))
	for s, m := range ix.meta {
		out[s] = m
	}
	return out
}

// Meta returns the recorded identity for source.
func (ix *Index) Meta(source string) (model.FileMeta, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	m, ok := ix.meta[source]
	return m, ok
}

// blob is the serialized wire form.
type blob struct {
	Version int                   `json:"version"`
	Root    string                `json:"root"`
	Sources map[string]blobSource `json:"sources"`
}

type blobSource struct {
	Meta model.FileMeta     `json:"meta"`
	Deps []model.Dependency `json:"deps"`
}

// Serialize encodes the index as a versioned blob embedding the owning root.
func (ix *Index) Serialize() ([]byte, error) {
	entries := ix.Entries()
	b := blob{
		Version: serializationVersion,
		Root:    ix.root,
		Sources: make(map[string]blobSource, len(entries)),
	}
	ix.mu.RLock()
	for source, deps := range entries {
		b.Sources[source] = blobSource{Meta: ix.meta[source], Deps: deps}
	}
	// Sources with zero dependencies still carry meta for staleness checks.
	for source, meta := range ix.meta {
		if _, ok := b.Sources[source]; !ok {
			b.Sources[source] = blobSource{Meta: meta}
		}
	}
	ix.mu.RUnlock()

	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("serialize index: %w", err)
	}
	return data, nil
}

// Restore loads a serialized blob into the index. Returns false — leaving
// the index untouched — when the blob is malformed, carries an unknown
// version, or was built for a different root.
func (ix *Index) Restore(data []byte) bool {
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return false
	}
	if b.Version != serializationVersion || b.Root != ix.root {
		return false
	}

	ix.mu.Lock()
	ix.targets = make(map[string]map[string]entry)
	ix.sources = make(map[string]map[string]bool)
	ix.meta = make(map[string]model.FileMeta)
	ix.mu.Unlock()

	for source, bs := range b.Sources {
		ix.AddDependencies(source, bs.Deps, bs.Meta)
	}
	return true
}
