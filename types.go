package depspider

import (
	"github.com/mkowalski/depspider/internal/cache"
	"github.com/mkowalski/depspider/internal/model"
	"github.com/mkowalski/depspider/internal/revindex"
	"github.com/mkowalski/depspider/internal/status"
)

// Public type aliases for internal types used in the Spider API. These are
// Go type aliases (=) — identical to the internal types at compile time, so
// no conversion is needed at the boundary.

type Dependency = model.Dependency
type DependencyKind = model.DependencyKind
type Reference = model.Reference
type FileMeta = model.FileMeta
type Graph = model.Graph
type Edge = model.Edge
type ImportRecord = model.ImportRecord
type Symbol = model.Symbol
type SymbolRef = model.SymbolRef
type SymbolDependency = model.SymbolDependency
type SymbolGraph = model.SymbolGraph

type CacheStats = cache.Stats
type IndexStats = revindex.Stats
type IndexValidation = revindex.Validation

type IndexerPhase = status.Phase
type IndexerSnapshot = status.Snapshot

const (
	KindImport  = model.KindImport
	KindRequire = model.KindRequire
	KindExport  = model.KindExport
	KindDynamic = model.KindDynamic
)

const (
	PhaseIdle     = status.PhaseIdle
	PhaseCounting = status.PhaseCounting
	PhaseIndexing = status.PhaseIndexing
	PhaseComplete = status.PhaseComplete
	PhaseError    = status.PhaseError
)
