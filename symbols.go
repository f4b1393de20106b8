package depspider

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mkowalski/depspider/internal/collector"
	"github.com/mkowalski/depspider/internal/fspath"
)

// SymbolGraph returns the per-file symbol graph: declared symbols plus the
// call/reference edges between them. Intra-file edges are derived by
// matching lexical references against declared names; a reference inside
// symbol A to declared symbol B yields an A→B edge. Results are cached
// alongside dependency analysis and invalidated together.
func (s *Spider) SymbolGraph(ctx context.Context, file string) (*SymbolGraph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := fspath.Normalize(file)
	if g, ok := s.symCache.Get(path); ok {
		return g, nil
	}

	content, err := os.ReadFile(filepath.FromSlash(path))
	if err != nil {
		return nil, &AnalyzeError{Path: path, Err: err}
	}
	g, err := s.parser.ParseSymbols(path, content)
	if err != nil {
		return nil, &AnalyzeError{Path: path, Err: err}
	}

	// Declared base names -> symbol ID, so a bare `foo()` call matches the
	// declaration `Class.foo` as well as a top-level `foo`.
	byName := make(map[string]string, len(g.Symbols))
	for _, sym := range g.Symbols {
		byName[sym.Name] = sym.ID
		if i := strings.LastIndex(sym.Name, "."); i >= 0 {
			if _, taken := byName[sym.Name[i+1:]]; !taken {
				byName[sym.Name[i+1:]] = sym.ID
			}
		}
	}
	seen := make(map[string]bool)
	for _, ref := range g.Refs {
		targetID, ok := byName[ref.Name]
		if !ok || ref.EnclosID == "" || targetID == ref.EnclosID {
			continue
		}
		relation := "reference"
		if ref.IsCall {
			relation = "call"
		}
		key := ref.EnclosID + "\x00" + targetID + "\x00" + relation
		if seen[key] {
			continue
		}
		seen[key] = true
		g.Dependencies = append(g.Dependencies, SymbolDependency{
			SourceID:   ref.EnclosID,
			TargetID:   targetID,
			TargetFile: path,
			Relation:   relation,
		})
	}

	s.symCache.Set(path, g)
	return g, nil
}

// UnusedSymbol is an exported symbol with no inbound reference from any
// file that imports its declaring file.
type UnusedSymbol struct {
	File   string `json:"file"`
	Symbol Symbol `json:"symbol"`
}

// FindUnusedSymbols scans the workspace for exported symbols that no
// importing file references by name. Symbols used only inside their own
// file still count as unused: the question is whether the export earns
// its keep. Lexical matching makes this advisory, not authoritative —
// renamed re-exports and dynamic access are invisible to it.
func (s *Spider) FindUnusedSymbols(ctx context.Context) ([]UnusedSymbol, error) {
	files := s.collector.Collect(ctx, s.root, collector.Options{IncludeDependencyDirs: s.includeDepDirs})

	// Names referenced per importing file, and the file-level import edges.
	refNames := make(map[string]map[string]bool, len(files))
	importsOf := make(map[string][]string, len(files))
	exported := make(map[string][]Symbol)

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		deps, err := s.Analyze(ctx, f)
		if err != nil {
			s.logger.Warn("unused-symbol scan: skipping file", "file", f, "error", err)
			continue
		}
		for _, d := range deps {
			importsOf[d.Path] = append(importsOf[d.Path], fspath.Normalize(f))
		}
		g, err := s.SymbolGraph(ctx, f)
		if err != nil {
			continue // schema/query files have no symbol grammar
		}
		names := make(map[string]bool, len(g.Refs))
		for _, r := range g.Refs {
			names[r.Name] = true
		}
		refNames[g.File] = names
		for _, sym := range g.Symbols {
			if sym.Exported {
				exported[g.File] = append(exported[g.File], sym)
			}
		}
	}

	var unused []UnusedSymbol
	for file, syms := range exported {
		importers := importsOf[file]
		for _, sym := range syms {
			name := sym.Name
			if i := strings.LastIndex(name, "."); i >= 0 {
				name = name[i+1:]
			}
			used := false
			for _, imp := range importers {
				if refNames[imp][name] {
					used = true
					break
				}
			}
			if !used {
				unused = append(unused, UnusedSymbol{File: file, Symbol: sym})
			}
		}
	}
	sort.Slice(unused, func(i, j int) bool {
		if unused[i].File != unused[j].File {
			return unused[i].File < unused[j].File
		}
		return unused[i].Symbol.Line < unused[j].Symbol.Line
	})
	return unused, nil
}

// UsageReport answers whether a declared file-level dependency is actually
// exercised: the import edge may exist while nothing from the target is
// referenced.
type UsageReport struct {
	From         string   `json:"from"`
	To           string   `json:"to"`
	ImportExists bool     `json:"importExists"`
	Used         bool     `json:"used"`
	UsedSymbols  []string `json:"usedSymbols,omitempty"`
}

// VerifyDependencyUsage reports whether from imports to and which of to's
// exported symbols from references. Matching is lexical by base name.
func (s *Spider) VerifyDependencyUsage(ctx context.Context, from, to string) (*UsageReport, error) {
	fromPath := fspath.Normalize(from)
	toPath := fspath.Normalize(to)
	report := &UsageReport{From: fromPath, To: toPath}

	deps, err := s.Analyze(ctx, fromPath)
	if err != nil {
		return nil, err
	}
	for _, d := range deps {
		if d.Path == toPath {
			report.ImportExists = true
			break
		}
	}
	if !report.ImportExists {
		return report, nil
	}

	target, err := s.SymbolGraph(ctx, toPath)
	if err != nil {
		return report, nil
	}
	source, err := s.SymbolGraph(ctx, fromPath)
	if err != nil {
		return report, nil
	}
	refNames := make(map[string]bool, len(source.Refs))
	for _, r := range source.Refs {
		refNames[r.Name] = true
	}
	seen := make(map[string]bool)
	for _, sym := range target.Symbols {
		if !sym.Exported {
			continue
		}
		name := sym.Name
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		if refNames[name] && !seen[name] {
			seen[name] = true
			report.UsedSymbols = append(report.UsedSymbols, name)
		}
	}
	sort.Strings(report.UsedSymbols)
	report.Used = len(report.UsedSymbols) > 0
	return report, nil
}

// VerifyDependencyUsageBatch runs VerifyDependencyUsage for each edge,
// skipping edges whose source cannot be analyzed.
func (s *Spider) VerifyDependencyUsageBatch(ctx context.Context, edges []Edge) ([]UsageReport, error) {
	reports := make([]UsageReport, 0, len(edges))
	for _, e := range edges {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		r, err := s.VerifyDependencyUsage(ctx, e.Source, e.Target)
		if err != nil {
			s.logger.Warn("usage verification: skipping edge", "from", e.Source, "to", e.Target, "error", err)
			continue
		}
		reports = append(reports, *r)
	}
	return reports, nil
}

// TraceNode is one frame in an execution trace: a symbol plus the calls it
// makes, each resolved to its own node.
type TraceNode struct {
	Symbol Symbol      `json:"symbol"`
	File   string      `json:"file"`
	Calls  []TraceNode `json:"calls,omitempty"`
}

// TraceResult is a depth-bounded call trace rooted at one symbol.
type TraceResult struct {
	Root         *TraceNode `json:"root"`
	DepthLimited bool       `json:"depthLimited"`
}

// TraceFunctionExecution follows call references from the named symbol,
// crossing into imported files when the callee is declared there. Each
// symbol appears at most once in the trace; revisiting an already-traced
// symbol stops that branch, so cycles terminate. maxDepth <= 0 uses the
// Spider's default depth.
func (s *Spider) TraceFunctionExecution(ctx context.Context, file, symbolName string, maxDepth int) (*TraceResult, error) {
	if maxDepth <= 0 {
		maxDepth = s.maxDepth
	}
	path := fspath.Normalize(file)
	g, err := s.SymbolGraph(ctx, path)
	if err != nil {
		return nil, err
	}
	var root *Symbol
	for i := range g.Symbols {
		if g.Symbols[i].Name == symbolName || baseName(g.Symbols[i].Name) == symbolName {
			root = &g.Symbols[i]
			break
		}
	}
	if root == nil {
		return nil, &AnalyzeError{Path: path, Err: errSymbolNotFound(symbolName)}
	}

	result := &TraceResult{}
	visited := map[string]bool{root.ID: true}
	node, err := s.trace(ctx, path, *root, maxDepth, visited, result)
	if err != nil {
		return nil, err
	}
	result.Root = node
	return result, nil
}

func (s *Spider) trace(ctx context.Context, file string, sym Symbol, depth int, visited map[string]bool, result *TraceResult) (*TraceNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	node := &TraceNode{Symbol: sym, File: file}
	g, err := s.SymbolGraph(ctx, file)
	if err != nil {
		return node, nil
	}
	deps, _ := s.Analyze(ctx, file)

	for _, ref := range g.Refs {
		if !ref.IsCall || ref.EnclosID != sym.ID {
			continue
		}
		calleeFile, callee := s.resolveCallee(ctx, g, deps, ref.Name)
		if callee == nil || visited[callee.ID] {
			continue
		}
		if depth == 0 {
			// The bound cut off a branch that would otherwise expand; a
			// natural leaf reached at the bound does not count.
			result.DepthLimited = true
			return node, nil
		}
		visited[callee.ID] = true
		child, err := s.trace(ctx, calleeFile, *callee, depth-1, visited, result)
		if err != nil {
			return nil, err
		}
		node.Calls = append(node.Calls, *child)
	}
	return node, nil
}

// resolveCallee finds the declaration of a called name: first among the
// calling file's own symbols, then in each file it imports.
func (s *Spider) resolveCallee(ctx context.Context, g *SymbolGraph, deps []Dependency, name string) (string, *Symbol) {
	if sym := findSymbol(g, name); sym != nil {
		return g.File, sym
	}
	for _, d := range deps {
		tg, err := s.SymbolGraph(ctx, d.Path)
		if err != nil {
			continue
		}
		if sym := findSymbol(tg, name); sym != nil && sym.Exported {
			return tg.File, sym
		}
	}
	return "", nil
}

func findSymbol(g *SymbolGraph, name string) *Symbol {
	for i := range g.Symbols {
		if g.Symbols[i].Name == name || baseName(g.Symbols[i].Name) == name {
			return &g.Symbols[i]
		}
	}
	return nil
}

func baseName(qualified string) string {
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

type errSymbolNotFound string

func (e errSymbolNotFound) Error() string { return "symbol not found: " + string(e) }
