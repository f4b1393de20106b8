// Package depspider discovers and maintains a directed dependency graph
// over a polyglot source tree, at file and symbol granularity. It answers:
// what does file X depend on, what depends on X, and is a given dependency
// edge backed by an actually-used symbol.
//
// # Pipeline
//
// A [Spider] composes the subsystems:
//
//  1. Analyze: read a file, extract raw import records via a per-language
//     parser, resolve each specifier to an absolute path through an ordered
//     strategy chain, and record the edges in a bounded LRU cache and a
//     reverse dependency index.
//
//  2. Crawl: breadth-first traversal applying Analyze up to a depth bound,
//     accumulating a file-level graph. Nodes discovered one past the bound
//     are present as leaves but never analyzed.
//
//  3. Index: enumerate the whole workspace with a cooperative file walker
//     and analyze everything through a bounded worker pool, reporting
//     progress and honoring cooperative cancellation.
//
// # Usage
//
// Create a Spider for a workspace root and ask it questions:
//
//	s, err := depspider.New("path/to/project")
//	if err != nil { ... }
//
//	ctx := context.Background()
//	deps, err := s.Analyze(ctx, "src/app.ts")
//	graph, err := s.Crawl(ctx, "src/app.ts", 3)
//	refs, err := s.FindReferencingFiles(ctx, "src/shared/helper.ts")
//
// Whole-tree indexing can run in the foreground via [Spider.BuildFullIndex]
// or on an isolated background pipeline via [NewPipeline], which
// streams counting/progress/complete events and hands its results back for
// merging without sharing memory with the caller.
//
// Symbol-level operations ([Spider.SymbolGraph], [Spider.FindUnusedSymbols],
// [Spider.VerifyDependencyUsage], [Spider.TraceFunctionExecution]) layer a
// per-file symbol graph on top of the file-level edges. "Used" is lexical
// call/reference tracking, not type analysis.
package depspider
