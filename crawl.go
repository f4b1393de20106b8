package depspider

import (
	"context"
	"path"

	"github.com/mkowalski/depspider/internal/fspath"
)

// Crawl traverses the dependency graph breadth-first from start. Nodes at
// depth <= maxDepth are analyzed and contribute their edges; targets
// discovered one past the bound are added as leaf nodes only — never
// analyzed, so their own dependencies stay invisible. That boundary
// behavior (node present, edges absent) is load-bearing for incremental
// expansion and must not be "fixed".
//
// maxDepth < 0 uses the Spider's configured default. Unreadable files are
// logged and contribute no edges; the crawl continues.
func (s *Spider) Crawl(ctx context.Context, start string, maxDepth int) (*Graph, error) {
	if maxDepth < 0 {
		maxDepth = s.maxDepth
	}
	return s.crawl(ctx, fspath.Normalize(start), maxDepth, nil, nil, 0)
}

// CrawlFromOptions control an incremental expansion.
type CrawlFromOptions struct {
	// KnownNodes are already-rendered nodes: edges into them are kept but
	// they are neither re-added nor re-expanded.
	KnownNodes map[string]bool
	// OnBatch receives partial graphs as they accumulate. Optional.
	OnBatch func(partial *Graph)
	// BatchSize is the node count between OnBatch calls (default 10).
	BatchSize int
}

// CrawlFrom expands the graph from an already-rendered node by extraDepth
// levels. Cancellation via ctx stops the traversal at the next iteration
// boundary and returns what was accumulated.
func (s *Spider) CrawlFrom(ctx context.Context, node string, extraDepth int, opts CrawlFromOptions) (*Graph, error) {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 10
	}
	return s.crawl(ctx, fspath.Normalize(node), extraDepth, opts.KnownNodes, opts.OnBatch, batch)
}

func (s *Spider) crawl(ctx context.Context, start string, maxDepth int, known map[string]bool, onBatch func(*Graph), batchSize int) (*Graph, error) {
	g := &Graph{NodeLabels: make(map[string]string)}
	nodeSet := make(map[string]bool)
	addNode := func(p string) {
		if !nodeSet[p] {
			nodeSet[p] = true
			g.Nodes = append(g.Nodes, p)
			g.NodeLabels[p] = path.Base(p)
		}
	}

	type queued struct {
		path  string
		depth int
	}
	visited := map[string]bool{start: true}
	queue := []queued{{path: start, depth: 0}}
	addNode(start)
	sinceBatch := 0

	for len(queue) > 0 {
		// Cancellation is observed at recursion-step boundaries only.
		if err := ctx.Err(); err != nil {
			return g, nil
		}
		current := queue[0]
		queue = queue[1:]

		if current.depth > maxDepth {
			continue
		}
		deps, err := s.Analyze(ctx, current.path)
		if err != nil {
			s.logger.Warn("crawl: skipping unreadable node", "file", current.path, "error", err)
			continue
		}
		for _, d := range deps {
			if !known[d.Path] {
				addNode(d.Path)
				sinceBatch++
			}
			g.Edges = append(g.Edges, Edge{Source: current.path, Target: d.Path})
			if !visited[d.Path] && !known[d.Path] {
				visited[d.Path] = true
				queue = append(queue, queued{path: d.Path, depth: current.depth + 1})
			}
		}
		if onBatch != nil && sinceBatch >= batchSize {
			sinceBatch = 0
			onBatch(copyGraph(g))
		}
	}

	if onBatch != nil && sinceBatch > 0 {
		onBatch(copyGraph(g))
	}
	return g, nil
}

// copyGraph snapshots g so batch callbacks cannot observe later mutation.
func copyGraph(g *Graph) *Graph {
	out := &Graph{
		Nodes:      append([]string(nil), g.Nodes...),
		Edges:      append([]Edge(nil), g.Edges...),
		NodeLabels: make(map[string]string, len(g.NodeLabels)),
	}
	for k, v := range g.NodeLabels {
		out.NodeLabels[k] = v
	}
	return out
}
