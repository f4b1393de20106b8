package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/mkowalski/depspider"
)

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	switch format {
	case "json", "text":
		return nil
	default:
		return fmt.Errorf("invalid format %q (expected json or text)", format)
	}
}

// outputJSON writes v as indented JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatDepsText formats dependencies as aligned columns.
func formatDepsText(w io.Writer, deps []depspider.Dependency) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tKIND\tLINE\tSPECIFIER")
	for _, d := range deps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", d.Path, d.Kind, d.Line, d.Module)
	}
	tw.Flush()
}

// formatRefsText formats inbound references as aligned columns.
func formatRefsText(w io.Writer, refs []depspider.Reference) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tKIND\tLINE")
	for _, r := range refs {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Path, r.Kind, r.Line)
	}
	tw.Flush()
}

// formatGraphText prints a graph as an edge list preceded by a node count.
func formatGraphText(w io.Writer, g *depspider.Graph) {
	fmt.Fprintf(w, "%d nodes, %d edges\n", len(g.Nodes), len(g.Edges))
	for _, e := range g.Edges {
		fmt.Fprintf(w, "%s -> %s\n", e.Source, e.Target)
	}
}

// formatTraceText prints a trace as an indented call tree.
func formatTraceText(w io.Writer, t *depspider.TraceResult) {
	if t.Root == nil {
		return
	}
	printTraceNode(w, t.Root, 0)
	if t.DepthLimited {
		fmt.Fprintln(w, "(depth limit reached)")
	}
}

func printTraceNode(w io.Writer, n *depspider.TraceNode, depth int) {
	fmt.Fprintf(w, "%s%s  %s:%d\n", strings.Repeat("  ", depth), n.Symbol.Name, n.File, n.Symbol.Line)
	for i := range n.Calls {
		printTraceNode(w, &n.Calls[i], depth+1)
	}
}

// formatUnusedText formats unused-symbol findings as aligned columns.
func formatUnusedText(w io.Writer, unused []depspider.UnusedSymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tLINE\tSYMBOL\tKIND")
	for _, u := range unused {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", u.File, u.Symbol.Line, u.Symbol.Name, u.Symbol.Kind)
	}
	tw.Flush()
}

// formatUsageText prints a usage report as readable text.
func formatUsageText(w io.Writer, r *depspider.UsageReport) {
	if !r.ImportExists {
		fmt.Fprintf(w, "%s does not import %s\n", r.From, r.To)
		return
	}
	if !r.Used {
		fmt.Fprintf(w, "%s imports %s but uses nothing from it\n", r.From, r.To)
		return
	}
	fmt.Fprintf(w, "%s uses from %s: %s\n", r.From, r.To, strings.Join(r.UsedSymbols, ", "))
}

// formatStatsText prints index and cache counters as readable text.
func formatStatsText(w io.Writer, idx depspider.IndexStats, deps, symbols depspider.CacheStats) {
	fmt.Fprintln(w, "Index")
	fmt.Fprintln(w, "=====")
	fmt.Fprintf(w, "Indexed files: %d\n", idx.IndexedFiles)
	fmt.Fprintf(w, "Target files:  %d\n", idx.TargetFiles)
	fmt.Fprintf(w, "References:    %d\n", idx.TotalReferences)
	fmt.Fprintln(w)
	for _, c := range []struct {
		name  string
		stats depspider.CacheStats
	}{{"Dependency cache", deps}, {"Symbol cache", symbols}} {
		fmt.Fprintf(w, "%s: %d entries, %d hits, %d misses, %d evictions (hit rate %.1f%%)\n",
			c.name, c.stats.Size, c.stats.Hits, c.stats.Misses, c.stats.Evictions, c.stats.HitRate*100)
	}
}
