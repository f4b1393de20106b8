package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mkowalski/depspider"
)

var (
	flagDepth      int
	flagTraceDepth int
)

var depsCmd = &cobra.Command{
	Use:   "deps <file>",
	Short: "List the resolved dependencies of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSpider()
		if err != nil {
			return err
		}
		file, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		deps, err := s.Analyze(cmdContext(cmd), file)
		if err != nil {
			return err
		}
		if flagFormat == "json" {
			return outputJSON(deps)
		}
		formatDepsText(os.Stdout, deps)
		return nil
	},
}

var rdepsCmd = &cobra.Command{
	Use:   "rdeps <file>",
	Short: "List the files that depend on a file",
	Long:  "Answers reverse-dependency queries from the persisted index when available, falling back to a full workspace scan.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSpider()
		if err != nil {
			return err
		}
		file, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		refs, err := s.FindReferencingFiles(cmdContext(cmd), file)
		if err != nil {
			return err
		}
		if flagFormat == "json" {
			return outputJSON(refs)
		}
		formatRefsText(os.Stdout, refs)
		return nil
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl <file>",
	Short: "Crawl the dependency graph outward from a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSpider()
		if err != nil {
			return err
		}
		file, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		g, err := s.Crawl(cmdContext(cmd), file, flagDepth)
		if err != nil {
			return err
		}
		if flagFormat == "json" {
			return outputJSON(g)
		}
		formatGraphText(os.Stdout, g)
		return nil
	},
}

func init() {
	crawlCmd.Flags().IntVar(&flagDepth, "depth", -1, "crawl depth bound (default: spider default)")
}

var traceCmd = &cobra.Command{
	Use:   "trace <file> <symbol>",
	Short: "Trace function execution from a symbol",
	Long:  "Follows call references from the named symbol, crossing into imported files, until the depth bound or a cycle.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSpider()
		if err != nil {
			return err
		}
		file, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		trace, err := s.TraceFunctionExecution(cmdContext(cmd), file, args[1], flagTraceDepth)
		if err != nil {
			return err
		}
		if flagFormat == "json" {
			return outputJSON(trace)
		}
		formatTraceText(os.Stdout, trace)
		return nil
	},
}

func init() {
	traceCmd.Flags().IntVar(&flagTraceDepth, "depth", 0, "trace depth bound (default: spider default)")
}

var unusedCmd = &cobra.Command{
	Use:   "unused",
	Short: "Find exported symbols no importer references",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSpider()
		if err != nil {
			return err
		}
		unused, err := s.FindUnusedSymbols(cmdContext(cmd))
		if err != nil {
			return err
		}
		if flagFormat == "json" {
			return outputJSON(unused)
		}
		formatUnusedText(os.Stdout, unused)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <from> <to>",
	Short: "Check whether a file actually uses what it imports",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSpider()
		if err != nil {
			return err
		}
		from, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		to, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		report, err := s.VerifyDependencyUsage(cmdContext(cmd), from, to)
		if err != nil {
			return err
		}
		if flagFormat == "json" {
			return outputJSON(report)
		}
		formatUsageText(os.Stdout, report)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index and cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSpider()
		if err != nil {
			return err
		}
		deps, symbols := s.CacheStats()
		out := struct {
			Index       depspider.IndexStats `json:"index"`
			DepCache    depspider.CacheStats `json:"depCache"`
			SymbolCache depspider.CacheStats `json:"symbolCache"`
		}{s.IndexStats(), deps, symbols}
		if flagFormat == "json" {
			return outputJSON(out)
		}
		formatStatsText(os.Stdout, out.Index, out.DepCache, out.SymbolCache)
		return nil
	},
}
