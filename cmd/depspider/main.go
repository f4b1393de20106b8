package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkowalski/depspider"
)

var (
	flagDB      string
	flagFormat  string
	flagVerbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "depspider",
	Short:         "Dependency graph analysis for polyglot source trees",
	Long:          "Depspider resolves import statements across TypeScript, JavaScript, Python, and Rust sources into a file dependency graph, with reverse-index queries and symbol-level tracing.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "index database path (default: .depspider/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "text", "output format: json|text")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(rdepsCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(unusedCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(statsCmd)
}

var (
	flagConcurrency int
	flagExternals   bool
	flagDepDirs     bool
	flagAliasConfig string
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build the full dependency index for a workspace",
	Long:  "Enumerates every supported source file under the workspace root, resolves its imports, and persists the reverse index to the SQLite database.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().IntVar(&flagConcurrency, "concurrency", 6, "analysis worker count")
	indexCmd.Flags().BoolVar(&flagExternals, "externals", false, "keep external package specifiers as graph nodes")
	indexCmd.Flags().BoolVar(&flagDepDirs, "dep-dirs", false, "traverse node_modules/vendor directories")
	indexCmd.Flags().StringVar(&flagAliasConfig, "alias-config", "", "explicit tsconfig/jsconfig path for alias resolution")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	root, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	dbPath := resolveDBPath(findRepoRoot(root))
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}

	s, err := newSpider(root)
	if err != nil {
		return err
	}

	result, err := s.BuildFullIndex(cmd.Context(), func(snap depspider.IndexerSnapshot) {
		if snap.Phase == depspider.PhaseIndexing && snap.Total > 0 {
			fmt.Fprintf(os.Stderr, "\rIndexing %d/%d", snap.Processed, snap.Total)
		}
	})
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}
	fmt.Fprintln(os.Stderr)

	if err := s.SaveIndex(dbPath); err != nil {
		return fmt.Errorf("saving index: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Indexed %d/%d files in %s\n",
		result.Processed, result.Total, time.Since(start).Round(time.Millisecond))
	if len(result.Failed) > 0 {
		fmt.Fprintf(os.Stderr, "Failed: %d files\n", len(result.Failed))
	}
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	return nil
}

// newSpider builds a Spider for root from the shared flags.
func newSpider(root string) (*depspider.Spider, error) {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []depspider.Option{
		depspider.WithLogger(logger),
	}
	if flagConcurrency > 0 {
		opts = append(opts, depspider.WithConcurrency(flagConcurrency))
	}
	if flagExternals {
		opts = append(opts, depspider.WithIncludeExternals(true))
	}
	if flagDepDirs {
		opts = append(opts, depspider.WithDependencyDirs(true))
	}
	if flagAliasConfig != "" {
		opts = append(opts, depspider.WithAliasConfig(flagAliasConfig))
	}
	return depspider.New(root, opts...)
}

// openSpider builds a Spider rooted at the repo root and restores the
// persisted index when one exists. Query commands work without an index,
// just slower.
func openSpider() (*depspider.Spider, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	root := findRepoRoot(cwd)
	s, err := newSpider(root)
	if err != nil {
		return nil, err
	}
	dbPath := resolveDBPath(root)
	if _, statErr := os.Stat(dbPath); statErr == nil {
		if ok, loadErr := s.LoadIndex(dbPath); loadErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load index: %s\n", loadErr)
		} else if !ok {
			fmt.Fprintf(os.Stderr, "Warning: index at %s was built for a different root\n", dbPath)
		}
	}
	return s, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the default.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(repoRoot, ".depspider", "index.db")
}
