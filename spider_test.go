package depspider

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkowalski/depspider/internal/fspath"
)

// writeWorkspace materializes files (slash-relative path → content) under a
// fresh temp root and returns the normalized root plus normalized paths.
func writeWorkspace(t *testing.T, files map[string]string) (string, map[string]string) {
	t.Helper()
	root := t.TempDir()
	paths := make(map[string]string, len(files))
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		paths[rel] = fspath.Normalize(p)
	}
	return fspath.Normalize(root), paths
}

func newTestSpider(t *testing.T, root string, opts ...Option) *Spider {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s, err := New(root, append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return s
}

func depPaths(deps []Dependency) []string {
	out := make([]string, len(deps))
	for i, d := range deps {
		out[i] = d.Path
	}
	return out
}

func TestSpider_Analyze_ResolvesImports(t *testing.T) {
	t.Parallel()
	root, paths := writeWorkspace(t, map[string]string{
		"src/a.ts": "import { b } from \"./b\";\nimport { c } from \"./c\";\nimport missing from \"./missing\";\n",
		"src/b.ts": "export const b = 1;\n",
		"src/c.ts": "export const c = 2;\n",
	})
	s := newTestSpider(t, root)

	deps, err := s.Analyze(context.Background(), paths["src/a.ts"])
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{paths["src/b.ts"], paths["src/c.ts"]}, depPaths(deps),
		"unresolvable specifiers contribute no edge")
}

func TestSpider_Analyze_SecondCallServedFromCache(t *testing.T) {
	t.Parallel()
	root, paths := writeWorkspace(t, map[string]string{
		"a.ts": "import { b } from \"./b\";\n",
		"b.ts": "export const b = 1;\n",
	})
	s := newTestSpider(t, root)
	ctx := context.Background()

	first, err := s.Analyze(ctx, paths["a.ts"])
	require.NoError(t, err)
	second, err := s.Analyze(ctx, paths["a.ts"])
	require.NoError(t, err)
	assert.Equal(t, first, second)

	deps, _ := s.CacheStats()
	assert.Equal(t, int64(1), deps.Hits)
	assert.Equal(t, int64(1), deps.Misses)
}

func TestSpider_Analyze_DedupesRepeatedImports(t *testing.T) {
	t.Parallel()
	root, paths := writeWorkspace(t, map[string]string{
		"a.ts": "import { x } from \"./b\";\nimport { y } from \"./b\";\n",
		"b.ts": "export const x = 1;\nexport const y = 2;\n",
	})
	s := newTestSpider(t, root)

	deps, err := s.Analyze(context.Background(), paths["a.ts"])
	require.NoError(t, err)
	assert.Len(t, deps, 1, "same target and kind collapse to one edge")
}

func TestSpider_Analyze_MissingFile(t *testing.T) {
	t.Parallel()
	root, _ := writeWorkspace(t, map[string]string{"a.ts": ""})
	s := newTestSpider(t, root)

	_, err := s.Analyze(context.Background(), filepath.Join(root, "nope.ts"))
	require.Error(t, err)
	var aerr *AnalyzeError
	assert.True(t, errors.As(err, &aerr))
}

func TestSpider_Invalidate_PicksUpEdits(t *testing.T) {
	t.Parallel()
	root, paths := writeWorkspace(t, map[string]string{
		"a.ts": "import { b } from \"./b\";\n",
		"b.ts": "export const b = 1;\n",
		"c.ts": "export const c = 2;\n",
	})
	s := newTestSpider(t, root)
	ctx := context.Background()

	deps, err := s.Analyze(ctx, paths["a.ts"])
	require.NoError(t, err)
	require.Equal(t, []string{paths["b.ts"]}, depPaths(deps))

	// Rewrite a.ts to depend on c.ts instead, then invalidate.
	require.NoError(t, os.WriteFile(filepath.FromSlash(paths["a.ts"]),
		[]byte("import { c } from \"./c\";\n"), 0o644))
	s.Invalidate(paths["a.ts"])

	deps, err = s.Analyze(ctx, paths["a.ts"])
	require.NoError(t, err)
	assert.Equal(t, []string{paths["c.ts"]}, depPaths(deps))

	// The reverse index replaced the old edge set.
	refs, err := s.FindReferencingFiles(ctx, paths["b.ts"])
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestSpider_RemoveFile_DropsEdges(t *testing.T) {
	t.Parallel()
	root, paths := writeWorkspace(t, map[string]string{
		"a.ts": "import { b } from \"./b\";\n",
		"b.ts": "export const b = 1;\n",
	})
	s := newTestSpider(t, root)
	ctx := context.Background()

	_, err := s.Analyze(ctx, paths["a.ts"])
	require.NoError(t, err)

	s.RemoveFile(paths["a.ts"])

	refs, err := s.FindReferencingFiles(ctx, paths["b.ts"])
	require.NoError(t, err)
	for _, r := range refs {
		assert.NotEqual(t, paths["a.ts"], r.Path)
	}
	assert.Zero(t, s.IndexStats().IndexedFiles)
}

func TestSpider_FindReferencingFiles_IndexAndScanAgree(t *testing.T) {
	t.Parallel()
	files := map[string]string{
		"a.ts":          "import { shared } from \"./lib/shared\";\n",
		"c.ts":          "import { shared } from \"./lib/shared\";\n",
		"unrelated.ts":  "export const u = 1;\n",
		"lib/shared.ts": "export const shared = 1;\n",
	}
	ctx := context.Background()

	// Scan path: a fresh spider with an empty index.
	rootScan, scanPaths := writeWorkspace(t, files)
	scanner := newTestSpider(t, rootScan)
	scanRefs, err := scanner.FindReferencingFiles(ctx, scanPaths["lib/shared.ts"])
	require.NoError(t, err)

	// Index path: same tree, fully analyzed first.
	rootIdx, idxPaths := writeWorkspace(t, files)
	indexed := newTestSpider(t, rootIdx)
	for rel := range files {
		_, err := indexed.Analyze(ctx, idxPaths[rel])
		require.NoError(t, err)
	}
	idxRefs, err := indexed.FindReferencingFiles(ctx, idxPaths["lib/shared.ts"])
	require.NoError(t, err)

	rel := func(root string, refs []Reference) []string {
		out := make([]string, len(refs))
		for i, r := range refs {
			out[i] = r.Path[len(root)+1:]
		}
		return out
	}
	assert.ElementsMatch(t, rel(rootScan, scanRefs), rel(rootIdx, idxRefs),
		"index-backed and scan-backed answers must be the same set")
	assert.ElementsMatch(t, []string{"a.ts", "c.ts"}, rel(rootIdx, idxRefs))
}

func TestSpider_SerializeAndRestoreIndex(t *testing.T) {
	t.Parallel()
	root, paths := writeWorkspace(t, map[string]string{
		"a.ts": "import { b } from \"./b\";\n",
		"b.ts": "export const b = 1;\n",
	})
	s := newTestSpider(t, root)
	ctx := context.Background()

	_, err := s.Analyze(ctx, paths["a.ts"])
	require.NoError(t, err)

	blob, err := s.SerializeIndex()
	require.NoError(t, err)

	// Same root: accepted, answers queries without re-analysis.
	fresh := newTestSpider(t, root)
	require.True(t, fresh.EnableReverseIndex(blob))
	refs, err := fresh.FindReferencingFiles(ctx, paths["b.ts"])
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, paths["a.ts"], refs[0].Path)

	// Different root: discarded.
	other := newTestSpider(t, t.TempDir())
	assert.False(t, other.EnableReverseIndex(blob))
}

func TestSpider_ValidateIndex_DetectsStaleness(t *testing.T) {
	t.Parallel()
	root, paths := writeWorkspace(t, map[string]string{
		"a.ts": "import { b } from \"./b\";\n",
		"b.ts": "export const b = 1;\n",
	})
	s := newTestSpider(t, root)
	ctx := context.Background()

	_, err := s.Analyze(ctx, paths["a.ts"])
	require.NoError(t, err)
	assert.True(t, s.ValidateIndex(0.5).IsValid)

	// Grow the file so its recorded identity no longer matches.
	require.NoError(t, os.WriteFile(filepath.FromSlash(paths["a.ts"]),
		[]byte("import { b } from \"./b\";\nexport const extra = 1;\n"), 0o644))

	v := s.ValidateIndex(0.5)
	assert.False(t, v.IsValid)
	assert.NotEmpty(t, v.StaleFiles)
}

func TestSpider_ClearCaches(t *testing.T) {
	t.Parallel()
	root, paths := writeWorkspace(t, map[string]string{
		"a.ts": "import { b } from \"./b\";\n",
		"b.ts": "export const b = 1;\n",
	})
	s := newTestSpider(t, root)
	ctx := context.Background()

	_, err := s.Analyze(ctx, paths["a.ts"])
	require.NoError(t, err)
	s.ClearCaches()

	deps, symbols := s.CacheStats()
	assert.Zero(t, deps.Size)
	assert.Zero(t, symbols.Size)
	assert.Zero(t, deps.Hits)
}

func TestCancelFlag_Lifecycle(t *testing.T) {
	t.Parallel()
	f := NewCancelFlag()
	assert.False(t, f.Cancelled())

	done := f.Done()
	f.Cancel()
	f.Cancel() // repeat is safe
	assert.True(t, f.Cancelled())
	select {
	case <-done:
	default:
		t.Fatal("done channel should be closed after cancel")
	}

	f.Reset()
	assert.False(t, f.Cancelled())
	select {
	case <-f.Done():
		t.Fatal("reset must produce an unset flag")
	default:
	}
}
