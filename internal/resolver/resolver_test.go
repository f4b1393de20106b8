package resolver

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkowalski/depspider/internal/fspath"
)

// writeFile creates rel (slash-separated) under root with parent dirs.
func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return fspath.Normalize(p)
}

func newTestResolver(t *testing.T, root string, opts ...func(*Config)) *Resolver {
	t.Helper()
	cfg := Config{Root: root}
	for _, o := range opts {
		o(&cfg)
	}
	return New(cfg)
}

func TestResolver_Relative_ExtensionProbing(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	from := writeFile(t, root, "src/a.ts", "")
	b := writeFile(t, root, "src/b.ts", "")
	exact := writeFile(t, root, "src/c.js", "")
	idx := writeFile(t, root, "src/widgets/index.ts", "")
	r := newTestResolver(t, root)

	got, ok := r.Resolve(from, "./b")
	require.True(t, ok)
	assert.Equal(t, b, got)

	got, ok = r.Resolve(from, "./c.js")
	require.True(t, ok)
	assert.Equal(t, exact, got)

	// Directory specifiers fall through to the index file.
	got, ok = r.Resolve(from, "./widgets")
	require.True(t, ok)
	assert.Equal(t, idx, got)

	_, ok = r.Resolve(from, "./missing")
	assert.False(t, ok, "a miss is not an error, just no edge")
}

func TestResolver_Resolve_LogsWinningStrategy(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	from := writeFile(t, root, "src/a.ts", "")
	writeFile(t, root, "src/b.ts", "")

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := newTestResolver(t, root, func(c *Config) { c.Logger = logger })

	_, ok := r.Resolve(from, "./b")
	require.True(t, ok)
	assert.Contains(t, buf.String(), "strategy=relative")
}

func TestResolver_Relative_ParentTraversal(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	from := writeFile(t, root, "src/deep/a.ts", "")
	target := writeFile(t, root, "src/shared.ts", "")
	r := newTestResolver(t, root)

	got, ok := r.Resolve(from, "../shared")
	require.True(t, ok)
	assert.Equal(t, target, got)
}

func TestResolver_DiscoveredAlias_Wildcard(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "tsconfig.json", `{
		"compilerOptions": {
			"baseUrl": ".",
			"paths": {
				"@shared/*": ["src/shared/*"],
				"app-config": ["src/config.ts"]
			}
		}
	}`)
	from := writeFile(t, root, "src/feature/a.ts", "")
	util := writeFile(t, root, "src/shared/util.ts", "")
	cfgFile := writeFile(t, root, "src/config.ts", "")
	r := newTestResolver(t, root)

	got, ok := r.Resolve(from, "@shared/util")
	require.True(t, ok)
	assert.Equal(t, util, got)

	// Exact (non-wildcard) alias entries match whole specifiers only.
	got, ok = r.Resolve(from, "app-config")
	require.True(t, ok)
	assert.Equal(t, cfgFile, got)

	_, ok = r.Resolve(from, "app-config/extra")
	assert.False(t, ok)
}

func TestResolver_Alias_ExtendsChain(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "tsconfig.base.json", `{
		"compilerOptions": {"paths": {"@lib/*": ["base-lib/*"], "@app/*": ["wrong/*"]}}
	}`)
	writeFile(t, root, "tsconfig.json", `{
		"extends": "./tsconfig.base",
		"compilerOptions": {"paths": {"@app/*": ["app/*"]}}
	}`)
	from := writeFile(t, root, "src/a.ts", "")
	inherited := writeFile(t, root, "base-lib/x.ts", "")
	overridden := writeFile(t, root, "app/y.ts", "")
	writeFile(t, root, "wrong/y.ts", "")
	r := newTestResolver(t, root)

	got, ok := r.Resolve(from, "@lib/x")
	require.True(t, ok)
	assert.Equal(t, inherited, got, "ancestor entries survive the merge")

	got, ok = r.Resolve(from, "@app/y")
	require.True(t, ok)
	assert.Equal(t, overridden, got, "child entries override ancestors")
}

func TestResolver_Alias_JSONCAndMalformed(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "tsconfig.json", `{
		// line comment
		"compilerOptions": {
			/* block comment */
			"paths": {"~/*": ["src/*"]}
		}
	}`)
	from := writeFile(t, root, "src/a.ts", "")
	target := writeFile(t, root, "src/lib/b.ts", "")
	r := newTestResolver(t, root)

	got, ok := r.Resolve(from, "~/lib/b")
	require.True(t, ok)
	assert.Equal(t, target, got)

	// A malformed config is skipped, never fatal.
	broken := t.TempDir()
	writeFile(t, broken, "tsconfig.json", `{not valid json`)
	from2 := writeFile(t, broken, "a.ts", "")
	r2 := newTestResolver(t, broken)
	_, ok = r2.Resolve(from2, "~/anything")
	assert.False(t, ok)
}

func TestResolver_StaticAliasConfig(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	cfgPath := writeFile(t, root, "configs/paths.json", `{
		"compilerOptions": {"baseUrl": "..", "paths": {"@core/*": ["core/*"]}}
	}`)
	from := writeFile(t, root, "src/a.ts", "")
	target := writeFile(t, root, "core/engine.ts", "")
	r := newTestResolver(t, root, func(c *Config) { c.AliasConfigPath = cfgPath })

	got, ok := r.Resolve(from, "@core/engine")
	require.True(t, ok)
	assert.Equal(t, target, got)
}

func TestResolver_SubpathImports(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "package.json", `{
		"name": "app",
		"imports": {
			"#utils/*": "./src/utils/*",
			"#db": {"node": "./src/db/node.ts", "default": "./src/db/default.ts"}
		}
	}`)
	from := writeFile(t, root, "src/a.ts", "")
	fmtFile := writeFile(t, root, "src/utils/fmt.ts", "")
	nodeDB := writeFile(t, root, "src/db/node.ts", "")
	writeFile(t, root, "src/db/default.ts", "")
	r := newTestResolver(t, root)

	got, ok := r.Resolve(from, "#utils/fmt")
	require.True(t, ok)
	assert.Equal(t, fmtFile, got)

	// Conditional targets collapse in priority order; "node" beats "default".
	got, ok = r.Resolve(from, "#db")
	require.True(t, ok)
	assert.Equal(t, nodeDB, got)

	_, ok = r.Resolve(from, "#unknown")
	assert.False(t, ok)
}

func TestResolver_ScopedPackage_FileDependency(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "package.json", `{
		"name": "app",
		"dependencies": {"@acme/lib": "file:./vendor/lib"}
	}`)
	from := writeFile(t, root, "src/a.ts", "")
	entry := writeFile(t, root, "vendor/lib/index.ts", "")
	r := newTestResolver(t, root)

	got, ok := r.Resolve(from, "@acme/lib")
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestResolver_ScopedPackage_MonorepoDirs(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	from := writeFile(t, root, "apps/web/a.ts", "")
	entry := writeFile(t, root, "packages/ui/src/index.ts", "")
	button := writeFile(t, root, "packages/ui/src/button.ts", "")
	r := newTestResolver(t, root)

	got, ok := r.Resolve(from, "@acme/ui")
	require.True(t, ok)
	assert.Equal(t, entry, got)

	got, ok = r.Resolve(from, "@acme/ui/button")
	require.True(t, ok)
	assert.Equal(t, button, got)
}

func TestResolver_ScopedPackage_ManifestMain(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "packages/core/package.json", `{"name": "@acme/core", "main": "lib/entry.js"}`)
	entry := writeFile(t, root, "packages/core/lib/entry.js", "")
	from := writeFile(t, root, "apps/web/a.ts", "")
	r := newTestResolver(t, root)

	got, ok := r.Resolve(from, "@acme/core")
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestResolver_Python_RelativeImports(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	from := writeFile(t, root, "pkg/sub/a.py", "")
	utils := writeFile(t, root, "pkg/sub/utils.py", "")
	sibling := writeFile(t, root, "pkg/other/mod.py", "")
	subInit := writeFile(t, root, "pkg/sub/__init__.py", "")
	pkgInit := writeFile(t, root, "pkg/helpers/__init__.py", "")
	r := newTestResolver(t, root)

	got, ok := r.Resolve(from, ".utils")
	require.True(t, ok)
	assert.Equal(t, utils, got)

	// Two dots climb one package level.
	got, ok = r.Resolve(from, "..other.mod")
	require.True(t, ok)
	assert.Equal(t, sibling, got)

	// "from . import x" targets the package itself.
	got, ok = r.Resolve(from, ".")
	require.True(t, ok)
	assert.Equal(t, subInit, got)

	// A package directory resolves to its init file.
	got, ok = r.Resolve(from, "..helpers")
	require.True(t, ok)
	assert.Equal(t, pkgInit, got)
}

func TestResolver_Python_AbsoluteImportSearchesUpward(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	from := writeFile(t, root, "app/services/a.py", "")
	target := writeFile(t, root, "common/helpers.py", "")
	r := newTestResolver(t, root)

	got, ok := r.Resolve(from, "common.helpers")
	require.True(t, ok)
	assert.Equal(t, target, got)

	// Python strategies only fire from Python files.
	tsFrom := writeFile(t, root, "app/a.ts", "")
	_, ok = r.Resolve(tsFrom, "common.helpers")
	assert.False(t, ok)
}

func TestResolver_Rust_ModulePaths(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	from := writeFile(t, root, "src/main.rs", "")
	parserFile := writeFile(t, root, "src/parser.rs", "")
	configMod := writeFile(t, root, "src/config/mod.rs", "")
	deepFrom := writeFile(t, root, "src/net/http.rs", "")
	shared := writeFile(t, root, "src/shared.rs", "")
	r := newTestResolver(t, root)

	// Bare name from `mod parser;`.
	got, ok := r.Resolve(from, "parser")
	require.True(t, ok)
	assert.Equal(t, parserFile, got)

	// name/mod.rs layout.
	got, ok = r.Resolve(from, "config")
	require.True(t, ok)
	assert.Equal(t, configMod, got)

	// Trailing segments naming symbols fall back to the module file.
	got, ok = r.Resolve(from, "parser::Config")
	require.True(t, ok)
	assert.Equal(t, parserFile, got)

	got, ok = r.Resolve(deepFrom, "crate::parser")
	require.True(t, ok)
	assert.Equal(t, parserFile, got)

	got, ok = r.Resolve(deepFrom, "super::shared")
	require.True(t, ok)
	assert.Equal(t, shared, got)

	_, ok = r.Resolve(from, "std::collections::HashMap")
	assert.False(t, ok)
}

func TestResolver_Externals_Toggle(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	from := writeFile(t, root, "src/a.ts", "")

	r := newTestResolver(t, root)
	_, ok := r.Resolve(from, "lodash")
	assert.False(t, ok, "externals are dropped by default")

	r2 := newTestResolver(t, root, func(c *Config) { c.IncludeExternals = true })
	got, ok := r2.Resolve(from, "lodash")
	require.True(t, ok)
	assert.Equal(t, "lodash", got, "externals pass through verbatim")

	// Local resolution still wins over the external fallback.
	b := writeFile(t, root, "src/b.ts", "")
	got, ok = r2.Resolve(from, "./b")
	require.True(t, ok)
	assert.Equal(t, b, got)
}

func TestResolver_EmptySpecifier(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	from := writeFile(t, root, "a.ts", "")
	r := newTestResolver(t, root)

	_, ok := r.Resolve(from, "")
	assert.False(t, ok)
}

func TestResolver_NearestFile_MemoizesAcrossSiblings(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	cfg := writeFile(t, root, "tsconfig.json", `{"compilerOptions": {"paths": {"@x/*": ["src/x/*"]}}}`)
	a := writeFile(t, root, "src/deep/one/a.ts", "")
	b := writeFile(t, root, "src/deep/two/b.ts", "")
	target := writeFile(t, root, "src/x/t.ts", "")
	r := newTestResolver(t, root)

	for _, from := range []string{a, b} {
		got, ok := r.Resolve(from, "@x/t")
		require.True(t, ok)
		assert.Equal(t, target, got)
	}
	assert.Equal(t, cfg, r.nearestFile(fspath.Dir(a), aliasConfigName))
}
