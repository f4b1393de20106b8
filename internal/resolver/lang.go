package resolver

import (
	"strings"

	"github.com/mkowalski/depspider/internal/fspath"
)

// pythonStrategy resolves dotted Python specifiers from .py files.
//
// Relative form: leading dots select the ancestor directory (one dot is the
// importing file's own package, each extra dot goes up one), the remainder
// becomes path segments. Absolute form: the dotted path is searched from
// the importing file's directory upward to the workspace root, accepting a
// module file or a package-init file at each level.
type pythonStrategy struct{ r *Resolver }

func (s *pythonStrategy) name() string { return "python" }

var pyExts = []string{".py"}

func (s *pythonStrategy) try(fromFile, specifier string) (string, bool) {
	if !strings.HasSuffix(fromFile, ".py") {
		return "", false
	}
	if strings.ContainsAny(specifier, "/:") {
		return "", false
	}
	dir := fspath.Dir(fromFile)

	if strings.HasPrefix(specifier, ".") {
		dots := 0
		for dots < len(specifier) && specifier[dots] == '.' {
			dots++
		}
		base := dir
		for i := 1; i < dots; i++ {
			base = fspath.Dir(base)
		}
		rest := specifier[dots:]
		if rest == "" {
			// "from . import x" targets the package itself.
			return probeWith(base+"/__init__", pyExts, nil)
		}
		target := base + "/" + strings.ReplaceAll(rest, ".", "/")
		return probeWith(target, pyExts, []string{"__init__"})
	}

	// Absolute dotted import: search upward from the importing file's
	// directory to the workspace root.
	rel := strings.ReplaceAll(specifier, ".", "/")
	d := dir
	for {
		if p, ok := probeWith(d+"/"+rel, pyExts, []string{"__init__"}); ok {
			return p, true
		}
		if d == s.r.root || !s.r.withinRoot(d) {
			break
		}
		parent := fspath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	return "", false
}

// rustStrategy resolves colon-delimited Rust module paths from .rs files
// against sibling-file and module-directory conventions: a segment "name"
// is name.rs or name/mod.rs. "crate" anchors the search at the crate root
// (the nearest src/ directory or the workspace root), "self" at the current
// module, "super" one module up.
type rustStrategy struct{ r *Resolver }

func (s *rustStrategy) name() string { return "rust" }

var rsExts = []string{".rs"}

func (s *rustStrategy) try(fromFile, specifier string) (string, bool) {
	if !strings.HasSuffix(fromFile, ".rs") {
		return "", false
	}
	// Bare names (from `mod name;`) are single-segment paths.
	if strings.ContainsAny(specifier, "/.") {
		return "", false
	}
	segments := strings.Split(specifier, "::")
	dir := fspath.Dir(fromFile)

	switch segments[0] {
	case "crate":
		segments = segments[1:]
		dir = s.crateRoot(dir)
	case "self":
		segments = segments[1:]
	case "super":
		for len(segments) > 0 && segments[0] == "super" {
			segments = segments[1:]
			dir = fspath.Dir(dir)
		}
	}
	if len(segments) == 0 {
		return "", false
	}

	// Probe progressively shorter prefixes so "module::Item" resolves to the
	// module file even though the trailing segment names a symbol.
	for end := len(segments); end >= 1; end-- {
		target := dir + "/" + strings.Join(segments[:end], "/")
		if p, ok := probeWith(target, rsExts, []string{"mod"}); ok {
			return p, true
		}
	}
	return "", false
}

// crateRoot walks upward from dir looking for a src directory boundary.
func (s *rustStrategy) crateRoot(dir string) string {
	d := dir
	for s.r.withinRoot(d) {
		if strings.HasSuffix(d, "/src") {
			return d
		}
		parent := fspath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	return s.r.root
}
