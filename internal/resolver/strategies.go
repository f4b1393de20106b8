package resolver

import (
	"strings"

	"github.com/mkowalski/depspider/internal/fspath"
)

// staticAliasStrategy matches against the explicitly configured alias file,
// loaded once at construction.
type staticAliasStrategy struct {
	r   *Resolver
	cfg *aliasConfig
}

func (s *staticAliasStrategy) name() string { return "static-alias" }

func (s *staticAliasStrategy) try(_, specifier string) (string, bool) {
	if isRelativeSpecifier(specifier) {
		return "", false
	}
	return s.r.resolveAlias(s.cfg, specifier)
}

// discoveredAliasStrategy walks parent directories from the importing file
// up to the workspace root for the nearest alias-configuration file and
// matches against its extends-merged paths map.
type discoveredAliasStrategy struct{ r *Resolver }

func (s *discoveredAliasStrategy) name() string { return "discovered-alias" }

func (s *discoveredAliasStrategy) try(fromFile, specifier string) (string, bool) {
	if isRelativeSpecifier(specifier) {
		return "", false
	}
	dir := fspath.Dir(fromFile)
	for _, name := range []string{aliasConfigName, aliasConfigAltName} {
		cfgPath := s.r.nearestFile(dir, name)
		if cfgPath == "" {
			continue
		}
		cfg := s.r.loadAliasConfig(fspath.Normalize(cfgPath))
		if p, ok := s.r.resolveAlias(cfg, specifier); ok {
			return p, true
		}
	}
	return "", false
}

// subpathImportStrategy resolves reserved-prefix specifiers ("#...") via
// the nearest package manifest's imports map.
type subpathImportStrategy struct{ r *Resolver }

func (s *subpathImportStrategy) name() string { return "subpath-import" }

func (s *subpathImportStrategy) try(fromFile, specifier string) (string, bool) {
	if !strings.HasPrefix(specifier, "#") {
		return "", false
	}
	m := s.r.nearestManifest(fspath.Dir(fromFile))
	return s.r.resolveImportMap(m, specifier)
}

// scopedPackageStrategy resolves "@scope/name[/subpath]" specifiers via, in
// order: the nearest manifest's import and alias maps, a manifest-declared
// "file:" dependency found by walking ancestor manifests, then conventional
// monorepo package directories under the workspace root.
type scopedPackageStrategy struct{ r *Resolver }

func (s *scopedPackageStrategy) name() string { return "scoped-package" }

func (s *scopedPackageStrategy) try(fromFile, specifier string) (string, bool) {
	if !strings.HasPrefix(specifier, "@") {
		return "", false
	}
	pkg, subpath := splitScopedSpecifier(specifier)
	if pkg == "" {
		return "", false
	}
	dir := fspath.Dir(fromFile)

	// Manifest import/alias maps.
	if m := s.r.nearestManifest(dir); m != nil {
		if p, ok := s.r.resolveImportMap(m, specifier); ok {
			return p, true
		}
		if target, ok := m.Aliases[pkg]; ok {
			if p, ok := s.r.packageEntryPoint(fspath.Join(m.dir, target), subpath); ok {
				return p, true
			}
		}
	}

	// file: dependencies, searched through every ancestor manifest.
	d := dir
	for {
		mPath := s.r.nearestFile(d, manifestName)
		if mPath == "" {
			break
		}
		m := s.r.loadManifest(fspath.Normalize(mPath))
		if m != nil {
			if rel, ok := fileDependency(m, pkg); ok {
				if p, ok := s.r.packageEntryPoint(fspath.Join(m.dir, rel), subpath); ok {
					return p, true
				}
			}
			d = m.dir
		} else {
			d = fspath.Dir(mPath)
		}
		if !s.r.withinRoot(d) || d == s.r.root {
			break
		}
		d = fspath.Dir(d)
	}

	// Conventional monorepo package directories.
	bare := pkg[strings.Index(pkg, "/")+1:]
	for _, container := range []string{"packages", "libs", "modules"} {
		for _, candidate := range []string{bare, pkg} {
			pkgDir := s.r.root + "/" + container + "/" + candidate
			if p, ok := s.r.packageEntryPoint(pkgDir, subpath); ok {
				return p, true
			}
		}
	}
	return "", false
}

// splitScopedSpecifier splits "@scope/name/sub/path" into the package name
// ("@scope/name") and the remaining subpath.
func splitScopedSpecifier(specifier string) (pkg, subpath string) {
	parts := strings.SplitN(specifier, "/", 3)
	if len(parts) < 2 {
		return "", ""
	}
	pkg = parts[0] + "/" + parts[1]
	if len(parts) == 3 {
		subpath = parts[2]
	}
	return pkg, subpath
}

// fileDependency returns the relative path of a "file:" dependency
// declaration for pkg, checking dependencies, devDependencies, and
// peerDependencies.
func fileDependency(m *manifest, pkg string) (string, bool) {
	for _, deps := range []map[string]string{m.Dependencies, m.DevDependencies, m.PeerDependencies} {
		if v, ok := deps[pkg]; ok && strings.HasPrefix(v, "file:") {
			return strings.TrimPrefix(v, "file:"), true
		}
	}
	return "", false
}

// packageEntryPoint resolves a file inside a matched package directory.
// With a subpath it probes that subpath; otherwise it tries a source-
// directory index, the manifest's declared main/module field, then a bare
// index.
func (r *Resolver) packageEntryPoint(pkgDir, subpath string) (string, bool) {
	if subpath != "" {
		if p, ok := r.probe(pkgDir+"/"+subpath, "index"); ok {
			return p, true
		}
		return r.probe(pkgDir+"/src/"+subpath, "index")
	}
	if p, ok := r.probe(pkgDir+"/src/index"); ok {
		return p, true
	}
	if m := r.loadManifest(pkgDir + "/" + manifestName); m != nil {
		for _, entry := range []string{m.Module, m.Main} {
			if entry == "" {
				continue
			}
			if p, ok := r.probe(pkgDir + "/" + entry); ok {
				return p, true
			}
		}
	}
	return r.probe(pkgDir + "/index")
}

// relativeStrategy resolves plain "./" and "../" specifiers against the
// importing file's directory. Last in the chain.
type relativeStrategy struct{ r *Resolver }

func (s *relativeStrategy) name() string { return "relative" }

func (s *relativeStrategy) try(fromFile, specifier string) (string, bool) {
	if !isRelativeSpecifier(specifier) {
		return "", false
	}
	return s.r.probe(fspath.Dir(fromFile)+"/"+specifier, "index")
}

// externalStrategy treats bare specifiers with no language-specific match
// as external-ecosystem references: returned verbatim when externals are
// included, otherwise a miss.
type externalStrategy struct{ r *Resolver }

func (s *externalStrategy) name() string { return "external" }

func (s *externalStrategy) try(_, specifier string) (string, bool) {
	if isRelativeSpecifier(specifier) || strings.HasPrefix(specifier, "#") {
		return "", false
	}
	if !s.r.includeExternals {
		return "", false
	}
	return specifier, true
}

func isRelativeSpecifier(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") ||
		specifier == "." || specifier == ".."
}
