package resolver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/mkowalski/depspider/internal/fspath"
)

// Config file names the resolver discovers by walking parent directories.
const (
	aliasConfigName    = "tsconfig.json"
	aliasConfigAltName = "jsconfig.json"
	manifestName       = "package.json"
)

// aliasConfig is the parsed, extends-merged view of an alias-configuration
// file: a baseUrl plus a paths map whose keys and values may carry a "/*"
// wildcard suffix.
type aliasConfig struct {
	dir     string // directory the config lives in
	baseURL string // resolved against dir
	paths   map[string][]string
}

// rawAliasConfig mirrors the on-disk JSON shape.
type rawAliasConfig struct {
	Extends         string `json:"extends"`
	CompilerOptions struct {
		BaseURL string              `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// loadAliasConfig parses the alias-configuration file at path, following
// its extends chain (child entries override ancestors, cycle-guarded).
// Malformed or unreadable files yield nil: alias configs are optional and
// parse failures are swallowed at this layer.
func (r *Resolver) loadAliasConfig(path string) *aliasConfig {
	r.mu.Lock()
	if cfg, ok := r.aliasCache[path]; ok {
		r.mu.Unlock()
		return cfg
	}
	r.mu.Unlock()

	v, _, _ := r.group.Do("alias:"+path, func() (any, error) {
		cfg := r.parseAliasChain(path, map[string]bool{})
		r.mu.Lock()
		r.aliasCache[path] = cfg
		r.mu.Unlock()
		return cfg, nil
	})
	cfg, _ := v.(*aliasConfig)
	return cfg
}

// parseAliasChain reads one config file and merges its extends ancestry.
func (r *Resolver) parseAliasChain(path string, visited map[string]bool) *aliasConfig {
	if visited[path] {
		return nil // extends cycle
	}
	visited[path] = true

	data, err := os.ReadFile(filepath.FromSlash(path))
	if err != nil {
		return nil
	}
	var raw rawAliasConfig
	if err := json.Unmarshal(stripJSONComments(data), &raw); err != nil {
		r.logger.Debug("ignoring malformed alias config", "path", path, "error", err)
		return nil
	}

	dir := fspath.Dir(path)
	cfg := &aliasConfig{dir: dir, paths: make(map[string][]string)}

	// Ancestor entries first so the child can override them.
	if raw.Extends != "" {
		parentPath := raw.Extends
		if !strings.HasPrefix(parentPath, "/") {
			parentPath = fspath.Join(dir, parentPath)
		}
		if filepath.Ext(parentPath) == "" {
			parentPath += ".json"
		}
		if parent := r.parseAliasChain(fspath.Normalize(parentPath), visited); parent != nil {
			cfg.baseURL = parent.baseURL
			for k, v := range parent.paths {
				cfg.paths[k] = v
			}
		}
	}

	if raw.CompilerOptions.BaseURL != "" {
		cfg.baseURL = fspath.Join(dir, raw.CompilerOptions.BaseURL)
	}
	for k, v := range raw.CompilerOptions.Paths {
		cfg.paths[k] = v
	}
	if cfg.baseURL == "" {
		cfg.baseURL = dir
	}
	return cfg
}

// resolveAlias matches specifier against cfg.paths. Exact entries match
// whole specifiers; wildcard entries ("prefix/*") capture the remainder and
// substitute it into each target's "*". The first target that probes to an
// existing file wins.
func (r *Resolver) resolveAlias(cfg *aliasConfig, specifier string) (string, bool) {
	if cfg == nil || len(cfg.paths) == 0 {
		return "", false
	}
	for pattern, targets := range cfg.paths {
		var captured string
		if strings.HasSuffix(pattern, "/*") {
			prefix := strings.TrimSuffix(pattern, "*")
			if !strings.HasPrefix(specifier, prefix) {
				continue
			}
			captured = strings.TrimPrefix(specifier, prefix)
		} else if pattern != specifier {
			continue
		}
		for _, target := range targets {
			mapped := strings.Replace(target, "*", captured, 1)
			if p, ok := r.probe(cfg.baseURL+"/"+mapped, "index"); ok {
				return p, true
			}
		}
	}
	return "", false
}

// manifest is a parsed package manifest: subpath import map, custom alias
// map, dependency declarations, and entry-point fields.
type manifest struct {
	dir string

	Name             string                     `json:"name"`
	Main             string                     `json:"main"`
	Module           string                     `json:"module"`
	Imports          map[string]json.RawMessage `json:"imports"`
	Aliases          map[string]string          `json:"aliases"`
	Dependencies     map[string]string          `json:"dependencies"`
	DevDependencies  map[string]string          `json:"devDependencies"`
	PeerDependencies map[string]string          `json:"peerDependencies"`
}

// loadManifest parses the package manifest at path. Malformed manifests
// yield nil, never an error.
func (r *Resolver) loadManifest(path string) *manifest {
	r.mu.Lock()
	if m, ok := r.manifestCache[path]; ok {
		r.mu.Unlock()
		return m
	}
	r.mu.Unlock()

	v, _, _ := r.group.Do("manifest:"+path, func() (any, error) {
		var m *manifest
		data, err := os.ReadFile(filepath.FromSlash(path))
		if err == nil {
			var parsed manifest
			if jErr := json.Unmarshal(data, &parsed); jErr == nil {
				parsed.dir = fspath.Dir(path)
				m = &parsed
			} else {
				r.logger.Debug("ignoring malformed manifest", "path", path, "error", jErr)
			}
		}
		r.mu.Lock()
		r.manifestCache[path] = m
		r.mu.Unlock()
		return m, nil
	})
	m, _ := v.(*manifest)
	return m
}

// nearestManifest returns the closest parsed manifest for dir, or nil.
func (r *Resolver) nearestManifest(dir string) *manifest {
	p := r.nearestFile(dir, manifestName)
	if p == "" {
		return nil
	}
	return r.loadManifest(fspath.Normalize(p))
}

// conditionKeys is the collapse order for conditional import-map targets.
var conditionKeys = []string{"import", "require", "node", "browser", "default"}

// collapseConditional reduces an import-map value to a single target string.
// Strings pass through; objects collapse to the first matching condition
// key, recursing through nested conditions.
func collapseConditional(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", false
	}
	for _, key := range conditionKeys {
		if v, ok := obj[key]; ok {
			if s, ok := collapseConditional(v); ok {
				return s, true
			}
		}
	}
	return "", false
}

// resolveImportMap matches specifier against a manifest's imports map,
// supporting exact and wildcard ("prefix/*") entries.
func (r *Resolver) resolveImportMap(m *manifest, specifier string) (string, bool) {
	if m == nil || len(m.Imports) == 0 {
		return "", false
	}
	if raw, ok := m.Imports[specifier]; ok {
		if target, ok := collapseConditional(raw); ok {
			if p, ok := r.probe(m.dir+"/"+target, "index"); ok {
				return p, true
			}
		}
	}
	for pattern, raw := range m.Imports {
		if !strings.HasSuffix(pattern, "/*") {
			continue
		}
		prefix := strings.TrimSuffix(pattern, "*")
		if !strings.HasPrefix(specifier, prefix) {
			continue
		}
		target, ok := collapseConditional(raw)
		if !ok {
			continue
		}
		mapped := strings.Replace(target, "*", strings.TrimPrefix(specifier, prefix), 1)
		if p, ok := r.probe(m.dir+"/"+mapped, "index"); ok {
			return p, true
		}
	}
	return "", false
}

// stripJSONComments removes // and /* */ comments so alias configs written
// as JSONC still parse. String contents are preserved.
func stripJSONComments(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out = append(out, c)
			if c == '\\' && i+1 < len(data) {
				out = append(out, data[i+1])
				i++
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			out = append(out, c)
		case c == '/' && i+1 < len(data) && data[i+1] == '/':
			for i < len(data) && data[i] != '\n' {
				i++
			}
			if i < len(data) {
				out = append(out, '\n')
			}
		case c == '/' && i+1 < len(data) && data[i+1] == '*':
			i += 2
			for i+1 < len(data) && !(data[i] == '*' && data[i+1] == '/') {
				i++
			}
			i++
		default:
			out = append(out, c)
		}
	}
	return out
}
