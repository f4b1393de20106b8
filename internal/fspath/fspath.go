// Package fspath canonicalizes file paths so that every map in depspider
// keys on exactly one spelling per file: absolute, forward-slash separated,
// with a lowercased drive prefix on volume-letter systems.
package fspath

import (
	"path/filepath"
	"strings"
)

// Normalize returns the canonical form of path. Relative paths are made
// absolute against the current working directory first.
func Normalize(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return normalizeAbs(abs)
}

// Join joins path elements and normalizes the result.
func Join(elem ...string) string {
	return Normalize(filepath.Join(elem...))
}

// Dir returns the normalized parent directory of path.
func Dir(path string) string {
	return normalizeAbs(filepath.Dir(filepath.FromSlash(path)))
}

func normalizeAbs(abs string) string {
	s := filepath.ToSlash(filepath.Clean(abs))
	// Lowercase a leading drive letter ("C:/..." and "c:/..." are the same
	// volume on Windows).
	if len(s) >= 2 && s[1] == ':' && s[0] >= 'A' && s[0] <= 'Z' {
		s = strings.ToLower(s[:1]) + s[1:]
	}
	return s
}
