// Package model defines the data types shared by the depspider subsystems:
// resolved dependency edges, file-level graphs, per-file symbol graphs, and
// the raw records produced by parsers. The root package re-exports these via
// type aliases.
package model

// DependencyKind classifies how a dependency edge was introduced in source.
type DependencyKind string

const (
	KindImport  DependencyKind = "import"
	KindRequire DependencyKind = "require"
	KindExport  DependencyKind = "export"
	KindDynamic DependencyKind = "dynamic"
)

// Dependency is one resolved edge from a source file to a target file.
// Path is the normalized target path. Module retains the original unresolved
// specifier for diagnostics.
type Dependency struct {
	Path   string         `json:"path"`
	Kind   DependencyKind `json:"kind"`
	Line   int            `json:"line"`
	Module string         `json:"module"`
}

// Reference is one inbound edge: a source file that depends on the queried
// target, with the metadata of that edge.
type Reference struct {
	Path   string         `json:"path"`
	Kind   DependencyKind `json:"kind"`
	Line   int            `json:"line"`
	Module string         `json:"module"`
}

// FileMeta is the modification identity of a source file, used for
// staleness detection.
type FileMeta struct {
	ModTime int64 `json:"mtime"` // unix nanoseconds
	Size    int64 `json:"size"`
}

// Edge is a directed file-level edge in a Graph.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is a file-level dependency graph. Every edge endpoint is present in
// Nodes.
type Graph struct {
	Nodes      []string          `json:"nodes"`
	Edges      []Edge            `json:"edges"`
	NodeLabels map[string]string `json:"nodeLabels,omitempty"`
}

// ImportRecord is a raw, unresolved import statement as reported by a
// parser, before path resolution.
type ImportRecord struct {
	Module string
	Kind   DependencyKind
	Line   int
}

// Symbol is one declared symbol in a file. ID is "path:qualifiedName".
// ParentID models containment (a method belongs to its class) and is empty
// for top-level symbols.
type Symbol struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`     // function, class, method, variable, ...
	Category string `json:"category"` // declaration category: value or type
	Exported bool   `json:"isExported"`
	ParentID string `json:"parentSymbolId,omitempty"`
	Line     int    `json:"line"`
}

// SymbolRef is a raw lexical reference to a name, as reported by a parser.
type SymbolRef struct {
	Name     string
	Line     int
	IsCall   bool
	EnclosID string // ID of the enclosing declared symbol, if any
}

// SymbolDependency is an edge in the symbol-level call/reference graph.
type SymbolDependency struct {
	SourceID   string `json:"sourceSymbolId"`
	TargetID   string `json:"targetSymbolId"`
	TargetFile string `json:"targetFilePath"`
	TypeOnly   bool   `json:"isTypeOnly"`
	Relation   string `json:"relationType"` // call or reference
}

// SymbolGraph is the per-file symbol graph: declared symbols plus the
// call/reference edges between them and into other files.
type SymbolGraph struct {
	File         string             `json:"file"`
	Symbols      []Symbol           `json:"symbols"`
	Dependencies []SymbolDependency `json:"dependencies"`
	Refs         []SymbolRef        `json:"-"`
}
