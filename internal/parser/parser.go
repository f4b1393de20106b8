// Package parser is the default per-language fact extractor: it parses a
// source file with tree-sitter and reports raw import records and the
// file's declared symbols and lexical references. The Spider consumes it
// through an interface, so alternative extractors can be dropped in.
package parser

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/mkowalski/depspider/internal/fspath"
	"github.com/mkowalski/depspider/internal/model"
)

// importCaptures maps query capture names to dependency kinds.
var importCaptures = map[string]model.DependencyKind{
	"import.source":  model.KindImport,
	"export.source":  model.KindExport,
	"require.source": model.KindRequire,
	"dynamic.source": model.KindDynamic,
	"import.module":  model.KindImport, // rust `mod name;`
}

// definitionCaptures maps capture names to symbol kinds.
var definitionCaptures = map[string]string{
	"definition.function": "function",
	"definition.class":    "class",
	"definition.method":   "method",
	"definition.type":     "type",
	"definition.variable": "variable",
}

// Parser extracts imports and symbols from source files. Stateless and safe
// for concurrent use; each call creates its own tree-sitter parser.
type Parser struct{}

// New returns the default tree-sitter backed Parser.
func New() *Parser { return &Parser{} }

// Supported reports whether the file's extension has a grammar. Files in
// the collector's extension set without a grammar (schema/query files)
// still become graph nodes; they just contribute no outgoing edges.
func (p *Parser) Supported(path string) bool {
	_, ok := languageForFile(path)
	return ok
}

// ParseImports returns the raw, unresolved import records in a file.
// Files without a grammar parse to an empty record list, not an error.
func (p *Parser) ParseImports(path string, content []byte) ([]model.ImportRecord, error) {
	lang, ok := languageForFile(path)
	if !ok {
		return nil, nil
	}
	tree, query, err := parse(lang, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var records []model.ImportRecord
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, content)

		var modItem *sitter.Node
		for _, c := range match.Captures {
			cname := query.CaptureNameForId(c.Index)
			if cname == "import.mod" {
				modItem = c.Node
			}
		}
		for _, c := range match.Captures {
			cname := query.CaptureNameForId(c.Index)
			kind, isImport := importCaptures[cname]
			if !isImport {
				continue
			}
			// Inline `mod name { ... }` declares a nested module, not a
			// dependency on another file.
			if cname == "import.module" && modItem != nil && modItem.ChildByFieldName("body") != nil {
				continue
			}
			records = append(records, model.ImportRecord{
				Module: unquote(nodeText(c.Node, content)),
				Kind:   kind,
				Line:   int(c.Node.StartPoint().Row) + 1,
			})
		}
	}
	return records, nil
}

// ParseSymbols returns the file's declared symbols and lexical references.
// Symbol IDs are "path:qualifiedName", with methods qualified by their
// containing declaration.
func (p *Parser) ParseSymbols(path string, content []byte) (*model.SymbolGraph, error) {
	norm := fspath.Normalize(path)
	lang, ok := languageForFile(path)
	if !ok {
		return nil, fmt.Errorf("parse symbols %s: unsupported file type", path)
	}
	tree, query, err := parse(lang, content)
	if err != nil {
		return nil, fmt.Errorf("parse symbols %s: %w", path, err)
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	type def struct {
		sym       model.Symbol
		startLine int
		endLine   int
	}
	var defs []def
	var refs []model.SymbolRef

	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, content)

		var nameNode, patternNode *sitter.Node
		var captureName string
		isCall := false
		isIdent := false

		for _, c := range match.Captures {
			cname := query.CaptureNameForId(c.Index)
			switch {
			case cname == "name":
				nameNode = c.Node
			case cname == "reference.call":
				isCall = true
				patternNode = c.Node
			case cname == "reference.ident":
				isIdent = true
				nameNode = c.Node
			default:
				if _, ok := definitionCaptures[cname]; ok {
					captureName = cname
					patternNode = c.Node
				}
			}
		}

		switch {
		case captureName != "" && nameNode != nil:
			kind := definitionCaptures[captureName]
			name := nodeText(nameNode, content)
			qualified := name
			if kind != "class" && kind != "type" {
				if cls := enclosingTypeName(patternNode, content); cls != "" {
					qualified = cls + "." + name
					if kind == "function" {
						kind = "method"
					}
				}
			}
			category := "value"
			if kind == "type" {
				category = "type"
			}
			defs = append(defs, def{
				sym: model.Symbol{
					ID:       norm + ":" + qualified,
					Name:     qualified,
					Kind:     kind,
					Category: category,
					Exported: isExported(lang.name, patternNode, name),
					Line:     int(nameNode.StartPoint().Row) + 1,
				},
				startLine: int(patternNode.StartPoint().Row) + 1,
				endLine:   int(patternNode.EndPoint().Row) + 1,
			})
		case isCall && nameNode != nil:
			refs = append(refs, model.SymbolRef{
				Name:   nodeText(nameNode, content),
				Line:   int(nameNode.StartPoint().Row) + 1,
				IsCall: true,
			})
		case isIdent && nameNode != nil:
			refs = append(refs, model.SymbolRef{
				Name: nodeText(nameNode, content),
				Line: int(nameNode.StartPoint().Row) + 1,
			})
		}
	}

	// Parent containment: a definition's parent is the innermost other
	// definition whose span encloses it.
	sort.Slice(defs, func(i, j int) bool { return defs[i].startLine < defs[j].startLine })
	for i := range defs {
		parent := ""
		parentSpan := 1 << 30
		for j := range defs {
			if i == j {
				continue
			}
			if defs[j].startLine <= defs[i].startLine && defs[i].endLine <= defs[j].endLine {
				if span := defs[j].endLine - defs[j].startLine; span < parentSpan {
					parentSpan = span
					parent = defs[j].sym.ID
				}
			}
		}
		defs[i].sym.ParentID = parent
	}

	// Attribute each reference to its innermost enclosing definition.
	for i := range refs {
		encl := ""
		enclSpan := 1 << 30
		for j := range defs {
			if defs[j].startLine <= refs[i].Line && refs[i].Line <= defs[j].endLine {
				if span := defs[j].endLine - defs[j].startLine; span < enclSpan {
					enclSpan = span
					encl = defs[j].sym.ID
				}
			}
		}
		refs[i].EnclosID = encl
	}

	g := &model.SymbolGraph{File: norm, Refs: refs}
	for _, d := range defs {
		g.Symbols = append(g.Symbols, d.sym)
	}
	return g, nil
}

func parse(lang *language, content []byte) (*sitter.Tree, *sitter.Query, error) {
	query, err := lang.tagQuery()
	if err != nil {
		return nil, nil, err
	}
	parser := lang.newParser()
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, nil, err
	}
	return tree, query, nil
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// unquote strips the surrounding quotes from a string-literal node.
func unquote(s string) string {
	if len(s) >= 2 {
		if c := s[0]; (c == '"' || c == '\'' || c == '`') && s[len(s)-1] == c {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// enclosingTypeName walks ancestors looking for a class-like declaration
// and returns its name.
func enclosingTypeName(node *sitter.Node, source []byte) string {
	for n := node.Parent(); n != nil; n = n.Parent() {
		switch n.Type() {
		case "class_declaration", "class_definition", "impl_item", "trait_item":
			if name := n.ChildByFieldName("name"); name != nil {
				return nodeText(name, source)
			}
			if t := n.ChildByFieldName("type"); t != nil { // rust impl blocks
				return nodeText(t, source)
			}
		}
	}
	return ""
}

// isExported approximates export visibility per language: an enclosing
// export statement (TS/JS), a pub modifier (Rust), or a name without a
// leading underscore (Python).
func isExported(langName string, node *sitter.Node, name string) bool {
	switch langName {
	case "typescript", "tsx", "javascript":
		for n := node.Parent(); n != nil; n = n.Parent() {
			if n.Type() == "export_statement" {
				return true
			}
		}
		return false
	case "rust":
		for i := 0; i < int(node.ChildCount()); i++ {
			if node.Child(i).Type() == "visibility_modifier" {
				return true
			}
		}
		return false
	case "python":
		return !strings.HasPrefix(name, "_")
	}
	return false
}
