package parser

import (
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	ts "github.com/smacker/go-tree-sitter/typescript/typescript"
)

//go:embed queries/*.scm
var queryFS embed.FS

// language holds tree-sitter configuration for one supported grammar.
type language struct {
	name    string
	grammar *sitter.Language

	queryOnce sync.Once
	query     *sitter.Query
	queryErr  error
}

// newParser returns a fresh tree-sitter parser for this language. Parsers
// are not goroutine-safe; each call site creates its own.
func (l *language) newParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.grammar)
	return p
}

// tagQuery returns the compiled tag query, shared across goroutines.
func (l *language) tagQuery() (*sitter.Query, error) {
	l.queryOnce.Do(func() {
		data, err := queryFS.ReadFile(fmt.Sprintf("queries/%s.scm", l.name))
		if err != nil {
			l.queryErr = fmt.Errorf("reading query file: %w", err)
			return
		}
		q, err := sitter.NewQuery(data, l.grammar)
		if err != nil {
			l.queryErr = fmt.Errorf("compiling %s query: %w", l.name, err)
			return
		}
		l.query = q
	})
	return l.query, l.queryErr
}

// extToLanguage maps file extensions to canonical language names.
var extToLanguage = map[string]string{
	".ts":  "typescript",
	".tsx": "tsx",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
	".py":  "python",
	".rs":  "rust",
}

var (
	languages     map[string]*language
	languagesOnce sync.Once
)

func initLanguages() {
	languagesOnce.Do(func() {
		languages = map[string]*language{
			"typescript": {name: "typescript", grammar: ts.GetLanguage()},
			"tsx":        {name: "tsx", grammar: tsx.GetLanguage()},
			"javascript": {name: "javascript", grammar: javascript.GetLanguage()},
			"python":     {name: "python", grammar: python.GetLanguage()},
			"rust":       {name: "rust", grammar: rust.GetLanguage()},
		}
	})
}

// languageForFile returns the language configuration for a file path, based
// on its extension. Returns (nil, false) for extensions without a grammar.
func languageForFile(path string) (*language, bool) {
	initLanguages()
	name, ok := extToLanguage[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, false
	}
	l, ok := languages[name]
	return l, ok
}
