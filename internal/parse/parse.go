// Package parse extracts import relationships from TypeScript and
// JavaScript sources using Tree-sitter. Only the module graph is needed
// here, so extraction is limited to static imports, dynamic import()
// calls, and CommonJS require() calls.
package parse

import (
	"context"
	"fmt"
	"path"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// Import is one import edge found in a source file.
type Import struct {
	// Source is the import string as written (e.g. "./taxes", "lodash").
	Source string
	// IsRelative is true when the source starts with "." or "/", i.e.
	// when it can resolve to a file inside the repository.
	IsRelative bool
}

// Parser wraps a Tree-sitter parser configured for the JavaScript
// grammar, which also handles the TypeScript subset we care about
// (import statements and call expressions). Not safe for concurrent use.
type Parser struct {
	inner *sitter.Parser
}

// NewParser returns a parser ready for import extraction.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(javascript.GetLanguage())
	return &Parser{inner: p}
}

// ExtractImports parses content and returns every import edge found:
// static import statements, dynamic import() calls, and require() calls.
// Order follows source order; duplicates are preserved.
func (p *Parser) ExtractImports(content []byte) ([]Import, error) {
	tree, err := p.inner.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}

	var imports []Import
	iter := sitter.NewIterator(tree.RootNode(), sitter.DFSMode)
	for {
		n, err := iter.Next()
		if err != nil || n == nil {
			break
		}

		switch n.Type() {
		case "import_statement":
			if imp, ok := importFromStatement(n, content); ok {
				imports = append(imports, imp)
			}
		case "call_expression":
			if imp, ok := importFromCall(n, content); ok {
				imports = append(imports, imp)
			}
		}
	}

	return imports, nil
}

// importFromStatement handles the static forms: default, namespace,
// named, and side-effect imports all carry their source in a string child.
func importFromStatement(node *sitter.Node, content []byte) (Import, bool) {
	source, ok := findSourceString(node, content)
	if !ok {
		return Import{}, false
	}
	return newImport(source), true
}

// importFromCall handles dynamic import("./x") and require("./x").
func importFromCall(node *sitter.Node, content []byte) (Import, bool) {
	if node.ChildCount() < 2 {
		return Import{}, false
	}

	callee := node.Child(0)
	if callee == nil {
		return Import{}, false
	}
	switch {
	case callee.Type() == "import":
	case callee.Type() == "identifier" && callee.Content(content) == "require":
	default:
		return Import{}, false
	}

	args := node.Child(1)
	if args == nil || args.Type() != "arguments" {
		return Import{}, false
	}
	for i := 0; i < int(args.ChildCount()); i++ {
		child := args.Child(i)
		if child.Type() == "string" {
			return newImport(trimQuotes(child.Content(content))), true
		}
	}

	// Computed sources (require(x), import(`./${x}`)) cannot be resolved
	// statically and are ignored.
	return Import{}, false
}

// findSourceString locates the string child carrying the module path.
func findSourceString(node *sitter.Node, content []byte) (string, bool) {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "string" {
			return trimQuotes(child.Content(content)), true
		}
		if s, ok := findSourceString(child, content); ok {
			return s, true
		}
	}
	return "", false
}

func trimQuotes(s string) string {
	return strings.Trim(s, "\"'`")
}

func newImport(source string) Import {
	return Import{
		Source:     source,
		IsRelative: strings.HasPrefix(source, ".") || strings.HasPrefix(source, "/"),
	}
}

// ResolveImportPath resolves a relative import against the directory of
// the importing file, returning a cleaned repository-relative path.
// Non-relative sources (bare package names) are returned unchanged.
func ResolveImportPath(fromDir, source string) string {
	if !strings.HasPrefix(source, ".") {
		return source
	}
	return path.Clean(path.Join(fromDir, source))
}

// sourceExts are the extensions an extensionless import may resolve to,
// in the order the Node/TypeScript resolvers try them.
var sourceExts = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// PossibleFilePaths expands an import path into the candidate files it
// may refer to: the path itself if it already has a source extension,
// otherwise the path with each extension appended and the index files of
// the path treated as a directory.
func PossibleFilePaths(importPath string) []string {
	ext := path.Ext(importPath)
	for _, known := range sourceExts {
		if ext == known {
			return []string{importPath}
		}
	}

	candidates := make([]string, 0, 2*len(sourceExts))
	for _, e := range sourceExts {
		candidates = append(candidates, importPath+e)
	}
	for _, e := range sourceExts {
		candidates = append(candidates, path.Join(importPath, "index"+e))
	}
	return candidates
}
