// Package depgraph builds the file-level import graph used to trace which
// tests can reach a changed file.
package depgraph

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"burnin/internal/parse"
)

// Graph is a directed file-level import graph. An edge a -> b means file
// a imports file b; both endpoints are repository-relative paths.
type Graph struct {
	edges map[string][]string
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{edges: make(map[string][]string)}
}

// AddEdge records that from imports to. Duplicate edges are dropped.
func (g *Graph) AddEdge(from, to string) {
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// Neighbors returns the files imported by p, in insertion order.
func (g *Graph) Neighbors(p string) []string {
	return g.edges[p]
}

// Nodes returns every file appearing in the graph, sorted.
func (g *Graph) Nodes() []string {
	seen := make(map[string]struct{})
	for from, tos := range g.edges {
		seen[from] = struct{}{}
		for _, to := range tos {
			seen[to] = struct{}{}
		}
	}
	nodes := make([]string, 0, len(seen))
	for n := range seen {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	return nodes
}

// Edge is one import relationship, used by the export formats.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Edges returns every edge sorted by (From, To).
func (g *Graph) Edges() []Edge {
	var out []Edge
	for from, tos := range g.edges {
		for _, to := range tos {
			out = append(out, Edge{From: from, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Size returns the number of files with outgoing edges.
func (g *Graph) Size() int {
	return len(g.edges)
}

// FileReader supplies source contents by repository-relative path.
// gitio.Repository satisfies it.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Resolver builds a Graph from tracked files. Parse results are memoized
// by content digest, so files with identical bytes are parsed once.
type Resolver struct {
	reader FileReader
	parser *parse.Parser
	exts   map[string]struct{}
	log    *zap.Logger

	memo map[[32]byte][]parse.Import
}

// NewResolver builds a resolver over the given file source. extensions
// lists the file extensions (with leading dot) included in the graph.
func NewResolver(reader FileReader, extensions []string, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[e] = struct{}{}
	}
	return &Resolver{
		reader: reader,
		parser: parse.NewParser(),
		exts:   exts,
		log:    log,
		memo:   make(map[[32]byte][]parse.Import),
	}
}

// Build parses every tracked source file and resolves its relative
// imports against the tracked-file set. Imports of untracked or bare
// package sources do not produce edges. A file that fails to read or
// parse is skipped with a warning rather than failing the build: a graph
// missing one file still selects more precisely than no graph at all.
func (r *Resolver) Build(trackedFiles []string) (*Graph, error) {
	tracked := make(map[string]struct{}, len(trackedFiles))
	for _, f := range trackedFiles {
		tracked[f] = struct{}{}
	}

	g := NewGraph()
	for _, file := range trackedFiles {
		if _, ok := r.exts[path.Ext(file)]; !ok {
			continue
		}

		imports, err := r.importsOf(file)
		if err != nil {
			r.log.Warn("skipping file in import graph", zap.String("file", file), zap.Error(err))
			continue
		}

		fromDir := path.Dir(file)
		for _, imp := range imports {
			if !imp.IsRelative {
				continue
			}
			resolved := parse.ResolveImportPath(fromDir, imp.Source)
			target, ok := resolveToTracked(resolved, tracked)
			if !ok {
				r.log.Debug("unresolved relative import",
					zap.String("file", file), zap.String("source", imp.Source))
				continue
			}
			g.AddEdge(file, target)
		}
	}

	r.log.Debug("import graph built",
		zap.Int("files", g.Size()), zap.Int("edges", len(g.Edges())))
	return g, nil
}

// importsOf reads and parses one file, consulting the digest memo first.
func (r *Resolver) importsOf(file string) ([]parse.Import, error) {
	content, err := r.reader.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	key := blake3.Sum256(content)
	if imports, ok := r.memo[key]; ok {
		return imports, nil
	}

	imports, err := r.parser.ExtractImports(content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	r.memo[key] = imports
	return imports, nil
}

// resolveToTracked picks the first candidate expansion of an import path
// that names a tracked file.
func resolveToTracked(importPath string, tracked map[string]struct{}) (string, bool) {
	importPath = strings.TrimPrefix(importPath, "/")
	for _, candidate := range parse.PossibleFilePaths(importPath) {
		if _, ok := tracked[candidate]; ok {
			return candidate, true
		}
	}
	return "", false
}
