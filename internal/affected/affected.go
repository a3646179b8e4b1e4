// Package affected decides which test files transitively import a
// changed file, by reachability search over the import graph.
package affected

import (
	"errors"
	"path"

	"burnin/internal/pattern"
)

// Lookup is the adjacency source the search runs over. The import graph
// satisfies it; tests can supply a plain map-backed double.
type Lookup interface {
	Neighbors(node string) []string
}

// ErrDepthExceeded indicates a search hit the configured depth cap before
// exhausting the frontier. Callers treat this as "analysis unavailable"
// and fall back to sampled full-suite execution.
var ErrDepthExceeded = errors.New("dependency search exceeded depth limit")

// Options tune the reachability search.
type Options struct {
	// BasenameFallback also matches a changed file by trailing path
	// segment when no exact path matched the node. Looser, may produce
	// false positives for same-named files in different directories.
	BasenameFallback bool
	// MaxDepth caps BFS depth per test. 0 means unlimited.
	MaxDepth int
}

// Find returns the subset of testFiles from which at least one changed
// file is reachable via import edges, preserving testFiles order. Each
// test gets its own breadth-first search with a visited set, so cyclic
// graphs terminate.
func Find(changedFiles, testFiles []string, graph Lookup, opts Options) ([]string, error) {
	exact := make(map[string]struct{}, len(changedFiles))
	basenames := make(map[string]struct{}, len(changedFiles))
	for _, f := range changedFiles {
		f = pattern.Normalize(f)
		exact[f] = struct{}{}
		basenames[path.Base(f)] = struct{}{}
	}

	var out []string
	for _, test := range testFiles {
		hit, err := reachesChanged(test, graph, exact, basenames, opts)
		if err != nil {
			return nil, err
		}
		if hit {
			out = append(out, test)
		}
	}
	return out, nil
}

// reachesChanged runs one BFS from the test's own node.
func reachesChanged(start string, graph Lookup, exact, basenames map[string]struct{}, opts Options) (bool, error) {
	start = pattern.Normalize(start)
	visited := map[string]struct{}{start: {}}
	frontier := []string{start}
	depth := 0

	for len(frontier) > 0 {
		if opts.MaxDepth > 0 && depth > opts.MaxDepth {
			return false, ErrDepthExceeded
		}

		var next []string
		for _, node := range frontier {
			if matchesChanged(node, exact, basenames, opts) {
				return true, nil
			}
			for _, neighbor := range graph.Neighbors(node) {
				neighbor = pattern.Normalize(neighbor)
				if _, seen := visited[neighbor]; seen {
					continue
				}
				visited[neighbor] = struct{}{}
				next = append(next, neighbor)
			}
		}
		frontier = next
		depth++
	}

	return false, nil
}

// matchesChanged tries exact path equality first, then the optional
// basename fallback.
func matchesChanged(node string, exact, basenames map[string]struct{}, opts Options) bool {
	if _, ok := exact[node]; ok {
		return true
	}
	if !opts.BasenameFallback {
		return false
	}
	_, ok := basenames[path.Base(node)]
	return ok
}
