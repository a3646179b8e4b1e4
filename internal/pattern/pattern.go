// Package pattern classifies repository paths against configured glob lists.
package pattern

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Category is the bucket a changed file falls into. The order of the
// constants is the classification priority: a path matching several lists
// resolves to the highest-priority category (test > skip > common > other).
type Category int

const (
	CategoryTest Category = iota
	CategorySkip
	CategoryCommon
	CategoryOther
)

func (c Category) String() string {
	switch c {
	case CategoryTest:
		return "test"
	case CategorySkip:
		return "skip"
	case CategoryCommon:
		return "common"
	default:
		return "other"
	}
}

// Lists holds the three configured glob lists used for classification.
type Lists struct {
	Test   []string
	Skip   []string
	Common []string
}

// Resolve classifies a repository-relative path. Priority is fixed:
// test patterns win over skip patterns, which win over common patterns.
func Resolve(p string, lists Lists) Category {
	switch {
	case Matches(p, lists.Test):
		return CategoryTest
	case Matches(p, lists.Skip):
		return CategorySkip
	case Matches(p, lists.Common):
		return CategoryCommon
	default:
		return CategoryOther
	}
}

// Matches reports whether the path matches any of the glob patterns.
// Patterns use doublestar semantics (**, *, brace and bracket classes).
// A pattern without a slash also matches the basename at any depth,
// mirroring gitignore behavior. An invalid pattern is warned about and
// treated as a non-match so one bad pattern does not abort the run.
func Matches(p string, patterns []string) bool {
	p = Normalize(p)

	for _, pat := range patterns {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}

		ok, err := doublestar.Match(pat, p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: invalid glob pattern %q: %v\n", pat, err)
			continue
		}
		if ok {
			return true
		}

		// Slashless patterns match the basename anywhere in the tree.
		if !strings.Contains(pat, "/") {
			if ok, err := doublestar.Match(pat, path.Base(p)); err == nil && ok {
				return true
			}
		}
	}

	return false
}

// Filter returns the subset of paths matching any of the patterns,
// preserving input order.
func Filter(paths []string, patterns []string) []string {
	var out []string
	for _, p := range paths {
		if Matches(p, patterns) {
			out = append(out, p)
		}
	}
	return out
}

// Normalize converts a path to the canonical repository-relative form used
// throughout the engine: forward slashes, no leading "./". Backslash
// separators are converted regardless of host OS, since changed-file lists
// can originate on Windows checkouts.
func Normalize(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimPrefix(p, "./")
	return p
}
