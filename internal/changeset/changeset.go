// Package changeset classifies the files changed against a base ref into
// the buckets the selection policy operates on.
package changeset

import (
	"fmt"

	"burnin/internal/gitio"
	"burnin/internal/pattern"
)

// ChangeSet is the classified view of a diff against a base ref.
type ChangeSet struct {
	BaseRef string

	// All is the full changed-file list in sorted order.
	All []string

	// Tests are changed files matching the test patterns.
	Tests []string
	// Skipped are changed files matching the skip patterns.
	Skipped []string
	// Common are changed files matching the common patterns.
	Common []string
	// Other is everything else: production code whose impact must be
	// traced through the import graph.
	Other []string
}

// Classify buckets already-known changed paths. Paths are normalized
// before matching; classification priority is test > skip > common.
func Classify(baseRef string, paths []string, lists pattern.Lists) *ChangeSet {
	cs := &ChangeSet{BaseRef: baseRef}
	for _, p := range paths {
		p = pattern.Normalize(p)
		cs.All = append(cs.All, p)
		switch pattern.Resolve(p, lists) {
		case pattern.CategoryTest:
			cs.Tests = append(cs.Tests, p)
		case pattern.CategorySkip:
			cs.Skipped = append(cs.Skipped, p)
		case pattern.CategoryCommon:
			cs.Common = append(cs.Common, p)
		default:
			cs.Other = append(cs.Other, p)
		}
	}
	return cs
}

// Build diffs the repository against baseRef and classifies the result.
func Build(repo *gitio.Repository, baseRef string, lists pattern.Lists) (*ChangeSet, error) {
	paths, err := repo.ChangedFiles(baseRef)
	if err != nil {
		return nil, fmt.Errorf("detecting changes against %s: %w", baseRef, err)
	}
	return Classify(baseRef, paths, lists), nil
}

// Empty reports whether nothing changed at all.
func (cs *ChangeSet) Empty() bool {
	return len(cs.All) == 0
}

// OnlySkipped reports whether every changed file matched a skip pattern.
func (cs *ChangeSet) OnlySkipped() bool {
	return !cs.Empty() && len(cs.Skipped) == len(cs.All)
}
