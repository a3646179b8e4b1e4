// Package plan turns the classified change set and the affected-test
// analysis into a concrete run plan.
package plan

import (
	"fmt"
	"math"

	"burnin/internal/changeset"
)

// Plan is the selection decision handed to the command builder. It is
// self-describing: Reason carries the full rationale for CI logs.
type Plan struct {
	// Tests is the explicit list of test files to run. Meaningful only
	// when UseChangedFilter is false; an empty list means run nothing.
	Tests []string

	// UseChangedFilter selects the fallback: delegate selection to the
	// external runner's own changed-file filter instead of an explicit
	// list.
	UseChangedFilter bool

	// ExtraArgs are plan-supplied flags, e.g. the shard split computed
	// for the fallback.
	ExtraArgs []string

	// Reason explains why this plan was chosen.
	Reason string
}

// Empty reports whether the plan runs nothing.
func (p *Plan) Empty() bool {
	return !p.UseChangedFilter && len(p.Tests) == 0
}

// Decide evaluates the selection rules in order, first match wins:
//
//  1. nothing changed                        -> run nothing
//  2. only skip-pattern files changed        -> run nothing
//  3. analysis failed (analysisErr != nil)   -> fallback via runner filter,
//     sharded to approximate the sampling percentage
//  4. analysis found no affected tests       -> run nothing
//  5. otherwise                              -> deterministic front slice of
//     ceil(len(affected) * samplePercent)
//
// samplePercent outside (0, 1] is a configuration error raised before any
// rule is evaluated.
func Decide(cs *changeset.ChangeSet, affected []string, analysisErr error, samplePercent float64) (*Plan, error) {
	if samplePercent <= 0 || samplePercent > 1 {
		return nil, fmt.Errorf("sample percentage must be in (0, 1], got %v", samplePercent)
	}

	if cs.Empty() {
		return &Plan{Reason: "no changes detected"}, nil
	}

	if cs.OnlySkipped() {
		return &Plan{Reason: "only skip-pattern files changed"}, nil
	}

	if analysisErr != nil {
		shards := int(math.Ceil(1 / samplePercent))
		return &Plan{
			UseChangedFilter: true,
			ExtraArgs:        []string{fmt.Sprintf("--shard=1/%d", shards)},
			Reason: fmt.Sprintf(
				"dependency analysis unavailable (%v): falling back to the runner's changed-file filter across %d shard(s)",
				analysisErr, shards),
		}, nil
	}

	if len(affected) == 0 {
		return &Plan{Reason: "no tests depend on the changed files"}, nil
	}

	count := int(math.Ceil(float64(len(affected)) * samplePercent))
	return &Plan{
		Tests: affected[:count],
		Reason: fmt.Sprintf("%d affected test(s), sampling %.0f%% -> running %d",
			len(affected), samplePercent*100, count),
	}, nil
}
