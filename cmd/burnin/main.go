// Package main provides the burnin CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"burnin/internal/affected"
	"burnin/internal/changeset"
	"burnin/internal/config"
	"burnin/internal/depgraph"
	"burnin/internal/gitio"
	"burnin/internal/pattern"
	"burnin/internal/plan"
	"burnin/internal/runner"
)

const (
	// baseRefEnv overrides the base reference when no --base flag is given.
	baseRefEnv = "BURN_IN_BASE"
	// shardEnv supplies an external shard override (e.g. "2/4" from a CI
	// matrix); it replaces any plan-computed shard flag.
	shardEnv = "BURN_IN_SHARD"
)

// Version is the current burnin CLI version
var Version = "0.3.1"

var rootCmd = &cobra.Command{
	Use:     "burnin",
	Short:   "Burnin - differential burn-in test selection for CI",
	Long:    `Burnin classifies the files changed against a base branch, traces which test files transitively import them, and runs just those tests repeatedly to surface flakiness before merge.`,
	Version: Version,
}

var (
	baseFlag    string
	configFlag  string
	verboseFlag bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Select affected tests and execute the burn-in",
	Long:  `Computes the change set against the base ref, resolves affected tests through the import graph, and executes the configured test runner on the selection. Exits non-zero if the test runner does.`,
	RunE:  runRun,
}

var (
	runRepeat  int
	runRetries int
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the selection decision without executing anything",
	RunE:  runPlan,
}

var planJSON bool

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show the classified change set against the base ref",
	RunE:  runChanges,
}

var changesJSON bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Inspect the import graph",
}

var graphExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the import graph for debugging",
	Long:  `Writes the file-level import graph to SQLite (--db) or JSON (--out, zstd-compressed when the path ends in .zst). The export is a debugging artifact only; selection always rebuilds the graph from the working tree.`,
	RunE:  runGraphExport,
}

var (
	graphDBPath  string
	graphOutPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&baseFlag, "base", "", "Base ref to diff against (default: $BURN_IN_BASE, then config)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to an explicit configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable diagnostic logging")

	runCmd.Flags().IntVar(&runRepeat, "repeat", 0, "Override the configured per-test repetition count")
	runCmd.Flags().IntVar(&runRetries, "retries", -1, "Override the configured per-test retry count")

	planCmd.Flags().BoolVar(&planJSON, "json", false, "Output the plan as JSON")
	changesCmd.Flags().BoolVar(&changesJSON, "json", false, "Output the change set as JSON")

	graphExportCmd.Flags().StringVar(&graphDBPath, "db", "", "Write the graph to a SQLite database at this path")
	graphExportCmd.Flags().StringVar(&graphOutPath, "out", "", "Write the graph as JSON to this path (.zst compresses)")

	graphCmd.AddCommand(graphExportCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(graphCmd)
}

// env holds everything an invocation needs before analysis starts.
type env struct {
	repo *gitio.Repository
	cfg  *config.Config
	base string
	log  *zap.Logger
}

// setup opens the repository, loads configuration, and resolves the base
// ref. Any failure here is fatal: nothing has run yet.
func setup() (*env, error) {
	log := zap.NewNop()
	if verboseFlag {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("initializing logger: %w", err)
		}
		log = dev
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	repo, err := gitio.Open(cwd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(repo.Root(), configFlag)
	if err != nil {
		return nil, err
	}

	base := baseFlag
	if base == "" {
		base = os.Getenv(baseRefEnv)
	}
	if base == "" {
		base = cfg.BaseRef
	}
	if err := gitio.ValidateRef(base); err != nil {
		return nil, err
	}

	log.Debug("environment ready",
		zap.String("root", repo.Root()), zap.String("base", base))
	return &env{repo: repo, cfg: cfg, base: base, log: log}, nil
}

// lists returns the configured pattern lists.
func (e *env) lists() pattern.Lists {
	test, skip, common := e.cfg.Lists()
	return pattern.Lists{Test: test, Skip: skip, Common: common}
}

// analysis is the outcome of change detection plus dependency tracing.
// analysisErr carries a degraded-but-recoverable failure: the change set
// is still valid, but the affected list is not, and selection falls back
// to sampled full-suite execution.
type analysis struct {
	cs          *changeset.ChangeSet
	affected    []string
	analysisErr error
}

// analyze runs the pipeline up to (but not including) selection. Change
// detection failures are fatal; graph and traversal failures degrade.
func analyze(e *env) (*analysis, error) {
	cs, err := changeset.Build(e.repo, e.base, e.lists())
	if err != nil {
		return nil, err
	}
	e.log.Debug("change set built",
		zap.Int("changed", len(cs.All)),
		zap.Int("tests", len(cs.Tests)),
		zap.Int("skipped", len(cs.Skipped)))

	if cs.Empty() || cs.OnlySkipped() {
		// Selection short-circuits on these; skip the expensive graph build.
		return &analysis{cs: cs}, nil
	}

	if limit := e.cfg.BurnIn.MaxChangedFiles; limit > 0 && len(cs.All) > limit {
		return &analysis{
			cs:          cs,
			analysisErr: fmt.Errorf("%d changed files exceed the %d-file analysis limit", len(cs.All), limit),
		}, nil
	}

	tracked, err := e.repo.TrackedFiles()
	if err != nil {
		return &analysis{cs: cs, analysisErr: err}, nil
	}
	testFiles := pattern.Filter(tracked, e.cfg.BurnIn.TestPatterns)

	resolver := depgraph.NewResolver(e.repo, e.cfg.SourceExtensions, e.log)
	graph, err := resolver.Build(tracked)
	if err != nil {
		return &analysis{cs: cs, analysisErr: err}, nil
	}

	found, err := affected.Find(cs.All, testFiles, graph, affected.Options{
		BasenameFallback: e.cfg.BurnIn.BasenameFallback,
		MaxDepth:         e.cfg.BurnIn.MaxGraphDepth,
	})
	if err != nil {
		return &analysis{cs: cs, analysisErr: err}, nil
	}

	return &analysis{cs: cs, affected: found}, nil
}

// decide turns an analysis into a plan, logging any degradation.
func decide(e *env, a *analysis) (*plan.Plan, error) {
	if a.analysisErr != nil {
		fmt.Fprintf(os.Stderr, "warning: dependency analysis degraded: %v\n", a.analysisErr)
	}
	return plan.Decide(a.cs, a.affected, a.analysisErr, e.cfg.BurnIn.SamplePercent)
}

// settings assembles the execution parameters, applying run flag
// overrides and the environment shard override.
func settings(e *env) runner.Settings {
	s := runner.Settings{
		Command:       e.cfg.Command,
		Repeat:        e.cfg.BurnIn.Repeat,
		Retries:       e.cfg.BurnIn.Retries,
		ShardOverride: os.Getenv(shardEnv),
		BaseRef:       e.base,
	}
	if runRepeat > 0 {
		s.Repeat = runRepeat
	}
	if runRetries >= 0 {
		s.Retries = runRetries
	}
	return s
}

func runRun(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}

	a, err := analyze(e)
	if err != nil {
		return err
	}
	p, err := decide(e, a)
	if err != nil {
		return err
	}

	fmt.Printf("Plan: %s\n", p.Reason)

	argv := runner.BuildCommand(p, settings(e))
	if argv == nil {
		fmt.Println("Nothing to run.")
		return nil
	}

	fmt.Printf("Command: %s\n", strings.Join(argv, " "))
	return runner.Run(argv, e.repo.Root(), e.log)
}

// planOutput is the JSON shape of `burnin plan --json`.
type planOutput struct {
	BaseRef          string   `json:"baseRef"`
	Reason           string   `json:"reason"`
	Tests            []string `json:"tests"`
	UseChangedFilter bool     `json:"useChangedFilter"`
	Command          []string `json:"command,omitempty"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}

	a, err := analyze(e)
	if err != nil {
		return err
	}
	p, err := decide(e, a)
	if err != nil {
		return err
	}
	argv := runner.BuildCommand(p, settings(e))

	if planJSON {
		out := planOutput{
			BaseRef:          e.base,
			Reason:           p.Reason,
			Tests:            p.Tests,
			UseChangedFilter: p.UseChangedFilter,
			Command:          argv,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling plan: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Base ref: %s\n", e.base)
	fmt.Printf("Plan: %s\n", p.Reason)
	if argv == nil {
		fmt.Println("Nothing to run.")
		return nil
	}
	fmt.Printf("Command: %s\n", strings.Join(argv, " "))
	return nil
}

// changesOutput is the JSON shape of `burnin changes --json`.
type changesOutput struct {
	BaseRef string   `json:"baseRef"`
	Tests   []string `json:"tests"`
	Skipped []string `json:"skipped"`
	Common  []string `json:"common"`
	Other   []string `json:"other"`
}

func runChanges(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}

	cs, err := changeset.Build(e.repo, e.base, e.lists())
	if err != nil {
		return err
	}

	if changesJSON {
		out := changesOutput{
			BaseRef: cs.BaseRef,
			Tests:   cs.Tests,
			Skipped: cs.Skipped,
			Common:  cs.Common,
			Other:   cs.Other,
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling change set: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Changed against %s: %d file(s)\n", cs.BaseRef, len(cs.All))
	printBucket("test", cs.Tests)
	printBucket("skip", cs.Skipped)
	printBucket("common", cs.Common)
	printBucket("other", cs.Other)
	return nil
}

func printBucket(name string, paths []string) {
	if len(paths) == 0 {
		return
	}
	fmt.Printf("  %s:\n", name)
	for _, p := range paths {
		fmt.Printf("    %s\n", p)
	}
}

func runGraphExport(cmd *cobra.Command, args []string) error {
	if graphDBPath == "" && graphOutPath == "" {
		return fmt.Errorf("nothing to export: pass --db and/or --out")
	}

	e, err := setup()
	if err != nil {
		return err
	}

	tracked, err := e.repo.TrackedFiles()
	if err != nil {
		return err
	}

	resolver := depgraph.NewResolver(e.repo, e.cfg.SourceExtensions, e.log)
	graph, err := resolver.Build(tracked)
	if err != nil {
		return fmt.Errorf("building import graph: %w", err)
	}

	if graphDBPath != "" {
		if err := depgraph.ExportSQLite(graph, graphDBPath); err != nil {
			return err
		}
		fmt.Printf("Graph written to %s\n", graphDBPath)
	}
	if graphOutPath != "" {
		if err := depgraph.ExportJSON(graph, graphOutPath); err != nil {
			return err
		}
		fmt.Printf("Graph written to %s\n", graphOutPath)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
