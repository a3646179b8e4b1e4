// Package config loads the layered burn-in configuration.
//
// Configuration comes from three sources, later ones overriding earlier
// ones field by field: built-in defaults, a burnin.yaml at the repository
// root, and an optional explicit file passed on the command line. The
// burnIn block is merged key by key rather than replaced wholesale, so a
// file that only sets burnIn.repeat keeps the default pattern lists.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the well-known configuration file probed at the repo root.
const FileName = "burnin.yaml"

// BurnIn holds the selection and execution settings for a burn-in run.
type BurnIn struct {
	// TestPatterns identify test files among tracked/changed paths.
	TestPatterns []string `yaml:"testPatterns"`
	// SkipPatterns name files whose changes never require test execution.
	SkipPatterns []string `yaml:"skipPatterns"`
	// CommonPatterns name files that trigger only a light, sampled burn-in.
	CommonPatterns []string `yaml:"commonPatterns"`

	// Repeat is the per-test repetition count passed to the runner.
	Repeat int `yaml:"repeat"`
	// Retries is the per-test retry count passed to the runner.
	Retries int `yaml:"retries"`
	// SamplePercent is the fraction of the affected set actually run,
	// a rational in (0, 1].
	SamplePercent float64 `yaml:"samplePercent"`

	// MaxChangedFiles caps precise analysis: more changed files than this
	// degrades to the sampled full-suite fallback. 0 means no cap.
	MaxChangedFiles int `yaml:"maxChangedFiles"`
	// MaxGraphDepth caps the per-test reachability search depth. 0 means
	// no cap.
	MaxGraphDepth int `yaml:"maxGraphDepth"`

	// BasenameFallback enables matching changed files by trailing path
	// segment when no exact path match is found during graph traversal.
	BasenameFallback bool `yaml:"basenameFallback"`
}

// Config is the full configuration for one invocation.
type Config struct {
	// Command is the base test-runner invocation.
	Command []string `yaml:"command"`
	// BaseRef is the default base reference when none is given.
	BaseRef string `yaml:"baseRef"`
	// SourceExtensions are the file extensions included in the import graph.
	SourceExtensions []string `yaml:"sourceExtensions"`

	BurnIn BurnIn `yaml:"burnIn"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Command:          []string{"npx", "playwright", "test"},
		BaseRef:          "main",
		SourceExtensions: []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
		BurnIn: BurnIn{
			TestPatterns: []string{
				"**/*.spec.ts", "**/*.spec.tsx",
				"**/*.test.ts", "**/*.test.tsx",
			},
			SkipPatterns: []string{
				"**/*.md", "docs/**",
				"**/*.png", "**/*.svg", "**/*.ico",
			},
			CommonPatterns: []string{
				"package.json", "playwright.config.*", "tsconfig.json",
			},
			Repeat:           10,
			Retries:          0,
			SamplePercent:    1.0,
			MaxChangedFiles:  0,
			MaxGraphDepth:    0,
			BasenameFallback: true,
		},
	}
}

// fileConfig mirrors Config with pointer fields so an overlay file can
// distinguish "not set" from a zero value.
type fileConfig struct {
	Command          []string    `yaml:"command"`
	BaseRef          *string     `yaml:"baseRef"`
	SourceExtensions []string    `yaml:"sourceExtensions"`
	BurnIn           *fileBurnIn `yaml:"burnIn"`
}

type fileBurnIn struct {
	TestPatterns     []string `yaml:"testPatterns"`
	SkipPatterns     []string `yaml:"skipPatterns"`
	CommonPatterns   []string `yaml:"commonPatterns"`
	Repeat           *int     `yaml:"repeat"`
	Retries          *int     `yaml:"retries"`
	SamplePercent    *float64 `yaml:"samplePercent"`
	MaxChangedFiles  *int     `yaml:"maxChangedFiles"`
	MaxGraphDepth    *int     `yaml:"maxGraphDepth"`
	BasenameFallback *bool    `yaml:"basenameFallback"`
}

// Load builds the effective configuration: defaults, overlaid with
// burnin.yaml at root (if present), overlaid with explicitPath (if given).
// A missing root file is fine; a missing or malformed explicit file is a
// configuration error.
func Load(root, explicitPath string) (*Config, error) {
	cfg := Default()

	rootFile := filepath.Join(root, FileName)
	if err := overlayFile(cfg, rootFile, false); err != nil {
		return nil, err
	}

	if explicitPath != "" {
		if err := overlayFile(cfg, explicitPath, true); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile applies one YAML source on top of cfg. When required is
// false a missing file is silently skipped.
func overlayFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	apply(cfg, &fc)
	return nil
}

// apply merges fc into cfg field by field. The burnIn block is merged
// key by key: only keys present in the file override the current values.
func apply(cfg *Config, fc *fileConfig) {
	if fc.Command != nil {
		cfg.Command = fc.Command
	}
	if fc.BaseRef != nil {
		cfg.BaseRef = *fc.BaseRef
	}
	if fc.SourceExtensions != nil {
		cfg.SourceExtensions = fc.SourceExtensions
	}

	if fc.BurnIn == nil {
		return
	}
	b := fc.BurnIn
	if b.TestPatterns != nil {
		cfg.BurnIn.TestPatterns = b.TestPatterns
	}
	if b.SkipPatterns != nil {
		cfg.BurnIn.SkipPatterns = b.SkipPatterns
	}
	if b.CommonPatterns != nil {
		cfg.BurnIn.CommonPatterns = b.CommonPatterns
	}
	if b.Repeat != nil {
		cfg.BurnIn.Repeat = *b.Repeat
	}
	if b.Retries != nil {
		cfg.BurnIn.Retries = *b.Retries
	}
	if b.SamplePercent != nil {
		cfg.BurnIn.SamplePercent = *b.SamplePercent
	}
	if b.MaxChangedFiles != nil {
		cfg.BurnIn.MaxChangedFiles = *b.MaxChangedFiles
	}
	if b.MaxGraphDepth != nil {
		cfg.BurnIn.MaxGraphDepth = *b.MaxGraphDepth
	}
	if b.BasenameFallback != nil {
		cfg.BurnIn.BasenameFallback = *b.BasenameFallback
	}
}

// Validate checks the merged configuration before anything else runs.
func (c *Config) Validate() error {
	if len(c.Command) == 0 {
		return fmt.Errorf("config: command must not be empty")
	}
	b := c.BurnIn
	if b.SamplePercent <= 0 || b.SamplePercent > 1 {
		return fmt.Errorf("config: burnIn.samplePercent must be in (0, 1], got %v", b.SamplePercent)
	}
	if b.Repeat < 1 {
		return fmt.Errorf("config: burnIn.repeat must be at least 1, got %d", b.Repeat)
	}
	if b.Retries < 0 {
		return fmt.Errorf("config: burnIn.retries must not be negative, got %d", b.Retries)
	}
	if b.MaxChangedFiles < 0 {
		return fmt.Errorf("config: burnIn.maxChangedFiles must not be negative, got %d", b.MaxChangedFiles)
	}
	if b.MaxGraphDepth < 0 {
		return fmt.Errorf("config: burnIn.maxGraphDepth must not be negative, got %d", b.MaxGraphDepth)
	}
	return nil
}

// Lists returns the pattern lists in classification form.
func (c *Config) Lists() (test, skip, common []string) {
	return c.BurnIn.TestPatterns, c.BurnIn.SkipPatterns, c.BurnIn.CommonPatterns
}
