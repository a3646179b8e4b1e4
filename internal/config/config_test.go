package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return p
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.BurnIn.Repeat != def.BurnIn.Repeat {
		t.Errorf("repeat = %d, want default %d", cfg.BurnIn.Repeat, def.BurnIn.Repeat)
	}
	if cfg.BurnIn.SamplePercent != 1.0 {
		t.Errorf("samplePercent = %v, want 1.0", cfg.BurnIn.SamplePercent)
	}
	if !cfg.BurnIn.BasenameFallback {
		t.Error("basenameFallback should default to true")
	}
	if len(cfg.Command) == 0 {
		t.Error("default command is empty")
	}
}

func TestLoadRootFilePartialOverlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
burnIn:
  repeat: 3
  samplePercent: 0.25
`)

	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BurnIn.Repeat != 3 {
		t.Errorf("repeat = %d, want 3", cfg.BurnIn.Repeat)
	}
	if cfg.BurnIn.SamplePercent != 0.25 {
		t.Errorf("samplePercent = %v, want 0.25", cfg.BurnIn.SamplePercent)
	}
	// Keys absent from the file keep their defaults.
	if len(cfg.BurnIn.TestPatterns) == 0 {
		t.Error("testPatterns lost during partial overlay")
	}
	if !cfg.BurnIn.BasenameFallback {
		t.Error("basenameFallback lost during partial overlay")
	}
}

func TestLoadExplicitOverridesRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
baseRef: develop
burnIn:
  repeat: 3
`)
	explicit := writeFile(t, dir, "ci-burnin.yaml", `
burnIn:
  repeat: 7
  basenameFallback: false
`)

	cfg, err := Load(dir, explicit)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BurnIn.Repeat != 7 {
		t.Errorf("repeat = %d, want 7 from explicit file", cfg.BurnIn.Repeat)
	}
	if cfg.BaseRef != "develop" {
		t.Errorf("baseRef = %q, want develop from root file", cfg.BaseRef)
	}
	if cfg.BurnIn.BasenameFallback {
		t.Error("explicit basenameFallback: false not applied")
	}
}

func TestLoadExplicitMissingIsError(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir, filepath.Join(dir, "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, "burnIn: [not: a: mapping")

	if _, err := Load(dir, ""); err == nil {
		t.Fatal("expected parse error for malformed yaml")
	}
}

func TestValidateSamplePercent(t *testing.T) {
	tests := []struct {
		pct float64
		ok  bool
	}{
		{0, false},
		{-0.5, false},
		{1.5, false},
		{0.01, true},
		{1.0, true},
	}

	for _, tc := range tests {
		cfg := Default()
		cfg.BurnIn.SamplePercent = tc.pct
		err := cfg.Validate()
		if tc.ok && err != nil {
			t.Errorf("Validate(pct=%v) = %v, want nil", tc.pct, err)
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("Validate(pct=%v) = nil, want error", tc.pct)
			} else if !strings.Contains(err.Error(), "samplePercent") {
				t.Errorf("Validate(pct=%v) error %q does not name samplePercent", tc.pct, err)
			}
		}
	}
}

func TestValidateRejectsInvalidOverlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, FileName, `
burnIn:
  samplePercent: 2.0
`)

	if _, err := Load(dir, ""); err == nil {
		t.Fatal("expected validation error for samplePercent out of range")
	}
}

func TestValidateCommand(t *testing.T) {
	cfg := Default()
	cfg.Command = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty command")
	}
}
