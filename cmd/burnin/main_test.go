package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"burnin/internal/config"
	"burnin/internal/gitio"
	"burnin/internal/runner"
)

// buildRepo creates a repository with a source file, a test importing it,
// and an unrelated test, then changes the source on top of a "base" branch.
func buildRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}

	write := func(name, content string) {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	commit := func(msg string) plumbing.Hash {
		h, err := wt.Commit(msg, &git.CommitOptions{
			Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()},
		})
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
		return h
	}

	write("src/auth.ts", "export const login = () => 1\n")
	write("tests/auth.spec.ts", "import { login } from '../src/auth'\n")
	write("tests/billing.spec.ts", "import { invoice } from '../src/billing'\n")
	write("src/billing.ts", "export const invoice = () => 2\n")
	base := commit("base")
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), base)
	if err := repo.Storer.SetReference(ref); err != nil {
		t.Fatalf("branch: %v", err)
	}

	write("src/auth.ts", "export const login = () => 42\n")
	commit("change auth")
	return dir
}

func testEnv(t *testing.T, dir string) *env {
	t.Helper()
	repo, err := gitio.Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return &env{repo: repo, cfg: config.Default(), base: "main", log: zap.NewNop()}
}

func TestAnalyzeSelectsOnlyAffectedTest(t *testing.T) {
	e := testEnv(t, buildRepo(t))

	a, err := analyze(e)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if a.analysisErr != nil {
		t.Fatalf("analysisErr = %v", a.analysisErr)
	}
	if len(a.affected) != 1 || a.affected[0] != "tests/auth.spec.ts" {
		t.Fatalf("affected = %v, want [tests/auth.spec.ts]", a.affected)
	}

	p, err := decide(e, a)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if len(p.Tests) != 1 || p.Tests[0] != "tests/auth.spec.ts" {
		t.Errorf("plan tests = %v", p.Tests)
	}

	argv := runner.BuildCommand(p, runner.Settings{
		Command: e.cfg.Command,
		Repeat:  e.cfg.BurnIn.Repeat,
		Retries: e.cfg.BurnIn.Retries,
		BaseRef: e.base,
	})
	joined := strings.Join(argv, " ")
	if !strings.Contains(joined, "tests/auth.spec.ts") {
		t.Errorf("command missing selected test: %v", argv)
	}
	if !strings.HasSuffix(joined, "--repeat-each=10 --retries=0") {
		t.Errorf("execution flags not last: %v", argv)
	}
}

func TestAnalyzeDegradesOnChangedFileLimit(t *testing.T) {
	dir := buildRepo(t)
	commitChange(t, dir, "src/billing.ts", "export const invoice = () => 3\n")

	e := testEnv(t, dir)
	e.cfg.BurnIn.MaxChangedFiles = 1 // two files changed against main

	a, err := analyze(e)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if a.analysisErr == nil {
		t.Fatal("expected degraded analysis when the changed-file limit is exceeded")
	}

	p, err := decide(e, a)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if !p.UseChangedFilter {
		t.Errorf("expected fallback plan, got %+v", p)
	}
}

func commitChange(t *testing.T, dir, name, content string) {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := wt.Commit("extra change", &git.CommitOptions{
		Author: &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()},
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestAnalyzeUnknownBaseIsFatal(t *testing.T) {
	e := testEnv(t, buildRepo(t))
	e.base = "nonexistent-branch"

	if _, err := analyze(e); err == nil {
		t.Fatal("expected fatal error for unknown base ref")
	}
}

func TestSettingsOverrides(t *testing.T) {
	e := testEnv(t, buildRepo(t))

	runRepeat, runRetries = 0, -1
	s := settings(e)
	if s.Repeat != e.cfg.BurnIn.Repeat || s.Retries != e.cfg.BurnIn.Retries {
		t.Errorf("defaults not taken from config: %+v", s)
	}

	runRepeat, runRetries = 3, 2
	defer func() { runRepeat, runRetries = 0, -1 }()
	s = settings(e)
	if s.Repeat != 3 || s.Retries != 2 {
		t.Errorf("flag overrides not applied: %+v", s)
	}
}

func TestSettingsShardOverrideFromEnv(t *testing.T) {
	e := testEnv(t, buildRepo(t))
	t.Setenv(shardEnv, "2/4")

	s := settings(e)
	if s.ShardOverride != "2/4" {
		t.Errorf("ShardOverride = %q, want 2/4", s.ShardOverride)
	}
}
