// Package runner builds the final test-runner invocation from a plan and
// executes it.
package runner

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"burnin/internal/plan"
)

// Settings are the static execution parameters applied to every plan.
type Settings struct {
	// Command is the base runner invocation, e.g. ["npx", "playwright", "test"].
	Command []string
	// Repeat is the per-test repetition count.
	Repeat int
	// Retries is the per-test retry count.
	Retries int
	// ShardOverride, when non-empty, replaces any plan-computed shard
	// flag (e.g. "2/4" from a CI matrix).
	ShardOverride string
	// BaseRef is handed to the runner's changed-file filter in fallback
	// plans.
	BaseRef string
}

// BuildCommand maps a plan to the token list to execute. It returns nil
// exactly when the plan runs nothing; the caller must not spawn a
// subprocess in that case. Token order: base command, test paths or the
// fallback filter flag, plan extras (with the shard override applied),
// then the repeat and retry flags always last.
func BuildCommand(p *plan.Plan, s Settings) []string {
	if p.Empty() {
		return nil
	}

	argv := append([]string{}, s.Command...)

	if p.UseChangedFilter {
		argv = append(argv, fmt.Sprintf("--only-changed=%s", s.BaseRef))
	} else {
		argv = append(argv, p.Tests...)
	}

	for _, arg := range p.ExtraArgs {
		if s.ShardOverride != "" && strings.HasPrefix(arg, "--shard=") {
			continue
		}
		argv = append(argv, arg)
	}
	if s.ShardOverride != "" {
		argv = append(argv, fmt.Sprintf("--shard=%s", s.ShardOverride))
	}

	argv = append(argv,
		fmt.Sprintf("--repeat-each=%d", s.Repeat),
		fmt.Sprintf("--retries=%d", s.Retries),
	)
	return argv
}

// ExecError reports a test-runner subprocess that exited non-zero.
type ExecError struct {
	ExitCode int
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("burn-in run failed: test runner exited with code %d", e.ExitCode)
}

// Run executes argv in dir with inherited standard I/O, blocking until
// the child exits. The child environment carries BURN_IN=1 so the test
// runner can adjust its own retry and reporting behavior; the parent
// environment is never mutated.
func Run(argv []string, dir string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), "BURN_IN=1")

	log.Debug("executing test runner", zap.Strings("argv", argv), zap.String("dir", dir))

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExecError{ExitCode: exitErr.ExitCode()}
		}
		return fmt.Errorf("starting test runner: %w", err)
	}
	return nil
}
