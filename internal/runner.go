package internal

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Timeouts for quick probe/kill commands so a hung command cannot stall the
// installation indefinitely.
const (
	probeCommandTimeout = 10 * time.Second
	killCommandTimeout  = 3 * time.Second
)

// CommandRunner executes an OS command and returns its combined output.
// Injectable so installer logic is testable without touching the host.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// Run executes the command, bounded by the context, and returns trimmed
// combined output.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// runWithTimeout runs a command under its own deadline.
func runWithTimeout(ctx context.Context, runner CommandRunner, timeout time.Duration, name string, args ...string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return runner.Run(cmdCtx, name, args...)
}
