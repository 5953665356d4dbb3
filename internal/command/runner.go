// Package command runs external binaries such as openssl.
package command

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

const maxErrorOutput = 512

// RunFunc runs name with args and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Runner executes binaries directly, without a shell.
type Runner struct {
	workDir string
}

// NewRunner creates a new Runner.
func NewRunner(workDir string) *Runner {
	return &Runner{
		workDir: workDir,
	}
}

// Run executes name with args. A non-zero exit status is returned as an error
// that carries the trimmed combined output.
func (r *Runner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	slog.Debug("executing command", "command", name, "args", args)

	cmd := exec.CommandContext(ctx, name, args...)
	if r.workDir != "" {
		cmd.Dir = r.workDir
	}

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return combined.Bytes(), ctxErr
		}
		slog.Debug("command failed", "command", name, "error", err, "output", combined.String())
		return combined.Bytes(), fmt.Errorf("%s %s: %s: %w", name, strings.Join(args, " "), trimOutput(combined.String()), err)
	}

	slog.Debug("command succeeded", "command", name)
	return combined.Bytes(), nil
}

// Check runs name with args and reports whether it exited with status 0.
func (r *Runner) Check(ctx context.Context, name string, args ...string) bool {
	_, err := r.Run(ctx, name, args...)
	return err == nil
}

func trimOutput(out string) string {
	clean := strings.TrimSpace(out)
	if clean == "" {
		return "command failed"
	}
	if len(clean) > maxErrorOutput {
		return clean[:maxErrorOutput] + "..."
	}
	return clean
}
