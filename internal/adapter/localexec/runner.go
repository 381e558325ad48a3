// Package localexec runs build commands as local child processes.
package localexec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"

	"siteup/pkg/sdk/site"
)

// Runner is a site.CommandRunner backed by os/exec. Stdout is passed
// through to the parent process; stderr is captured for error reporting.
type Runner struct{}

func New() *Runner {
	return &Runner{}
}

func (r *Runner) Run(ctx context.Context, name string, args []string, dir string) (site.RunResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return site.RunResult{ExitCode: 0, Stderr: stderr.String()}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// The process ran and exited non-zero. That is a result, not a
		// spawn failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return site.RunResult{}, ctxErr
		}
		return site.RunResult{ExitCode: exitErr.ExitCode(), Stderr: stderr.String()}, nil
	}
	return site.RunResult{}, err
}
