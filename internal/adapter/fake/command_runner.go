package fake

import (
	"context"
	"strings"
	"sync"

	"siteup/pkg/sdk/site"
)

// CommandRunner is a scripted site.CommandRunner. Unscripted commands
// succeed with exit code 0.
type CommandRunner struct {
	CallRecorder

	mu      sync.Mutex
	results map[string]site.RunResult
	errs    map[string]error
}

func NewCommandRunner() *CommandRunner {
	return &CommandRunner{
		results: make(map[string]site.RunResult),
		errs:    make(map[string]error),
	}
}

// Stub scripts the result of a command line, e.g. "npm run build".
func (r *CommandRunner) Stub(cmdline string, res site.RunResult) {
	r.mu.Lock()
	r.results[cmdline] = res
	r.mu.Unlock()
}

// StubError makes a command line fail to start with err.
func (r *CommandRunner) StubError(cmdline string, err error) {
	r.mu.Lock()
	r.errs[cmdline] = err
	r.mu.Unlock()
}

func (r *CommandRunner) Run(ctx context.Context, name string, args []string, dir string) (site.RunResult, error) {
	cmdline := strings.Join(append([]string{name}, args...), " ")
	r.record("Run", cmdline, dir)

	if err := ctx.Err(); err != nil {
		return site.RunResult{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.errs[cmdline]; ok {
		return site.RunResult{}, err
	}
	return r.results[cmdline], nil
}
