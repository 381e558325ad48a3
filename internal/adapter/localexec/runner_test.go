package localexec

import (
	"context"
	"os/exec"
	"strings"
	"testing"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestRunSuccess(t *testing.T) {
	t.Parallel()
	requireShell(t)

	r := New()
	res, err := r.Run(context.Background(), "sh", []string{"-c", "exit 0"}, t.TempDir())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got, want := res.ExitCode, 0; got != want {
		t.Fatalf("exit code = %d, want %d", got, want)
	}
}

func TestRunNonZeroExitIsAResultNotAnError(t *testing.T) {
	t.Parallel()
	requireShell(t)

	r := New()
	res, err := r.Run(context.Background(), "sh", []string{"-c", "echo boom >&2; exit 3"}, t.TempDir())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got, want := res.ExitCode, 3; got != want {
		t.Fatalf("exit code = %d, want %d", got, want)
	}
	if !strings.Contains(res.Stderr, "boom") {
		t.Fatalf("stderr = %q, want to contain %q", res.Stderr, "boom")
	}
}

func TestRunHonorsWorkingDirectory(t *testing.T) {
	t.Parallel()
	requireShell(t)

	dir := t.TempDir()
	r := New()
	res, err := r.Run(context.Background(), "sh", []string{"-c", "pwd >&2"}, dir)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(res.Stderr, dir) {
		t.Fatalf("pwd = %q, want %q", strings.TrimSpace(res.Stderr), dir)
	}
}

func TestRunSpawnFailure(t *testing.T) {
	t.Parallel()

	r := New()
	if _, err := r.Run(context.Background(), "definitely-not-a-binary-siteup", nil, t.TempDir()); err == nil {
		t.Fatal("Run() error = nil, want spawn failure")
	}
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New()
	if _, err := r.Run(ctx, "sh", []string{"-c", "sleep 10"}, t.TempDir()); err == nil {
		t.Fatal("Run() error = nil, want cancellation")
	}
}
