package dispatch

import (
	"context"
	"errors"
	"io/fs"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ExecRequest describes one backend process invocation.
type ExecRequest struct {
	// RunID identifies the analysis run this execution belongs to. Remote
	// runners carry it into the infrastructure they provision.
	RunID string

	// Path is the executable, absolute or resolved against PATH.
	Path string

	// Args is the full argument list, not including the program name.
	Args []string

	// Dir is the working directory for the process.
	Dir string

	// Timeout bounds the execution. The process is killed when exceeded.
	Timeout time.Duration
}

// ExecResult is the raw outcome of a process run, before artifact
// classification.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int

	// TimedOut is set when the execution bound was exceeded and the
	// process was killed.
	TimedOut bool

	// NotFound is set when the executable could not be resolved at all.
	NotFound bool
}

// Runner executes backend processes. LocalRunner is the default; the
// sandbox subpackage provides a remote implementation.
type Runner interface {
	Run(ctx context.Context, req ExecRequest) ExecResult
}

// LocalRunner runs backends as child processes on the local host.
type LocalRunner struct{}

var _ Runner = (*LocalRunner)(nil)

// Run executes the process and waits for it. Cancellation of ctx or expiry
// of the timeout kills the process; it is never left running detached.
func (LocalRunner) Run(ctx context.Context, req ExecRequest) ExecResult {
	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, req.Path, req.Args...)
	cmd.Dir = req.Dir

	// The backend gets its own process group so cancellation kills the
	// whole tree. Killing only the direct child leaves descendants
	// holding the output pipes, which keeps Wait blocked past the bound.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	execErr := cmd.Run()

	res := ExecResult{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}
	if execErr == nil {
		return res
	}

	// Timeout takes precedence over the exit error it causes.
	if runCtx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitCode = -1
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(execErr, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res
	}

	// LookPath misses surface as *exec.Error, absolute-path misses as a
	// start error wrapping ErrNotExist.
	if errors.Is(execErr, exec.ErrNotFound) || errors.Is(execErr, fs.ErrNotExist) {
		res.NotFound = true
		res.ExitCode = -1
		return res
	}

	res.ExitCode = -1
	if res.Stderr == "" {
		res.Stderr = execErr.Error()
	}
	return res
}
