package sandbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/arvhal/causeway/pkg/dispatch"
)

// Runner executes backends in sandbox pods. It satisfies the dispatcher's
// Runner contract, so the classification logic does not know or care whether
// a backend ran locally or remotely.
type Runner struct {
	acquirer Acquirer
	client   *Client
	logger   *slog.Logger
}

var _ dispatch.Runner = (*Runner)(nil)

// NewRunner creates a sandboxed Runner on the given acquirer.
func NewRunner(acquirer Acquirer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		acquirer: acquirer,
		client:   NewClient(),
		logger:   logger,
	}
}

// Run acquires a sandbox, executes the backend there, and materializes any
// produced files into the local run directory. Infrastructure failures
// (acquisition, transport) surface as a failed execution with the error on
// stderr rather than as a distinct class.
func (r *Runner) Run(ctx context.Context, req dispatch.ExecRequest) dispatch.ExecResult {
	sandboxURL, release, err := r.acquirer.Acquire(ctx, req.RunID)
	if err != nil {
		return infraFailure(fmt.Sprintf("acquire sandbox: %s", err))
	}
	defer release()

	resp, err := r.client.Execute(ctx, sandboxURL, &ExecRequest{
		Cmd:            append([]string{req.Path}, req.Args...),
		OutDir:         req.Dir,
		TimeoutSeconds: int(req.Timeout.Seconds()),
	})
	if err != nil {
		return infraFailure(fmt.Sprintf("sandbox execution failed: %s", err))
	}

	res := dispatch.ExecResult{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
		TimedOut: resp.TimedOut,
	}

	if err := r.materialize(req.Dir, resp.FilesProduced); err != nil {
		r.logger.Warn("failed to materialize sandbox artifacts",
			"dir", req.Dir,
			"error", err.Error())
		if res.Stderr != "" {
			res.Stderr += "\n"
		}
		res.Stderr += err.Error()
	}
	return res
}

// materialize writes the runner's produced files into the local run
// directory. File names are sanitized to their base name so a misbehaving
// runner cannot write outside dir.
func (r *Runner) materialize(dir string, files map[string]string) error {
	for name, encoded := range files {
		base := filepath.Base(name)
		if base == "." || base == ".." || strings.HasPrefix(base, "/") {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("decode sandbox artifact %q: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, base), raw, 0o644); err != nil {
			return fmt.Errorf("write sandbox artifact %q: %w", name, err)
		}
	}
	return nil
}

func infraFailure(msg string) dispatch.ExecResult {
	return dispatch.ExecResult{
		Stderr:   msg,
		ExitCode: -1,
	}
}
