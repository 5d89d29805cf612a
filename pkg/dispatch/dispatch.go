package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arvhal/causeway/pkg/api"
	"github.com/arvhal/causeway/pkg/debug"
	"github.com/arvhal/causeway/pkg/registry"
)

const (
	// DefaultOutDir is where per-run artifact directories are created when
	// the request does not override it.
	DefaultOutDir = "out/api"

	// DefaultTimeout bounds a backend execution when no other bound is
	// configured.
	DefaultTimeout = 5 * time.Minute

	// DefaultMaxCovariates caps how many covariates a backend is asked to
	// adjust for.
	DefaultMaxCovariates = 15

	// SummaryFileName is the artifact file a backend writes into its run
	// directory.
	SummaryFileName = "summary.json"
)

// Options configures a Dispatcher. Zero values fall back to the package
// defaults.
type Options struct {
	// BackendDir is prepended to relative backend executables. Empty means
	// resolution against PATH.
	BackendDir string

	// OutDir is the default artifact root.
	OutDir string

	// Timeout is the per-execution bound.
	Timeout time.Duration

	// MaxCovariates is the default covariate cap passed to backends.
	MaxCovariates int
}

// Dispatcher turns validated routing decisions into backend executions.
type Dispatcher struct {
	runner Runner
	opts   Options
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher on the given runner.
func NewDispatcher(runner Runner, opts Options, logger *slog.Logger) *Dispatcher {
	if opts.OutDir == "" {
		opts.OutDir = DefaultOutDir
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxCovariates == 0 {
		opts.MaxCovariates = DefaultMaxCovariates
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{runner: runner, opts: opts, logger: logger}
}

// Dispatch executes the capability's backend for the request. runID keys the
// isolated output directory, so concurrent dispatches never share artifact
// paths. The result is always well-formed; infrastructure failures map to
// the error classes rather than a Go error.
func (d *Dispatcher) Dispatch(ctx context.Context, desc *registry.Descriptor, req *api.AnalyzeRequest, runID string) Result {
	runDir, err := d.runDir(req, runID)
	if err != nil {
		return Result{Class: ClassBackendError, Detail: fmt.Sprintf("create output directory: %s", err)}
	}
	summaryPath := filepath.Join(runDir, SummaryFileName)

	args := d.buildArgs(desc, req, summaryPath)
	exe := desc.Backend.Exe
	if d.opts.BackendDir != "" && !filepath.IsAbs(exe) {
		exe = filepath.Join(d.opts.BackendDir, exe)
	}

	start := time.Now()
	d.logger.Info("dispatching backend",
		"run_id", runID,
		"capability", desc.ID,
		"exe", exe)
	debug.Log("dispatch", "backend argv",
		"run_id", runID,
		"args", strings.Join(args, " "))

	execRes := d.runner.Run(ctx, ExecRequest{
		RunID:   runID,
		Path:    exe,
		Args:    args,
		Dir:     runDir,
		Timeout: d.opts.Timeout,
	})

	res := d.classify(execRes, summaryPath)
	d.logger.Info("dispatch complete",
		"run_id", runID,
		"capability", desc.ID,
		"class", res.Class,
		"duration", time.Since(start).Round(time.Millisecond))

	// A run directory with nothing in it is noise; removal fails silently
	// when the backend did write files.
	if res.Class == ClassNotFound || res.Class == ClassTimeout {
		os.Remove(runDir)
	}
	return res
}

// runDir creates and returns the per-run output directory.
func (d *Dispatcher) runDir(req *api.AnalyzeRequest, runID string) (string, error) {
	root := req.OutDir
	if root == "" {
		root = d.opts.OutDir
	}
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// buildArgs assembles argv strictly from the descriptor's role-to-flag
// mapping. Unbound optional roles contribute nothing; there is no per-backend
// special casing.
func (d *Dispatcher) buildArgs(desc *registry.Descriptor, req *api.AnalyzeRequest, summaryPath string) []string {
	args := []string{"--csv", req.CSV}

	hasCovariates := false
	for _, role := range desc.Roles {
		flag, ok := desc.Backend.RoleFlags[role.Name]
		if !ok {
			continue
		}
		if role.Kind == registry.RoleCovariateList {
			hasCovariates = true
			if len(req.Covariates) > 0 {
				args = append(args, flag, strings.Join(req.Covariates, ","))
			}
			continue
		}
		if col := req.RoleBinding(role.Name); col != "" {
			args = append(args, flag, col)
		}
	}

	if hasCovariates {
		limit := req.MaxCovariates
		if limit <= 0 {
			limit = d.opts.MaxCovariates
		}
		args = append(args, "--max_covariates", strconv.Itoa(limit))
	}

	args = append(args, "--out_json", summaryPath)
	return args
}

// classify maps a raw process outcome plus the artifact state to the result
// taxonomy.
func (d *Dispatcher) classify(execRes ExecResult, summaryPath string) Result {
	res := Result{
		Stdout: execRes.Stdout,
		Stderr: execRes.Stderr,
	}

	switch {
	case execRes.NotFound:
		res.Class = ClassNotFound
		res.Detail = "backend executable not found"
		return res
	case execRes.TimedOut:
		res.Class = ClassTimeout
		res.Detail = fmt.Sprintf("backend exceeded the %s execution bound and was terminated", d.opts.Timeout)
		return res
	case execRes.ExitCode != 0:
		res.Class = ClassBackendError
		res.Detail = fmt.Sprintf("backend exited with code %d", execRes.ExitCode)
		return res
	}

	summary, class, detail := readSummary(summaryPath)
	res.Class = class
	res.Detail = detail
	res.Summary = summary
	if summary != nil {
		res.SummaryPath = summaryPath
	}
	return res
}
