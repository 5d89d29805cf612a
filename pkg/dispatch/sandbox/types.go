// Package sandbox runs analysis backends in isolated pods through the
// sandbox runner's REST API instead of as local child processes. Datasets
// are expected on a volume shared between the gateway and the sandbox;
// artifacts written by the backend are shipped back in the response and
// materialized into the local run directory, so result classification works
// identically to local execution.
package sandbox

// ExecRequest is the request body for POST /execute on the sandbox runner.
type ExecRequest struct {
	// Cmd is the full backend command line, program name first.
	Cmd []string `json:"cmd"`

	// OutDir is the absolute run directory the backend writes artifacts
	// into. The runner collects produced files from it after execution.
	OutDir string `json:"out_dir"`

	TimeoutSeconds int `json:"timeout_seconds"`
}

// ExecResponse is the response from POST /execute on the sandbox runner.
// FilesProduced maps file name to base64-encoded content.
type ExecResponse struct {
	Status          string            `json:"status"`
	Stdout          string            `json:"stdout"`
	Stderr          string            `json:"stderr"`
	ExitCode        int               `json:"exit_code"`
	TimedOut        bool              `json:"timed_out,omitempty"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	FilesProduced   map[string]string `json:"files_produced,omitempty"`
}
