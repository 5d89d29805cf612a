package sandbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arvhal/causeway/pkg/dispatch"
)

func fakeSandbox(t *testing.T, respond func(req ExecRequest) ExecResponse) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/execute" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req ExecRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(respond(req))
	}))
}

func TestRunMaterializesArtifacts(t *testing.T) {
	summary := []byte(`{"status":"ok","ate":2.0}`)
	srv := fakeSandbox(t, func(req ExecRequest) ExecResponse {
		if len(req.Cmd) == 0 || req.Cmd[0] != "/backends/run_causalmodels" {
			t.Errorf("cmd = %v", req.Cmd)
		}
		if req.TimeoutSeconds != 60 {
			t.Errorf("timeout_seconds = %d, want 60", req.TimeoutSeconds)
		}
		return ExecResponse{
			Status: "success",
			Stdout: "done",
			FilesProduced: map[string]string{
				"summary.json": base64.StdEncoding.EncodeToString(summary),
			},
		}
	})
	defer srv.Close()

	dir := t.TempDir()
	r := NewRunner(&StaticAcquirer{URL: srv.URL}, nil)
	res := r.Run(context.Background(), dispatch.ExecRequest{
		Path:    "/backends/run_causalmodels",
		Args:    []string{"--csv", "ihdp.csv"},
		Dir:     dir,
		Timeout: time.Minute,
	})

	if res.ExitCode != 0 || res.TimedOut {
		t.Fatalf("result = %+v", res)
	}
	got, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	if err != nil {
		t.Fatalf("artifact not materialized: %v", err)
	}
	if string(got) != string(summary) {
		t.Errorf("artifact content = %q", got)
	}
}

func TestRunSanitizesArtifactNames(t *testing.T) {
	srv := fakeSandbox(t, func(ExecRequest) ExecResponse {
		return ExecResponse{
			Status: "success",
			FilesProduced: map[string]string{
				"../escape.txt": base64.StdEncoding.EncodeToString([]byte("nope")),
			},
		}
	})
	defer srv.Close()

	dir := t.TempDir()
	r := NewRunner(&StaticAcquirer{URL: srv.URL}, nil)
	r.Run(context.Background(), dispatch.ExecRequest{Path: "x", Dir: dir})

	if _, err := os.Stat(filepath.Join(dir, "..", "escape.txt")); err == nil {
		t.Error("artifact escaped the run directory")
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); err != nil {
		t.Error("sanitized artifact not written inside the run directory")
	}
}

func TestRunPropagatesTimeout(t *testing.T) {
	srv := fakeSandbox(t, func(ExecRequest) ExecResponse {
		return ExecResponse{Status: "error", ExitCode: -1, TimedOut: true, Stderr: "execution timed out"}
	})
	defer srv.Close()

	r := NewRunner(&StaticAcquirer{URL: srv.URL}, nil)
	res := r.Run(context.Background(), dispatch.ExecRequest{Path: "x", Dir: t.TempDir()})
	if !res.TimedOut {
		t.Errorf("result = %+v, want TimedOut", res)
	}
}

func TestRunSandboxUnreachable(t *testing.T) {
	r := NewRunner(&StaticAcquirer{URL: "http://127.0.0.1:1"}, nil)
	res := r.Run(context.Background(), dispatch.ExecRequest{Path: "x", Dir: t.TempDir()})
	if res.ExitCode != -1 || res.Stderr == "" {
		t.Errorf("result = %+v, want infra failure on stderr", res)
	}
}
