// Command sandbox-runner runs an HTTP server inside sandbox pods that
// executes analysis backends as isolated subprocesses. The gateway posts
// the full backend command line; artifacts written into the run directory
// are shipped back base64-encoded in the response.
//
// Configuration:
//
//	RUNNER_PORT           - Listen port (default: 8080)
//	RUNNER_BACKEND_DIR    - Directory holding the backend executables (default: /opt/backends)
//	RUNNER_MAX_CONCURRENT - Max concurrent executions (default: 3)
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

func main() {
	port := envOr("RUNNER_PORT", "8080")
	backendDir := envOr("RUNNER_BACKEND_DIR", "/opt/backends")
	maxConcurrent := envOrInt("RUNNER_MAX_CONCURRENT", 3)

	srv := &runnerServer{
		backendDir:    backendDir,
		maxConcurrent: int32(maxConcurrent),
		startTime:     time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", srv.handleExecute)
	mux.HandleFunc("GET /health", srv.handleHealth)

	httpSrv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second, // backends can run for minutes
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("sandbox runner starting", "port", port, "backend_dir", backendDir, "max_concurrent", maxConcurrent)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
}

type runnerServer struct {
	backendDir    string
	maxConcurrent int32
	currentLoad   atomic.Int32
	startTime     time.Time
}

type executeRequest struct {
	Cmd            []string `json:"cmd"`
	OutDir         string   `json:"out_dir"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

type executeResponse struct {
	Status          string            `json:"status"`
	Stdout          string            `json:"stdout"`
	Stderr          string            `json:"stderr"`
	ExitCode        int               `json:"exit_code"`
	TimedOut        bool              `json:"timed_out,omitempty"`
	ExecutionTimeMs int64             `json:"execution_time_ms"`
	FilesProduced   map[string]string `json:"files_produced,omitempty"`
}

func (s *runnerServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	current := s.currentLoad.Add(1)
	defer s.currentLoad.Add(-1)

	if current > s.maxConcurrent {
		writeError(w, http.StatusTooManyRequests,
			fmt.Sprintf("at capacity (%d/%d concurrent executions)", current, s.maxConcurrent))
		return
	}

	var req executeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	if len(req.Cmd) == 0 {
		writeError(w, http.StatusBadRequest, "cmd is required")
		return
	}
	if req.OutDir == "" {
		writeError(w, http.StatusBadRequest, "out_dir is required")
		return
	}
	if req.TimeoutSeconds <= 0 {
		req.TimeoutSeconds = 300
	}

	// The gateway names the executable; resolve it strictly inside the
	// backend directory so the runner never executes arbitrary paths.
	exe := filepath.Join(s.backendDir, filepath.Base(req.Cmd[0]))
	if _, err := os.Stat(exe); err != nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(executeResponse{
			Status:   "error",
			Stderr:   fmt.Sprintf("backend %q not found in %s", filepath.Base(req.Cmd[0]), s.backendDir),
			ExitCode: -1,
		})
		return
	}

	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "creating run directory: "+err.Error())
		return
	}

	slog.Info("execute request",
		"backend", filepath.Base(exe),
		"args", len(req.Cmd)-1,
		"out_dir", req.OutDir,
		"timeout", req.TimeoutSeconds,
	)

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(req.TimeoutSeconds)*time.Second)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, exe, req.Cmd[1:]...)
	cmd.Dir = req.OutDir

	// Backends run in their own process group so the timeout kills any
	// children holding the output pipes, not just the direct process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	execErr := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	status := "success"
	timedOut := false
	if execErr != nil {
		status = "error"
		if ctx.Err() == context.DeadlineExceeded {
			timedOut = true
			exitCode = -1
			if stderrBuf.Len() == 0 {
				fmt.Fprintf(&stderrBuf, "execution timed out after %d seconds", req.TimeoutSeconds)
			}
		} else if exitErr, ok := execErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	files := collectArtifacts(req.OutDir)

	slog.Info("execute complete",
		"status", status,
		"exit_code", exitCode,
		"timed_out", timedOut,
		"duration_ms", duration.Milliseconds(),
		"files_produced", len(files),
	)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(executeResponse{
		Status:          status,
		Stdout:          stdoutBuf.String(),
		Stderr:          stderrBuf.String(),
		ExitCode:        exitCode,
		TimedOut:        timedOut,
		ExecutionTimeMs: duration.Milliseconds(),
		FilesProduced:   files,
	})
}

func (s *runnerServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"backend_dir":    s.backendDir,
		"current_load":   s.currentLoad.Load(),
		"max_concurrent": s.maxConcurrent,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

// collectArtifacts reads regular files from the run directory and encodes
// them as base64. Subdirectories are skipped.
func collectArtifacts(dir string) map[string]string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) == 0 {
		return nil
	}

	files := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			slog.Warn("skipping unreadable artifact", "file", entry.Name(), "error", err)
			continue
		}
		files[entry.Name()] = base64.StdEncoding.EncodeToString(content)
	}
	if len(files) == 0 {
		return nil
	}
	return files
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
