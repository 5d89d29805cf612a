package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arvhal/causeway/pkg/api"
	"github.com/arvhal/causeway/pkg/classify"
	"github.com/arvhal/causeway/pkg/dispatch"
	"github.com/arvhal/causeway/pkg/registry"
	"github.com/arvhal/causeway/pkg/router"
	"github.com/arvhal/causeway/pkg/storage/memory"
	"github.com/arvhal/causeway/pkg/transport"
)

// okBackend is a stand-in backend that writes a valid summary artifact to
// the path following --out_json.
const okBackend = `#!/bin/sh
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "--out_json" ]; then out="$arg"; fi
  prev="$arg"
done
echo "backend running"
cat > "$out" <<'EOF'
{"tool":"causalmodels","status":"ok","ate":1.5,"se":0.3,"ci95":[0.9,2.1]}
EOF
`

const warningBackend = `#!/bin/sh
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "--out_json" ]; then out="$arg"; fi
  prev="$arg"
done
cat > "$out" <<'EOF'
{"tool":"causalmodels","status":"ok_with_na","warnings":["dropped 12 rows with missing covariates"]}
EOF
`

const failingBackend = `#!/bin/sh
echo "model failed to converge" >&2
exit 2
`

func writeBackend(t *testing.T, dir, name, script string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755); err != nil {
		t.Fatalf("writing backend %s: %v", name, err)
	}
}

// writeDataset writes a small treatment/outcome CSV and returns its path.
func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ihdp.csv")
	csv := "t,y,x1,x2\n" +
		"1,3.42,0.21,7\n" +
		"0,2.18,0.53,3\n" +
		"1,4.01,0.12,5\n" +
		"0,1.97,0.88,2\n"
	if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
		t.Fatalf("writing dataset: %v", err)
	}
	return path
}

type testEnv struct {
	engine     *Engine
	store      *memory.Store
	backendDir string
}

func newTestEngine(t *testing.T) *testEnv {
	t.Helper()

	backendDir := t.TempDir()
	writeBackend(t, backendDir, "run_causalmodels", okBackend)
	writeBackend(t, backendDir, "run_adjustedcurves", okBackend)
	writeBackend(t, backendDir, "run_dummy", okBackend)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.Builtin()
	rules := classify.NewRuleClassifier(reg, classify.DefaultWeights())
	rtr := router.New(reg, rules, nil, logger)
	disp := dispatch.NewDispatcher(&dispatch.LocalRunner{}, dispatch.Options{
		BackendDir: backendDir,
		OutDir:     t.TempDir(),
	}, logger)
	store := memory.New(100)

	eng, err := New(Config{
		Registry:   reg,
		Router:     rtr,
		Dispatcher: disp,
		Store:      store,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{engine: eng, store: store, backendDir: backendDir}
}

func apiErr(t *testing.T, err error) *api.APIError {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	var e *api.APIError
	if !errors.As(err, &e) {
		t.Fatalf("error %T is not *api.APIError", err)
	}
	return e
}

func TestAnalyzeExplicitTaskSuccess(t *testing.T) {
	te := newTestEngine(t)

	env, err := te.engine.Analyze(context.Background(), &api.AnalyzeRequest{
		CSV:        writeDataset(t),
		Task:       "causal_ate",
		Treatment:  "t",
		Outcome:    "y",
		Covariates: []string{"x1", "x2"},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if env.Status != api.StatusOK {
		t.Fatalf("Status = %q, want ok (stderr: %s)", env.Status, env.Stderr)
	}
	if env.SelectedTool != "causalmodels" {
		t.Errorf("SelectedTool = %q, want causalmodels", env.SelectedTool)
	}
	if env.Artifacts.CapabilityID != "causal_ate" {
		t.Errorf("CapabilityID = %q, want causal_ate", env.Artifacts.CapabilityID)
	}
	if env.Artifacts.SelectedBy != api.SelectedExplicit {
		t.Errorf("SelectedBy = %q, want explicit", env.Artifacts.SelectedBy)
	}
	if env.Artifacts.SummaryJSON == "" {
		t.Error("SummaryJSON is empty, want artifact path")
	}
	if !strings.Contains(env.Stdout, "backend running") {
		t.Errorf("Stdout = %q, want backend output", env.Stdout)
	}
}

func TestAnalyzeRuleRouted(t *testing.T) {
	te := newTestEngine(t)

	env, err := te.engine.Analyze(context.Background(), &api.AnalyzeRequest{
		CSV:        writeDataset(t),
		Request:    "Estimate the causal effect of the program on outcomes",
		Treatment:  "t",
		Outcome:    "y",
		Covariates: []string{"x1"},
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if env.Status != api.StatusOK {
		t.Fatalf("Status = %q, want ok", env.Status)
	}
	if env.Artifacts.SelectedBy != api.SelectedRule {
		t.Errorf("SelectedBy = %q, want rule", env.Artifacts.SelectedBy)
	}
	if !strings.Contains(env.Artifacts.RouterReason, "rule-based") {
		t.Errorf("RouterReason = %q, want rule-based evidence", env.Artifacts.RouterReason)
	}
}

func TestAnalyzeMissingCSV(t *testing.T) {
	te := newTestEngine(t)

	env, err := te.engine.Analyze(context.Background(), &api.AnalyzeRequest{})
	e := apiErr(t, err)
	if e.Type != api.ErrorTypeInvalidRequest {
		t.Fatalf("error type = %q, want invalid_request", e.Type)
	}
	if env == nil || env.Status != api.StatusError {
		t.Fatalf("envelope = %+v, want error status", env)
	}
	if env.Artifacts.RouterReason == "" {
		t.Error("RouterReason is empty on rejection")
	}
	if env.Artifacts.CapabilityID != "" {
		t.Errorf("CapabilityID = %q, want empty before routing", env.Artifacts.CapabilityID)
	}
}

func TestAnalyzeUnreadableDataset(t *testing.T) {
	te := newTestEngine(t)

	env, err := te.engine.Analyze(context.Background(), &api.AnalyzeRequest{
		CSV:  filepath.Join(t.TempDir(), "missing.csv"),
		Task: "causal_ate",
	})
	e := apiErr(t, err)
	if e.Type != api.ErrorTypeInvalidRequest {
		t.Fatalf("error type = %q, want invalid_request", e.Type)
	}
	if e.Param != "csv" {
		t.Errorf("Param = %q, want csv", e.Param)
	}
	if env.Status != api.StatusError {
		t.Errorf("Status = %q, want error", env.Status)
	}
}

func TestAnalyzeUnknownTask(t *testing.T) {
	te := newTestEngine(t)

	env, err := te.engine.Analyze(context.Background(), &api.AnalyzeRequest{
		CSV:  writeDataset(t),
		Task: "time_series_forecast",
	})
	e := apiErr(t, err)
	if e.Type != api.ErrorTypeNotFound {
		t.Fatalf("error type = %q, want not_found", e.Type)
	}
	if env.Stdout != "" {
		t.Error("backend ran for an unknown task")
	}
}

func TestAnalyzeUnroutable(t *testing.T) {
	te := newTestEngine(t)

	env, err := te.engine.Analyze(context.Background(), &api.AnalyzeRequest{
		CSV:     writeDataset(t),
		Request: "please summarize this document for me",
	})
	e := apiErr(t, err)
	if e.Type != api.ErrorTypeRoutingAmbiguous {
		t.Fatalf("error type = %q, want routing_ambiguous", e.Type)
	}
	if env.Artifacts.CapabilityID != "" {
		t.Errorf("CapabilityID = %q, want empty", env.Artifacts.CapabilityID)
	}
	if env.Stdout != "" {
		t.Error("backend ran for an unroutable request")
	}
}

func TestAnalyzeValidationFailedKeepsDecision(t *testing.T) {
	te := newTestEngine(t)

	env, err := te.engine.Analyze(context.Background(), &api.AnalyzeRequest{
		CSV:       writeDataset(t),
		Task:      "causal_ate",
		Treatment: "t",
		// outcome deliberately unbound
	})
	e := apiErr(t, err)
	if e.Type != api.ErrorTypeValidationFailed {
		t.Fatalf("error type = %q, want validation_failed", e.Type)
	}
	// The rejection still reports what was decided and why.
	if env.Artifacts.CapabilityID != "causal_ate" {
		t.Errorf("CapabilityID = %q, want causal_ate", env.Artifacts.CapabilityID)
	}
	if env.Artifacts.SelectedBy != api.SelectedExplicit {
		t.Errorf("SelectedBy = %q, want explicit", env.Artifacts.SelectedBy)
	}
	if env.Stdout != "" {
		t.Error("backend ran despite failed validation")
	}
}

func TestAnalyzeBackendFailure(t *testing.T) {
	te := newTestEngine(t)
	writeBackend(t, te.backendDir, "run_causalmodels", failingBackend)

	env, err := te.engine.Analyze(context.Background(), &api.AnalyzeRequest{
		CSV:       writeDataset(t),
		Task:      "causal_ate",
		Treatment: "t",
		Outcome:   "y",
	})
	e := apiErr(t, err)
	if e.Type != api.ErrorTypeBackendError {
		t.Fatalf("error type = %q, want backend_error", e.Type)
	}
	if env.Status != api.StatusError {
		t.Errorf("Status = %q, want error", env.Status)
	}
	if !strings.Contains(env.Stderr, "model failed to converge") {
		t.Errorf("Stderr = %q, want backend diagnostics preserved", env.Stderr)
	}
	// Routing metadata survives the backend failure.
	if env.Artifacts.CapabilityID != "causal_ate" {
		t.Errorf("CapabilityID = %q, want causal_ate", env.Artifacts.CapabilityID)
	}
}

func TestAnalyzeWarnings(t *testing.T) {
	te := newTestEngine(t)
	writeBackend(t, te.backendDir, "run_causalmodels", warningBackend)

	env, err := te.engine.Analyze(context.Background(), &api.AnalyzeRequest{
		CSV:       writeDataset(t),
		Task:      "causal_ate",
		Treatment: "t",
		Outcome:   "y",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if env.Status != api.StatusOKWarnings {
		t.Fatalf("Status = %q, want ok_with_warnings", env.Status)
	}
	if env.Error != "" {
		t.Errorf("Error = %q, want empty for a degraded success", env.Error)
	}
}

func TestAnalyzeRecordsRun(t *testing.T) {
	te := newTestEngine(t)

	_, err := te.engine.Analyze(context.Background(), &api.AnalyzeRequest{
		CSV:       writeDataset(t),
		Task:      "causal_ate",
		Treatment: "t",
		Outcome:   "y",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	list, err := te.store.ListRuns(context.Background(), transport.ListOptions{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(list.Data) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(list.Data))
	}
	rec := list.Data[0]
	if rec.Status != api.StatusOK {
		t.Errorf("recorded Status = %q, want ok", rec.Status)
	}
	if rec.CapabilityID != "causal_ate" {
		t.Errorf("recorded CapabilityID = %q, want causal_ate", rec.CapabilityID)
	}
	if rec.Request == nil || rec.Request.Treatment != "t" {
		t.Errorf("recorded Request = %+v, want original request", rec.Request)
	}
	if rec.DurationMs < 0 {
		t.Errorf("DurationMs = %d, want >= 0", rec.DurationMs)
	}
}

func TestAnalyzeRejectionsRecordedToo(t *testing.T) {
	te := newTestEngine(t)

	_, err := te.engine.Analyze(context.Background(), &api.AnalyzeRequest{
		CSV:     writeDataset(t),
		Request: "please summarize this document",
	})
	if err == nil {
		t.Fatal("expected routing rejection")
	}

	list, err := te.store.ListRuns(context.Background(), transport.ListOptions{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(list.Data) != 1 {
		t.Fatalf("len(runs) = %d, want rejected run recorded", len(list.Data))
	}
	if list.Data[0].Status != api.StatusError {
		t.Errorf("recorded Status = %q, want error", list.Data[0].Status)
	}
}

func TestAnalyzeWithoutStore(t *testing.T) {
	te := newTestEngine(t)
	noStore, err := New(Config{
		Registry:   te.engine.registry,
		Router:     te.engine.router,
		Dispatcher: te.engine.dispatcher,
		Logger:     te.engine.logger,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	env, err := noStore.Analyze(context.Background(), &api.AnalyzeRequest{
		CSV:       writeDataset(t),
		Task:      "causal_ate",
		Treatment: "t",
		Outcome:   "y",
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if env.Status != api.StatusOK {
		t.Errorf("Status = %q, want ok without a store", env.Status)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	te := newTestEngine(t)
	req := &api.AnalyzeRequest{
		CSV:        writeDataset(t),
		Request:    "treatment effect of the intervention",
		Treatment:  "t",
		Outcome:    "y",
		Covariates: []string{"x1", "x2"},
	}

	first, err := te.engine.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	second, err := te.engine.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}

	if first.Artifacts.CapabilityID != second.Artifacts.CapabilityID {
		t.Errorf("capability differs across identical requests: %q vs %q",
			first.Artifacts.CapabilityID, second.Artifacts.CapabilityID)
	}
	if first.Artifacts.SummaryJSON == second.Artifacts.SummaryJSON {
		t.Error("runs share a summary path, want per-run isolation")
	}
}

func TestCapabilities(t *testing.T) {
	te := newTestEngine(t)

	list := te.engine.Capabilities()
	if list.Object != "list" {
		t.Errorf("Object = %q, want list", list.Object)
	}
	ids := make(map[string]bool, len(list.Data))
	for _, c := range list.Data {
		ids[c.ID] = true
	}
	for _, want := range []string{"causal_ate", "survival_adjusted_curves", "dummy_echo"} {
		if !ids[want] {
			t.Errorf("capability %q missing from listing", want)
		}
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for missing registry")
	}
}
