// Command demo runs the routing and dispatch pipeline end to end without a
// server. It writes a small dataset and a stand-in backend into a temp
// directory, then walks through an explicit dispatch, a rule-routed
// dispatch, and two rejection paths, printing each envelope.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/arvhal/causeway/pkg/api"
	"github.com/arvhal/causeway/pkg/classify"
	"github.com/arvhal/causeway/pkg/dispatch"
	"github.com/arvhal/causeway/pkg/engine"
	"github.com/arvhal/causeway/pkg/registry"
	"github.com/arvhal/causeway/pkg/router"
	"github.com/arvhal/causeway/pkg/storage/memory"
)

const backendScript = `#!/bin/sh
out=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "--out_json" ]; then out="$arg"; fi
  prev="$arg"
done
echo "backend running"
cat > "$out" <<'EOF'
{"tool":"causalmodels","status":"ok","ate":1.5,"se":0.3,"ci95":[0.912,2.088]}
EOF
`

const dataset = `enrolled,earnings,age,education
1,31500,34,12
0,27800,29,16
1,30200,41,14
0,26900,37,12
1,29800,25,16
`

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	dir, err := os.MkdirTemp("", "causeway-demo-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	backendDir := filepath.Join(dir, "backends")
	if err := os.MkdirAll(backendDir, 0o755); err != nil {
		return err
	}
	for _, name := range []string{"run_causalmodels", "run_adjustedcurves", "run_dummy"} {
		if err := os.WriteFile(filepath.Join(backendDir, name), []byte(backendScript), 0o755); err != nil {
			return err
		}
	}

	csvPath := filepath.Join(dir, "jobs.csv")
	if err := os.WriteFile(csvPath, []byte(dataset), 0o644); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	reg := registry.Builtin()
	rules := classify.NewRuleClassifier(reg, classify.DefaultWeights())
	rtr := router.New(reg, rules, nil, logger)
	dispatcher := dispatch.NewDispatcher(dispatch.LocalRunner{}, dispatch.Options{
		BackendDir: backendDir,
		OutDir:     filepath.Join(dir, "out"),
	}, logger)

	eng, err := engine.New(engine.Config{
		Registry:   reg,
		Router:     rtr,
		Dispatcher: dispatcher,
		Store:      memory.New(100),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()

	fmt.Println("=== causeway pipeline demo ===")

	show(ctx, eng, "[1] explicit task hint", &api.AnalyzeRequest{
		CSV:        csvPath,
		Task:       "causal_ate",
		Treatment:  "enrolled",
		Outcome:    "earnings",
		Covariates: []string{"age", "education"},
	})

	show(ctx, eng, "[2] rule-based routing from free text", &api.AnalyzeRequest{
		CSV:       csvPath,
		Request:   "Estimate the causal effect of program enrollment on earnings",
		Treatment: "enrolled",
		Outcome:   "earnings",
	})

	show(ctx, eng, "[3] unknown task hint", &api.AnalyzeRequest{
		CSV:  csvPath,
		Task: "flimflam",
	})

	show(ctx, eng, "[4] unroutable request", &api.AnalyzeRequest{
		CSV:     csvPath,
		Request: "please summarize this document for me",
	})

	fmt.Println("\n=== demo complete ===")
	return nil
}

func show(ctx context.Context, eng *engine.Engine, title string, req *api.AnalyzeRequest) {
	fmt.Println("\n" + title)

	env, err := eng.Analyze(ctx, req)
	if err != nil {
		fmt.Printf("    rejected: %v\n", err)
	}

	body, _ := json.MarshalIndent(env, "    ", "  ")
	fmt.Printf("    %s\n", body)
}
