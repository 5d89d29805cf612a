// Command mock-backend is a deterministic stand-in for the statistical
// backend programs. It accepts the same command line as run_causalmodels
// and run_adjustedcurves, reads the dataset header, and writes a synthetic
// summary artifact. Install it into the backend directory under the name
// of the backend it should impersonate.
//
// Behavior is controlled by environment variables:
//
//	MOCK_MODE  - "ok" (default), "warn", "fail", or "slow"
//	MOCK_TOOL  - tool name reported in the summary (default: "causalmodels")
//	MOCK_SLEEP - sleep duration for mode "slow" (default: 30s)
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

type summary struct {
	Tool         string    `json:"tool"`
	Status       string    `json:"status"`
	InputCSV     string    `json:"input_csv,omitempty"`
	Treatment    string    `json:"treatment,omitempty"`
	Outcome      string    `json:"outcome,omitempty"`
	N            int       `json:"n,omitempty"`
	PConfounders int       `json:"p_confounders,omitempty"`
	ATE          *float64  `json:"ate,omitempty"`
	SE           *float64  `json:"se,omitempty"`
	CI95         []float64 `json:"ci95,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
}

func main() {
	csvPath := flag.String("csv", "", "dataset path")
	treatment := flag.String("treatment", "", "treatment column")
	outcome := flag.String("outcome", "", "outcome column")
	flag.String("time", "", "time column")
	flag.String("event", "", "event column")
	flag.String("group", "", "group column")
	covariates := flag.String("covariates", "", "comma-separated covariates")
	flag.Int("max_covariates", 0, "covariate cap")
	outJSON := flag.String("out_json", "", "summary artifact path")
	flag.Parse()

	if err := run(*csvPath, *treatment, *outcome, *covariates, *outJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(csvPath, treatment, outcome, covariates, outJSON string) error {
	mode := os.Getenv("MOCK_MODE")
	if mode == "" {
		mode = "ok"
	}

	switch mode {
	case "fail":
		return fmt.Errorf("model failed to converge")
	case "slow":
		sleep := 30 * time.Second
		if v := os.Getenv("MOCK_SLEEP"); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				sleep = d
			}
		}
		time.Sleep(sleep)
	}

	if csvPath == "" {
		return fmt.Errorf("--csv is required")
	}
	if outJSON == "" {
		return fmt.Errorf("--out_json is required")
	}

	rows, err := countRows(csvPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", csvPath, err)
	}

	tool := os.Getenv("MOCK_TOOL")
	if tool == "" {
		tool = "causalmodels"
	}

	ate := 1.5
	se := 0.3
	s := summary{
		Tool:         tool,
		Status:       "ok",
		InputCSV:     csvPath,
		Treatment:    treatment,
		Outcome:      outcome,
		N:            rows,
		PConfounders: countCovariates(covariates),
		ATE:          &ate,
		SE:           &se,
		CI95:         []float64{ate - 1.96*se, ate + 1.96*se},
	}

	if mode == "warn" {
		s.Status = "ok_with_na"
		s.Warnings = []string{"dropped rows with missing covariate values"}
	}

	fmt.Printf("mock backend: %s on %s (n=%d)\n", tool, csvPath, rows)

	f, err := os.Create(outJSON)
	if err != nil {
		return fmt.Errorf("creating artifact: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// countRows counts the data rows, excluding the header.
func countRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("empty dataset")
	}
	return len(records) - 1, nil
}

func countCovariates(covariates string) int {
	if covariates == "" {
		return 0
	}
	return len(strings.Split(covariates, ","))
}
