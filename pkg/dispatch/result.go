package dispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Class is the exit classification of a dispatch attempt.
type Class string

const (
	// ClassSuccess means the process exited cleanly and produced a valid
	// artifact with no degradation markers.
	ClassSuccess Class = "success"

	// ClassWarnings means the process exited cleanly but the artifact
	// reports degraded results (e.g. tolerated missingness).
	ClassWarnings Class = "success-with-warnings"

	// ClassBackendError means the process failed or the artifact is
	// missing or malformed.
	ClassBackendError Class = "backend-error"

	// ClassTimeout means the execution bound was exceeded and the process
	// was forcibly terminated.
	ClassTimeout Class = "timeout"

	// ClassNotFound means the backend executable could not be resolved.
	ClassNotFound Class = "not-found"
)

// Summary is the self-describing artifact a backend writes on completion.
// Only Status and Warnings drive control decisions; the numeric highlights
// are passed through to callers untouched.
type Summary struct {
	Tool            string    `json:"tool,omitempty"`
	Status          string    `json:"status,omitempty"`
	InputCSV        string    `json:"input_csv,omitempty"`
	Treatment       string    `json:"treatment,omitempty"`
	Outcome         string    `json:"outcome,omitempty"`
	TreatmentLevels []any     `json:"treatment_levels,omitempty"`
	N               int       `json:"n,omitempty"`
	PConfounders    int       `json:"p_confounders,omitempty"`
	ATE             *float64  `json:"ate,omitempty"`
	SE              *float64  `json:"se,omitempty"`
	CI95            []float64 `json:"ci95,omitempty"`
	Warnings        []string  `json:"warnings,omitempty"`
}

// Degraded reports whether the artifact marks the run as ok but impaired.
func (s *Summary) Degraded() bool {
	if len(s.Warnings) > 0 {
		return true
	}
	return s.Status != "ok" && strings.HasPrefix(s.Status, "ok_")
}

// Result is the outcome of one dispatch attempt.
type Result struct {
	Class  Class
	Stdout string
	Stderr string

	// SummaryPath is the artifact location, empty when none was produced.
	SummaryPath string

	// Summary is the parsed artifact, nil when missing or malformed.
	Summary *Summary

	// Detail explains the classification for the error classes.
	Detail string
}

// readSummary loads and validates the artifact at path, mapping every
// failure shape to a backend-error classification.
func readSummary(path string) (*Summary, Class, string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ClassBackendError, "backend exited cleanly but produced no summary artifact"
	}

	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, ClassBackendError, fmt.Sprintf("summary artifact is not valid JSON: %s", err)
	}

	switch {
	case s.Status == "ok" && len(s.Warnings) == 0:
		return &s, ClassSuccess, ""
	case s.Degraded():
		return &s, ClassWarnings, strings.Join(s.Warnings, "; ")
	default:
		return &s, ClassBackendError, fmt.Sprintf("backend reported status %q", s.Status)
	}
}
