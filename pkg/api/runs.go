package api

// RunRecord is the stored history entry for one analysis request. It is
// both the persistence shape and the wire shape of GET /v1/runs/{id}.
type RunRecord struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`

	Status       Status          `json:"status"`
	CapabilityID string          `json:"capability_id,omitempty"`
	SelectedTool string          `json:"selected_tool,omitempty"`
	SelectedBy   SelectionMethod `json:"selected_by,omitempty"`
	RouterReason string          `json:"router_reason,omitempty"`
	SummaryJSON  string          `json:"summary_json,omitempty"`
	Error        string          `json:"error,omitempty"`

	Stdout string `json:"stdout,omitempty"`
	Stderr string `json:"stderr,omitempty"`

	DurationMs int64 `json:"duration_ms,omitempty"`

	// Request echoes the originating request for auditability.
	Request *AnalyzeRequest `json:"request,omitempty"`
}

// RunList holds a paginated list of run records.
type RunList struct {
	Object  string       `json:"object"`
	Data    []*RunRecord `json:"data"`
	HasMore bool         `json:"has_more"`
	FirstID string       `json:"first_id"`
	LastID  string       `json:"last_id"`
}
