package api

import "encoding/json"

// Status is the top-level outcome of an analysis request.
type Status string

const (
	StatusOK         Status = "ok"
	StatusOKWarnings Status = "ok_with_warnings"
	StatusError      Status = "error"
)

// SelectionMethod identifies which routing mechanism chose the capability.
type SelectionMethod string

const (
	// SelectedExplicit means the request carried a recognized task hint.
	SelectedExplicit SelectionMethod = "explicit"

	// SelectedLLM means the LLM classifier made a confident, registry-valid
	// choice.
	SelectedLLM SelectionMethod = "llm"

	// SelectedRule means the rule-based classifier's top candidate was used,
	// either directly or as fallback after an LLM failure.
	SelectedRule SelectionMethod = "rule"
)

// TaskAuto is the explicit "let the router decide" task value, equivalent
// to leaving the task unset.
const TaskAuto = "auto"

// AnalyzeRequest is a single analysis request. It is immutable after
// construction and owned by exactly one routing+dispatch cycle.
type AnalyzeRequest struct {
	// CSV is the path to the dataset (required).
	CSV string `json:"csv"`

	// Request is an optional free-text description of the analysis.
	Request string `json:"request,omitempty"`

	// Task is an optional explicit capability hint: a registered capability
	// id, or "auto" (equivalent to empty) to let the router decide.
	Task string `json:"task,omitempty"`

	// Column bindings for the semantic input roles. All optional; the
	// schema validator rejects a capability whose required roles are unbound.
	Treatment  string   `json:"treatment,omitempty"`
	Outcome    string   `json:"outcome,omitempty"`
	Time       string   `json:"time,omitempty"`
	Event      string   `json:"event,omitempty"`
	Group      string   `json:"group,omitempty"`
	Covariates []string `json:"covariates,omitempty"`

	// MaxCovariates caps the number of covariates passed to the backend.
	// Zero means the server default.
	MaxCovariates int `json:"max_covariates,omitempty"`

	// UseLLMRouter enables the LLM classification path. Default false.
	UseLLMRouter bool `json:"use_llm_router,omitempty"`

	// OutDir overrides the output directory for backend artifacts.
	OutDir string `json:"out_dir,omitempty"`
}

// RoleBinding returns the column bound to the named role, or empty string.
// Covariates are not addressable through this accessor since they bind a
// list, not a single column.
func (r *AnalyzeRequest) RoleBinding(role string) string {
	switch role {
	case "treatment":
		return r.Treatment
	case "outcome":
		return r.Outcome
	case "time":
		return r.Time
	case "event":
		return r.Event
	case "group":
		return r.Group
	}
	return ""
}

// BoundRoles returns the set of single-column roles that carry a binding.
func (r *AnalyzeRequest) BoundRoles() map[string]string {
	out := make(map[string]string, 5)
	for _, role := range []string{"treatment", "outcome", "time", "event", "group"} {
		if col := r.RoleBinding(role); col != "" {
			out[role] = col
		}
	}
	return out
}

// Artifacts carries the routing metadata and artifact references of an
// analysis response. It is always populated, including on errors, so the
// routing decision stays auditable regardless of outcome.
type Artifacts struct {
	// CapabilityID is the chosen capability, or empty when the request was
	// rejected before a capability was decided.
	CapabilityID string `json:"capability_id"`

	// SelectedBy records the selection method, empty when undecided.
	SelectedBy SelectionMethod `json:"selected_by"`

	// RouterReason is the human-readable routing rationale. Opaque free
	// text; never parsed for control decisions.
	RouterReason string `json:"router_reason"`

	// SummaryJSON is the path to the backend's structured summary artifact,
	// empty when no artifact was produced.
	SummaryJSON string `json:"summary_json"`
}

// MarshalJSON writes unset optional fields as explicit nulls, keeping the
// wire shape stable across success and rejection paths.
func (a Artifacts) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		CapabilityID *string `json:"capability_id"`
		SelectedBy   *string `json:"selected_by"`
		RouterReason string  `json:"router_reason"`
		SummaryJSON  *string `json:"summary_json"`
	}{
		CapabilityID: nullable(a.CapabilityID),
		SelectedBy:   nullable(string(a.SelectedBy)),
		RouterReason: a.RouterReason,
		SummaryJSON:  nullable(a.SummaryJSON),
	})
}

// ResponseEnvelope is the terminal output of the routing+dispatch pipeline.
// One envelope is produced per request, on every path.
type ResponseEnvelope struct {
	Status       Status    `json:"status"`
	SelectedTool string    `json:"selected_tool"`
	Stdout       string    `json:"stdout"`
	Stderr       string    `json:"stderr"`
	Artifacts    Artifacts `json:"artifacts"`
	Error        string    `json:"error"`
}

// MarshalJSON mirrors Artifacts.MarshalJSON for the envelope's own optional
// fields.
func (e ResponseEnvelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Status       Status    `json:"status"`
		SelectedTool *string   `json:"selected_tool"`
		Stdout       string    `json:"stdout"`
		Stderr       string    `json:"stderr"`
		Artifacts    Artifacts `json:"artifacts"`
		Error        *string   `json:"error"`
	}{
		Status:       e.Status,
		SelectedTool: nullable(e.SelectedTool),
		Stdout:       e.Stdout,
		Stderr:       e.Stderr,
		Artifacts:    e.Artifacts,
		Error:        nullable(e.Error),
	})
}

// nullable maps the empty string to an explicit JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CapabilityInfo describes a registered capability for listing endpoints.
type CapabilityInfo struct {
	ID          string     `json:"id"`
	Tool        string     `json:"tool"`
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Roles       []RoleInfo `json:"roles"`
}

// RoleInfo describes one input role of a capability.
type RoleInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Required bool   `json:"required"`
}

// CapabilityList is the response body of GET /v1/capabilities.
type CapabilityList struct {
	Object string           `json:"object"`
	Data   []CapabilityInfo `json:"data"`
}
