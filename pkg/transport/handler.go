package transport

import (
	"context"

	"github.com/arvhal/causeway/pkg/api"
)

// AnalysisHandler is the primary handler contract. Analyze always returns a
// complete response envelope, including on rejections and backend failures;
// the error return carries the taxonomy error (*api.APIError) for status
// mapping and logging, or nil when the envelope's status is ok or
// ok_with_warnings.
type AnalysisHandler interface {
	Analyze(ctx context.Context, req *api.AnalyzeRequest) (*api.ResponseEnvelope, error)
}

// AnalysisHandlerFunc is an adapter that allows using an ordinary function
// as an AnalysisHandler.
type AnalysisHandlerFunc func(ctx context.Context, req *api.AnalyzeRequest) (*api.ResponseEnvelope, error)

// Analyze calls f(ctx, req).
func (f AnalysisHandlerFunc) Analyze(ctx context.Context, req *api.AnalyzeRequest) (*api.ResponseEnvelope, error) {
	return f(ctx, req)
}

// ListOptions controls pagination and filtering for run listings.
type ListOptions struct {
	After      string // Cursor: return runs after this ID.
	Before     string // Cursor: return runs before this ID.
	Limit      int    // Maximum number of runs to return (default 20, max 100).
	Capability string // Filter by capability id.
	Order      string // Sort order: "asc" or "desc" (default "desc").
}

// RunStore persists and retrieves run history. Results are scoped by tenant
// when a tenant is present in the context.
type RunStore interface {
	// SaveRun persists a completed run.
	SaveRun(ctx context.Context, run *api.RunRecord) error

	// GetRun retrieves a run by ID. Returns storage.ErrNotFound when the
	// run does not exist or belongs to another tenant.
	GetRun(ctx context.Context, id string) (*api.RunRecord, error)

	// ListRuns returns a paginated list of stored runs, newest first by
	// default, with cursor-based pagination.
	ListRuns(ctx context.Context, opts ListOptions) (*api.RunList, error)

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}
