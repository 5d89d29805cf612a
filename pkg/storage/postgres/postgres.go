// Package postgres provides a PostgreSQL implementation of transport.RunStore.
// It uses pgx/v5 for connection pooling and JSONB for the request echo.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arvhal/causeway/pkg/api"
	"github.com/arvhal/causeway/pkg/storage"
	"github.com/arvhal/causeway/pkg/transport"
)

// Store is a PostgreSQL-backed RunStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ transport.RunStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres: DSN is required")
	}
	cfg.applyDefaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveRun persists a completed run.
func (s *Store) SaveRun(ctx context.Context, run *api.RunRecord) error {
	tenantID := storage.GetTenant(ctx)

	var requestJSON []byte
	if run.Request != nil {
		var err error
		requestJSON, err = json.Marshal(run.Request)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO runs (
			id, tenant_id, status, capability_id, selected_tool,
			selected_by, router_reason, summary_json, error,
			stdout, stderr, duration_ms, request, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		run.ID, tenantID, string(run.Status), run.CapabilityID, run.SelectedTool,
		string(run.SelectedBy), run.RouterReason, nullString(run.SummaryJSON), nullString(run.Error),
		run.Stdout, run.Stderr, run.DurationMs, nullJSON(requestJSON), run.CreatedAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID, scoped by tenant when one is present in
// the context.
func (s *Store) GetRun(ctx context.Context, id string) (*api.RunRecord, error) {
	tenantID := storage.GetTenant(ctx)

	query := `
		SELECT id, status, capability_id, selected_tool, selected_by,
		       router_reason, summary_json, error,
		       stdout, stderr, duration_ms, request, created_at
		FROM runs
		WHERE id = $1
	`
	args := []any{id}
	if tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	var run api.RunRecord
	var status, selectedBy string
	var summaryJSON, errText *string
	var requestJSON *[]byte

	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&run.ID, &status, &run.CapabilityID, &run.SelectedTool, &selectedBy,
		&run.RouterReason, &summaryJSON, &errText,
		&run.Stdout, &run.Stderr, &run.DurationMs, &requestJSON, &run.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}

	run.Status = api.Status(status)
	run.SelectedBy = api.SelectionMethod(selectedBy)
	if summaryJSON != nil {
		run.SummaryJSON = *summaryJSON
	}
	if errText != nil {
		run.Error = *errText
	}
	if requestJSON != nil {
		var req api.AnalyzeRequest
		if err := json.Unmarshal(*requestJSON, &req); err != nil {
			return nil, fmt.Errorf("unmarshaling request: %w", err)
		}
		run.Request = &req
	}

	return &run, nil
}

// ListRuns returns a paginated list of stored runs with cursor-based
// pagination. Cursors compare on (created_at, id), matching the sort order.
func (s *Store) ListRuns(ctx context.Context, opts transport.ListOptions) (*api.RunList, error) {
	tenantID := storage.GetTenant(ctx)

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	asc := opts.Order == "asc"
	order := "DESC"
	cmpAfter, cmpBefore := "<", ">"
	if asc {
		order = "ASC"
		cmpAfter, cmpBefore = ">", "<"
	}

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if tenantID != "" {
		conds = append(conds, "tenant_id = "+arg(tenantID))
	}
	if opts.Capability != "" {
		conds = append(conds, "capability_id = "+arg(opts.Capability))
	}
	if opts.After != "" {
		conds = append(conds, fmt.Sprintf("(created_at, id) %s (SELECT created_at, id FROM runs WHERE id = %s)", cmpAfter, arg(opts.After)))
	} else if opts.Before != "" {
		conds = append(conds, fmt.Sprintf("(created_at, id) %s (SELECT created_at, id FROM runs WHERE id = %s)", cmpBefore, arg(opts.Before)))
	}

	query := `
		SELECT id, status, capability_id, selected_tool, selected_by,
		       router_reason, summary_json, error, duration_ms, created_at
		FROM runs
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	// One extra row decides has_more.
	query += fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT %s", order, order, arg(limit+1))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*api.RunRecord
	for rows.Next() {
		var run api.RunRecord
		var status, selectedBy string
		var summaryJSON, errText *string
		if err := rows.Scan(
			&run.ID, &status, &run.CapabilityID, &run.SelectedTool, &selectedBy,
			&run.RouterReason, &summaryJSON, &errText, &run.DurationMs, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.Status = api.Status(status)
		run.SelectedBy = api.SelectionMethod(selectedBy)
		if summaryJSON != nil {
			run.SummaryJSON = *summaryJSON
		}
		if errText != nil {
			run.Error = *errText
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	hasMore := len(runs) > limit
	if hasMore {
		runs = runs[:limit]
	}

	result := &api.RunList{
		Object:  "list",
		Data:    runs,
		HasMore: hasMore,
	}
	if len(runs) > 0 {
		result.FirstID = runs[0].ID
		result.LastID = runs[len(runs)-1].ID
	}
	if result.Data == nil {
		result.Data = []*api.RunRecord{}
	}
	return result, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullString converts an empty string to nil for nullable TEXT columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullJSON converts nil/empty byte slices to nil for nullable JSONB columns.
func nullJSON(b []byte) *[]byte {
	if len(b) == 0 {
		return nil
	}
	return &b
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
