package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/arvhal/causeway/pkg/api"
	"github.com/arvhal/causeway/pkg/storage"
	"github.com/arvhal/causeway/pkg/transport"
)

func init() {
	// Configure testcontainers to use podman.
	// Detect the podman socket from `podman machine inspect`.
	if os.Getenv("DOCKER_HOST") == "" {
		out, err := exec.Command("podman", "machine", "inspect", "--format", "{{.ConnectionInfo.PodmanSocket.Path}}").Output()
		if err == nil {
			sock := strings.TrimSpace(string(out))
			if sock != "" {
				os.Setenv("DOCKER_HOST", "unix://"+sock)
			}
		}
	}
	// Ryuk needs privileged mode with podman.
	if os.Getenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_CONTAINER_PRIVILEGED", "true")
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{DSN: "postgres://localhost/causeway"}
	c.applyDefaults()
	if c.MaxConns != 10 || c.MinConns != 2 {
		t.Errorf("pool sizes = %d/%d, want 10/2", c.MaxConns, c.MinConns)
	}
	if c.MaxConnLifetime != 30*time.Minute {
		t.Errorf("MaxConnLifetime = %s, want 30m", c.MaxConnLifetime)
	}
	if c.ConnectTimeout != 5*time.Second {
		t.Errorf("ConnectTimeout = %s, want 5s", c.ConnectTimeout)
	}
}

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("New accepted an empty DSN")
	}
}

// setupTestDB starts a PostgreSQL container and returns a connected Store.
// Tests are skipped if no container runtime is available.
func setupTestDB(t *testing.T) *Store {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	if _, err := exec.LookPath("podman"); err != nil {
		t.Skip("podman not found, skipping integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("causeway_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container (is podman running?): %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	store, err := New(ctx, Config{
		DSN:            connStr,
		MaxConns:       5,
		MinConns:       1,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func makeTestRun(id string, createdAt int64) *api.RunRecord {
	return &api.RunRecord{
		ID:           id,
		CreatedAt:    createdAt,
		Status:       api.StatusOK,
		CapabilityID: "causal_ate",
		SelectedTool: "causalmodels",
		SelectedBy:   api.SelectedExplicit,
		RouterReason: `explicit task hint "causal_ate"`,
		SummaryJSON:  "out/api/" + id + "/summary.json",
		Stdout:       "fit complete",
		DurationMs:   412,
		Request: &api.AnalyzeRequest{
			CSV:        "ihdp.csv",
			Task:       "causal_ate",
			Treatment:  "t",
			Outcome:    "y",
			Covariates: []string{"x1", "x2"},
		},
	}
}

func uniqueID(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestPostgres_SaveAndGet(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	run := makeTestRun(uniqueID("run_pg"), time.Now().Unix())
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.Status != api.StatusOK {
		t.Errorf("Status = %q, want ok", got.Status)
	}
	if got.CapabilityID != "causal_ate" || got.SelectedTool != "causalmodels" {
		t.Errorf("capability/tool = %q/%q", got.CapabilityID, got.SelectedTool)
	}
	if got.SelectedBy != api.SelectedExplicit {
		t.Errorf("SelectedBy = %q, want explicit", got.SelectedBy)
	}
	if got.SummaryJSON != run.SummaryJSON {
		t.Errorf("SummaryJSON = %q, want %q", got.SummaryJSON, run.SummaryJSON)
	}
	if got.Request == nil || got.Request.Treatment != "t" || len(got.Request.Covariates) != 2 {
		t.Errorf("Request round-trip = %+v", got.Request)
	}
}

func TestPostgres_GetNotFound(t *testing.T) {
	store := setupTestDB(t)

	_, err := store.GetRun(context.Background(), "run_nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_DuplicateSave(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	run := makeTestRun(uniqueID("run_dup"), time.Now().Unix())
	store.SaveRun(ctx, run)

	if err := store.SaveRun(ctx, run); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestPostgres_ListPagination(t *testing.T) {
	store := setupTestDB(t)
	ctx := storage.SetTenant(context.Background(), uniqueID("tenant"))

	base := time.Now().Unix()
	var ids []string
	for i := 0; i < 5; i++ {
		id := uniqueID(fmt.Sprintf("run_list%d", i))
		ids = append(ids, id)
		if err := store.SaveRun(ctx, makeTestRun(id, base+int64(i))); err != nil {
			t.Fatalf("SaveRun: %v", err)
		}
	}

	first, err := store.ListRuns(ctx, transport.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(first.Data) != 2 || !first.HasMore {
		t.Fatalf("first page: len=%d has_more=%v", len(first.Data), first.HasMore)
	}
	// Newest first.
	if first.Data[0].ID != ids[4] {
		t.Errorf("first.Data[0] = %q, want %q", first.Data[0].ID, ids[4])
	}

	second, err := store.ListRuns(ctx, transport.ListOptions{Limit: 2, After: first.LastID})
	if err != nil {
		t.Fatalf("ListRuns after cursor: %v", err)
	}
	if len(second.Data) != 2 || second.Data[0].ID != ids[2] {
		t.Errorf("second page = %v", runIDs(second))
	}

	third, err := store.ListRuns(ctx, transport.ListOptions{Limit: 2, After: second.LastID})
	if err != nil {
		t.Fatalf("ListRuns last page: %v", err)
	}
	if len(third.Data) != 1 || third.HasMore {
		t.Errorf("third page: len=%d has_more=%v", len(third.Data), third.HasMore)
	}
}

func runIDs(l *api.RunList) []string {
	var out []string
	for _, r := range l.Data {
		out = append(out, r.ID)
	}
	return out
}

func TestPostgres_ListCapabilityFilter(t *testing.T) {
	store := setupTestDB(t)
	ctx := storage.SetTenant(context.Background(), uniqueID("tenant"))

	ate := makeTestRun(uniqueID("run_f_ate"), time.Now().Unix())
	surv := makeTestRun(uniqueID("run_f_surv"), time.Now().Unix()+1)
	surv.CapabilityID = "survival_adjusted_curves"
	surv.SelectedTool = "adjustedcurves"
	store.SaveRun(ctx, ate)
	store.SaveRun(ctx, surv)

	list, err := store.ListRuns(ctx, transport.ListOptions{Capability: "survival_adjusted_curves"})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(list.Data) != 1 || list.Data[0].ID != surv.ID {
		t.Errorf("filtered list = %v", runIDs(list))
	}
}

func TestPostgres_TenantIsolation(t *testing.T) {
	store := setupTestDB(t)

	ctxA := storage.SetTenant(context.Background(), "tenant-a")
	ctxB := storage.SetTenant(context.Background(), "tenant-b")

	run := makeTestRun(uniqueID("run_tenant"), time.Now().Unix())
	store.SaveRun(ctxA, run)

	if _, err := store.GetRun(ctxA, run.ID); err != nil {
		t.Fatalf("tenant A should see own run: %v", err)
	}
	if _, err := store.GetRun(ctxB, run.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Error("tenant B should not see tenant A's run")
	}
	// No tenant sees all (single-tenant mode).
	if _, err := store.GetRun(context.Background(), run.ID); err != nil {
		t.Fatalf("no-tenant should see all: %v", err)
	}
}

func TestPostgres_HealthCheck(t *testing.T) {
	store := setupTestDB(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck failed: %v", err)
	}
}
