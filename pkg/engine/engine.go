package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arvhal/causeway/pkg/api"
	"github.com/arvhal/causeway/pkg/dataset"
	"github.com/arvhal/causeway/pkg/dispatch"
	"github.com/arvhal/causeway/pkg/observability"
	"github.com/arvhal/causeway/pkg/registry"
	"github.com/arvhal/causeway/pkg/router"
	"github.com/arvhal/causeway/pkg/transport"
)

// Config collects the engine's collaborators. Registry, Router, and
// Dispatcher are required; Store and Logger are optional.
type Config struct {
	Registry   *registry.Registry
	Router     *router.Router
	Dispatcher *dispatch.Dispatcher

	// Store persists run records. Nil disables persistence; analyses
	// still run, they are just not retrievable afterwards.
	Store transport.RunStore

	Logger *slog.Logger

	// Validation overrides the request validation limits. The zero value
	// selects the defaults.
	Validation api.ValidationConfig

	// SampleRows bounds dataset profiling. Zero selects the default.
	SampleRows int
}

// Engine orchestrates one analysis per request: validate, profile the
// dataset, route, dispatch, assemble the envelope, and record the run.
type Engine struct {
	registry   *registry.Registry
	router     *router.Router
	dispatcher *dispatch.Dispatcher
	store      transport.RunStore
	logger     *slog.Logger
	validation api.ValidationConfig
	sampleRows int
}

// Ensure Engine implements transport.AnalysisHandler at compile time.
var _ transport.AnalysisHandler = (*Engine)(nil)

// New creates an Engine. Registry, Router, and Dispatcher must not be nil.
func New(cfg Config) (*Engine, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("engine: registry must not be nil")
	}
	if cfg.Router == nil {
		return nil, fmt.Errorf("engine: router must not be nil")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("engine: dispatcher must not be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Validation == (api.ValidationConfig{}) {
		cfg.Validation = api.DefaultValidationConfig()
	}
	if cfg.SampleRows == 0 {
		cfg.SampleRows = dataset.DefaultSampleRows
	}
	return &Engine{
		registry:   cfg.Registry,
		router:     cfg.Router,
		dispatcher: cfg.Dispatcher,
		store:      cfg.Store,
		logger:     cfg.Logger,
		validation: cfg.Validation,
		sampleRows: cfg.SampleRows,
	}, nil
}

// Capabilities lists the registered capabilities.
func (e *Engine) Capabilities() api.CapabilityList {
	return api.CapabilityList{Object: "list", Data: e.registry.Infos()}
}

// Analyze runs the full pipeline for one request. The returned envelope is
// never nil; when err is non-nil it is an *api.APIError and the envelope
// carries the matching error status.
func (e *Engine) Analyze(ctx context.Context, req *api.AnalyzeRequest) (*api.ResponseEnvelope, error) {
	runID := api.NewRunID()
	start := time.Now()

	if apiErr := api.ValidateRequest(req, e.validation); apiErr != nil {
		env := rejectedEnvelope(router.Decision{}, "request invalid; routing not attempted", apiErr)
		e.record(ctx, runID, req, env, time.Since(start))
		return env, apiErr
	}

	profile, err := dataset.Load(req.CSV, e.sampleRows)
	if err != nil {
		apiErr := api.NewInvalidRequestError("csv", fmt.Sprintf("reading dataset: %s", err))
		env := rejectedEnvelope(router.Decision{}, "dataset unreadable; routing not attempted", apiErr)
		e.record(ctx, runID, req, env, time.Since(start))
		return env, apiErr
	}

	decision, routeErr := e.router.Route(ctx, req, profile)
	if routeErr != nil {
		apiErr := asAPIError(routeErr)
		observability.RoutingRejectedTotal.WithLabelValues(string(apiErr.Type)).Inc()
		env := rejectedEnvelope(decision, apiErr.Message, apiErr)
		e.record(ctx, runID, req, env, time.Since(start))
		return env, apiErr
	}
	observability.RoutingDecisionsTotal.WithLabelValues(decision.CapabilityID, string(decision.Method)).Inc()

	desc, err := e.registry.Get(decision.CapabilityID)
	if err != nil {
		// Route guarantees the capability exists; reaching this is a bug.
		apiErr := api.NewServerError(fmt.Sprintf("routed to unregistered capability %q", decision.CapabilityID))
		env := rejectedEnvelope(decision, decision.Reason, apiErr)
		e.record(ctx, runID, req, env, time.Since(start))
		return env, apiErr
	}

	observability.ActiveDispatches.Inc()
	dispatchStart := time.Now()
	res := e.dispatcher.Dispatch(ctx, desc, req, runID)
	observability.DispatchDuration.WithLabelValues(desc.ID).Observe(time.Since(dispatchStart).Seconds())
	observability.ActiveDispatches.Dec()
	observability.DispatchesTotal.WithLabelValues(desc.ID, string(res.Class)).Inc()

	env, apiErr := assemble(decision, desc, res)
	e.record(ctx, runID, req, env, time.Since(start))
	if apiErr != nil {
		return env, apiErr
	}
	return env, nil
}

// record persists the run when a store is configured. Persistence failures
// are logged, never surfaced; the analysis result stands on its own.
func (e *Engine) record(ctx context.Context, runID string, req *api.AnalyzeRequest, env *api.ResponseEnvelope, elapsed time.Duration) {
	if e.store == nil {
		return
	}

	rec := &api.RunRecord{
		ID:           runID,
		CreatedAt:    time.Now().Unix(),
		Status:       env.Status,
		CapabilityID: env.Artifacts.CapabilityID,
		SelectedTool: env.SelectedTool,
		SelectedBy:   env.Artifacts.SelectedBy,
		RouterReason: env.Artifacts.RouterReason,
		SummaryJSON:  env.Artifacts.SummaryJSON,
		Error:        env.Error,
		Stdout:       env.Stdout,
		Stderr:       env.Stderr,
		DurationMs:   elapsed.Milliseconds(),
		Request:      req,
	}
	if err := e.store.SaveRun(ctx, rec); err != nil {
		e.logger.Warn("persisting run record failed", "run_id", runID, "error", err)
	}
}
