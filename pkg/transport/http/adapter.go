// Package http serves the causeway analysis API over HTTP. The adapter
// translates between the wire format and the engine's handler contract; the
// server wraps it with lifecycle management and graceful shutdown.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/arvhal/causeway/pkg/api"
	"github.com/arvhal/causeway/pkg/storage"
	"github.com/arvhal/causeway/pkg/transport"
)

// Gateway is the engine surface the HTTP adapter serves.
type Gateway interface {
	transport.AnalysisHandler
	Capabilities() api.CapabilityList
}

// Adapter routes API requests to the engine and serializes responses.
type Adapter struct {
	handler transport.AnalysisHandler
	gateway Gateway
	store   transport.RunStore // nil when run history is disabled
	mux     *http.ServeMux
	config  Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MB; analysis requests are small
	}
}

// NewAdapter creates an HTTP adapter. The run store is optional; when nil
// the run history endpoints answer not_found. Middleware is applied to the
// analysis handler in the given order.
func NewAdapter(gateway Gateway, store transport.RunStore, cfg Config, middlewares ...transport.Middleware) *Adapter {
	var handler transport.AnalysisHandler = gateway
	if len(middlewares) > 0 {
		handler = transport.Chain(middlewares...)(handler)
	}

	a := &Adapter{
		handler: handler,
		gateway: gateway,
		store:   store,
		mux:     http.NewServeMux(),
		config:  cfg,
	}

	a.mux.HandleFunc("POST /v1/analyze", a.handleAnalyze)
	a.mux.HandleFunc("GET /v1/capabilities", a.handleCapabilities)
	a.mux.HandleFunc("GET /v1/runs", a.handleListRuns)
	a.mux.HandleFunc("GET /v1/runs/{id}", a.handleGetRun)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)

	return a
}

// Handler returns the http.Handler for this adapter, including HTTP-level
// request ID propagation. Use this to integrate with an http.Server or to
// test with httptest.
func (a *Adapter) Handler() http.Handler {
	return requestIDHeaderMiddleware(a.mux)
}

// handleAnalyze handles POST /v1/analyze. The response body is always the
// full envelope; the HTTP status follows the error taxonomy.
func (a *Adapter) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.AnalyzeRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	env, err := a.handler.Analyze(r.Context(), &req)
	if env == nil {
		// The handler contract promises an envelope on every path.
		env = &api.ResponseEnvelope{Status: api.StatusError, Error: "handler returned no envelope"}
	}

	status := http.StatusOK
	if err != nil {
		status = asAPIError(err).HTTPStatus()
	}
	transport.WriteJSON(w, status, env)
}

// handleCapabilities handles GET /v1/capabilities.
func (a *Adapter) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, a.gateway.Capabilities())
}

// handleGetRun handles GET /v1/runs/{id}.
func (a *Adapter) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteAPIError(w, api.NewNotFoundError("run history is not available (no store configured)"))
		return
	}

	id := r.PathValue("id")
	if !api.ValidateRunID(id) {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("id", "malformed run ID"),
			http.StatusBadRequest,
		)
		return
	}

	run, err := a.store.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewNotFoundError("run "+id+" not found"))
		} else {
			transport.WriteAPIError(w, asAPIError(err))
		}
		return
	}

	transport.WriteJSON(w, http.StatusOK, run)
}

// handleListRuns handles GET /v1/runs.
func (a *Adapter) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteAPIError(w, api.NewNotFoundError("run history is not available (no store configured)"))
		return
	}

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		transport.WriteErrorResponse(w, apiErr, http.StatusBadRequest)
		return
	}

	result, err := a.store.ListRuns(r.Context(), opts)
	if err != nil {
		transport.WriteAPIError(w, asAPIError(err))
		return
	}

	transport.WriteJSON(w, http.StatusOK, result)
}

// handleHealth handles GET /healthz. With a store configured its health
// check participates; without one the process being up is the answer.
func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.store != nil {
		if err := a.store.HealthCheck(r.Context()); err != nil {
			transport.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseListOptions extracts pagination parameters from the query string.
func parseListOptions(r *http.Request) (transport.ListOptions, *api.APIError) {
	q := r.URL.Query()
	opts := transport.ListOptions{
		After:      q.Get("after"),
		Before:     q.Get("before"),
		Capability: q.Get("capability"),
		Order:      q.Get("order"),
	}

	if opts.After != "" && opts.Before != "" {
		return opts, api.NewInvalidRequestError("after", "cannot use both 'after' and 'before' cursors")
	}

	if opts.Order != "" && opts.Order != "asc" && opts.Order != "desc" {
		return opts, api.NewInvalidRequestError("order", "order must be 'asc' or 'desc'")
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return opts, api.NewInvalidRequestError("limit", "limit must be a positive integer")
		}
		opts.Limit = limit
	}

	return opts, nil
}

func asAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewServerError(err.Error())
}

// requestIDHeaderMiddleware propagates the X-Request-ID header: an incoming
// id is forwarded into the context, and whatever id ends up in the context
// is reflected on the response before the first write.
func requestIDHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}
