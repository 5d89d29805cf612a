// Package mcp exposes the analysis engine as a Model Context Protocol
// server, so agent frameworks can call the router through the "analyze"
// and "list_capabilities" tools instead of the REST surface. Both tools
// share the engine with the HTTP adapter and produce the same envelope.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/arvhal/causeway/pkg/api"
	transporthttp "github.com/arvhal/causeway/pkg/transport/http"
)

// AnalyzeInput is the tool-call input schema for the analyze tool. It
// mirrors the REST request body field for field.
type AnalyzeInput struct {
	CSV           string   `json:"csv" jsonschema_description:"Path to the CSV dataset to analyze"`
	Request       string   `json:"request,omitempty" jsonschema_description:"Free-text description of the desired analysis"`
	Task          string   `json:"task,omitempty" jsonschema_description:"Explicit capability id, or 'auto' to let the router decide"`
	Treatment     string   `json:"treatment,omitempty" jsonschema_description:"Treatment column name"`
	Outcome       string   `json:"outcome,omitempty" jsonschema_description:"Outcome column name"`
	Time          string   `json:"time,omitempty" jsonschema_description:"Time-to-event column name"`
	Event         string   `json:"event,omitempty" jsonschema_description:"Event indicator column name"`
	Group         string   `json:"group,omitempty" jsonschema_description:"Group column name"`
	Covariates    []string `json:"covariates,omitempty" jsonschema_description:"Covariate column names"`
	MaxCovariates int      `json:"max_covariates,omitempty" jsonschema_description:"Cap on the number of covariates passed to the backend"`
	UseLLMRouter  bool     `json:"use_llm_router,omitempty" jsonschema_description:"Enable LLM-assisted routing"`
	OutDir        string   `json:"out_dir,omitempty" jsonschema_description:"Override for the backend artifact output directory"`
}

// NewServer builds an MCP server exposing the gateway's analysis surface.
func NewServer(gateway transporthttp.Gateway, version string) *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{Name: "causeway", Version: version},
		nil,
	)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "analyze",
		Description: "Route a causal-inference analysis request to the best capability and run it",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, struct{}, error) {
		req := &api.AnalyzeRequest{
			CSV:           input.CSV,
			Request:       input.Request,
			Task:          input.Task,
			Treatment:     input.Treatment,
			Outcome:       input.Outcome,
			Time:          input.Time,
			Event:         input.Event,
			Group:         input.Group,
			Covariates:    input.Covariates,
			MaxCovariates: input.MaxCovariates,
			UseLLMRouter:  input.UseLLMRouter,
			OutDir:        input.OutDir,
		}

		env, analyzeErr := gateway.Analyze(ctx, req)
		if env == nil {
			env = &api.ResponseEnvelope{Status: api.StatusError, Error: "no envelope produced"}
		}

		body, err := json.MarshalIndent(env, "", "  ")
		if err != nil {
			return nil, struct{}{}, fmt.Errorf("encoding envelope: %w", err)
		}

		// Rejections and backend failures are reported through the envelope
		// with IsError set, not as protocol errors, so the caller still sees
		// the routing rationale.
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
			IsError: analyzeErr != nil,
		}, struct{}{}, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_capabilities",
		Description: "List the registered analysis capabilities with their input roles",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, struct{}, error) {
		body, err := json.MarshalIndent(gateway.Capabilities(), "", "  ")
		if err != nil {
			return nil, struct{}{}, fmt.Errorf("encoding capability list: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(body)}},
		}, struct{}{}, nil
	})

	return server
}

// Handler wraps the MCP server in a streamable HTTP handler suitable for
// mounting alongside the REST routes.
func Handler(gateway transporthttp.Gateway, version string) http.Handler {
	server := NewServer(gateway, version)
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)
}
