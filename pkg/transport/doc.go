// Package transport defines the handler contract and middleware chain
// between the gateway's transports (HTTP, MCP) and the analysis engine.
//
// The AnalysisHandler interface is the single entry point: a transport
// deserializes an incoming request into api.AnalyzeRequest, invokes the
// handler, and serializes the returned envelope. Cross-cutting concerns
// (panic recovery, request IDs, structured logging, metrics) wrap the
// handler as Middleware, so they apply identically regardless of which
// transport carried the request.
//
// The RunStore interface is the persistence contract for run history;
// adapters live in pkg/storage.
package transport
