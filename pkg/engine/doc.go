// Package engine orchestrates the analysis pipeline: request validation,
// dataset profiling, routing, dispatch, and response assembly. The Engine
// struct implements transport.AnalysisHandler, bridging incoming API
// requests to the routing and dispatch layers. Every request terminates in
// exactly one response envelope, on success and on every rejection path
// alike, so callers always see the routing rationale. Optional capabilities
// (run store) use nil-safe composition for graceful degradation.
package engine
