// Package api defines the wire-level types of the causeway gateway: the
// analysis request, the response envelope, the error taxonomy, and request
// validation. These types are transport-agnostic; the HTTP and MCP adapters
// in pkg/transport serialize them without modification.
package api
