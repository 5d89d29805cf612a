// Package auth provides pluggable authentication and per-tier rate limiting
// for the causeway gateway.
//
// Authentication is a chain of voters: each authenticator inspects the
// request and answers Yes (valid credentials, identity attached), No
// (credentials present but invalid), or Abstain (not my credential type).
// The first non-abstaining voter wins. When everyone abstains, a
// configurable default decides, which is how the development NoOp mode
// works.
//
// Auth runs as HTTP middleware ahead of the analysis handler. Besides the
// identity, the middleware injects the caller's tenant into the request
// context so the run store can scope reads and writes.
package auth
