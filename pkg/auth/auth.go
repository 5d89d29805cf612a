package auth

import (
	"context"
	"errors"
	"net/http"
)

// Decision is a three-way authentication vote.
type Decision int

const (
	// No means credentials were presented but are invalid. The chain
	// stops and the request is rejected. No is the zero value, so an
	// unset decision never admits a caller.
	No Decision = iota

	// Yes means the credentials are valid. The chain stops and the
	// attached identity is used.
	Yes

	// Abstain means the authenticator does not handle this credential
	// type and the chain moves on.
	Abstain
)

// Result carries the outcome of one authentication attempt.
type Result struct {
	Decision Decision
	Identity *Identity // set only when Decision == Yes
	Err      error     // set only when Decision == No
}

// Identity is an authenticated caller.
type Identity struct {
	// Subject uniquely identifies the caller. Never empty on a Yes vote.
	Subject string

	// Tier selects the rate limit bucket for this caller.
	Tier string

	// Scopes lists granted authorization scopes.
	Scopes []string

	// Metadata carries provider-specific attributes. The key "tenant_id"
	// drives run store multi-tenancy.
	Metadata map[string]string
}

// TenantID returns the tenant identifier from metadata, or "".
func (id *Identity) TenantID() string {
	if id == nil || id.Metadata == nil {
		return ""
	}
	return id.Metadata["tenant_id"]
}

// Authenticator examines request credentials and votes.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) Result
}

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// Chain evaluates authenticators left to right and stops at the first
// non-abstaining vote.
type Chain struct {
	Authenticators []Authenticator

	// DefaultDecision applies when every authenticator abstains. Yes
	// yields an anonymous identity for development setups; the zero
	// value No rejects, so requests without credentials are never
	// admitted by omission.
	DefaultDecision Decision
}

// Authenticate runs the chain.
func (c *Chain) Authenticate(ctx context.Context, r *http.Request) Result {
	for _, a := range c.Authenticators {
		res := a.Authenticate(ctx, r)
		if res.Decision != Abstain {
			return res
		}
	}

	if c.DefaultDecision == Yes {
		return Result{
			Decision: Yes,
			Identity: &Identity{Subject: "anonymous", Tier: "default"},
		}
	}

	return Result{Decision: No, Err: ErrUnauthenticated}
}
