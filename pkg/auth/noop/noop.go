// Package noop provides an authenticator that accepts every request with an
// anonymous identity. Intended for development and tests.
package noop

import (
	"context"
	"net/http"

	"github.com/arvhal/causeway/pkg/auth"
)

// Authenticator always votes Yes.
type Authenticator struct{}

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.Result {
	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject: "anonymous",
			Tier:    "default",
		},
	}
}
