package auth

import (
	"log/slog"
	"net/http"

	"github.com/arvhal/causeway/pkg/observability"
	"github.com/arvhal/causeway/pkg/storage"
)

// DefaultBypassEndpoints lists endpoints served without authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// Middleware builds HTTP middleware from an auth chain and an optional rate
// limiter. Requests to bypass endpoints skip the chain entirely. For
// everything else the chain is run, the identity and tenant are injected
// into the request context, and the limiter (when present) is consulted.
func Middleware(chain *Chain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			res := chain.Authenticate(r.Context(), r)

			if res.Decision == No {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", res.Err,
				)
				writeJSONError(w, http.StatusUnauthorized, "invalid_request", "authentication required")
				return
			}

			if res.Decision != Yes || res.Identity == nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid_request", "authentication required")
				return
			}

			if res.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				writeJSONError(w, http.StatusInternalServerError, "server_error", "internal authentication error")
				return
			}

			slog.Debug("authentication succeeded",
				"subject", res.Identity.Subject,
				"path", r.URL.Path,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), res.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", res.Identity.Subject,
						"tier", res.Identity.Tier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(res.Identity.Tier).Inc()
					writeJSONError(w, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
					return
				}
			}

			ctx := SetIdentity(r.Context(), res.Identity)
			if tenantID := res.Identity.TenantID(); tenantID != "" {
				ctx = storage.SetTenant(ctx, tenantID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, errType, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":{"type":"` + errType + `","message":"` + msg + `"}}`))
}
