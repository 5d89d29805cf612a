package transport

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/arvhal/causeway/pkg/api"
)

// RequestID returns middleware that assigns a unique request ID to each
// request. If the incoming context already carries a request ID (set by the
// HTTP adapter from the X-Request-ID header), that value is used; otherwise
// a new one is generated.
func RequestID() Middleware {
	return func(next AnalysisHandler) AnalysisHandler {
		return AnalysisHandlerFunc(func(ctx context.Context, req *api.AnalyzeRequest) (*api.ResponseEnvelope, error) {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, generateRequestID())
			}
			return next.Analyze(ctx, req)
		})
	}
}

// generateRequestID creates a new unique request ID as a hex string.
func generateRequestID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
