package transport

import (
	"context"
	"fmt"

	"github.com/arvhal/causeway/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to server error envelopes. The server keeps accepting
// requests after a recovered panic.
func Recovery() Middleware {
	return func(next AnalysisHandler) AnalysisHandler {
		return AnalysisHandlerFunc(func(ctx context.Context, req *api.AnalyzeRequest) (env *api.ResponseEnvelope, retErr error) {
			defer func() {
				if r := recover(); r != nil {
					apiErr := api.NewServerError(fmt.Sprintf("internal server error: %v", r))
					env = &api.ResponseEnvelope{
						Status: api.StatusError,
						Error:  apiErr.Error(),
					}
					retErr = apiErr
				}
			}()
			return next.Analyze(ctx, req)
		})
	}
}
