package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/arvhal/causeway/pkg/api"
)

// Logging returns middleware that emits a structured log entry for each
// analysis request: request ID, routing outcome, envelope status, and
// duration. HTTP-level details (status codes, paths) are logged by the
// HTTP adapter instead.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next AnalysisHandler) AnalysisHandler {
		return AnalysisHandlerFunc(func(ctx context.Context, req *api.AnalyzeRequest) (*api.ResponseEnvelope, error) {
			start := time.Now()
			requestID := RequestIDFromContext(ctx)

			env, err := next.Analyze(ctx, req)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("csv", req.CSV),
				slog.Duration("duration", time.Since(start)),
			}
			if env != nil {
				attrs = append(attrs,
					slog.String("status", string(env.Status)),
					slog.String("capability", env.Artifacts.CapabilityID),
					slog.String("selected_by", string(env.Artifacts.SelectedBy)))
			}

			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
				logger.LogAttrs(ctx, slog.LevelError, "analysis failed", attrs...)
			} else {
				logger.LogAttrs(ctx, slog.LevelInfo, "analysis completed", attrs...)
			}

			return env, err
		})
	}
}
