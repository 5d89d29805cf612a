package transport

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/arvhal/causeway/pkg/api"
)

func okHandler() AnalysisHandler {
	return AnalysisHandlerFunc(func(ctx context.Context, req *api.AnalyzeRequest) (*api.ResponseEnvelope, error) {
		return &api.ResponseEnvelope{Status: api.StatusOK}, nil
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next AnalysisHandler) AnalysisHandler {
			return AnalysisHandlerFunc(func(ctx context.Context, req *api.AnalyzeRequest) (*api.ResponseEnvelope, error) {
				order = append(order, name)
				return next.Analyze(ctx, req)
			})
		}
	}

	h := Chain(mw("a"), mw("b"), mw("c"))(okHandler())
	if _, err := h.Analyze(context.Background(), &api.AnalyzeRequest{}); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(order, ""); got != "abc" {
		t.Errorf("execution order = %q, want abc", got)
	}
}

func TestRequestIDAssigned(t *testing.T) {
	var seen string
	h := RequestID()(AnalysisHandlerFunc(func(ctx context.Context, req *api.AnalyzeRequest) (*api.ResponseEnvelope, error) {
		seen = RequestIDFromContext(ctx)
		return &api.ResponseEnvelope{Status: api.StatusOK}, nil
	}))

	h.Analyze(context.Background(), &api.AnalyzeRequest{})
	if seen == "" {
		t.Error("no request ID assigned")
	}
}

func TestRequestIDPreserved(t *testing.T) {
	var seen string
	h := RequestID()(AnalysisHandlerFunc(func(ctx context.Context, req *api.AnalyzeRequest) (*api.ResponseEnvelope, error) {
		seen = RequestIDFromContext(ctx)
		return &api.ResponseEnvelope{Status: api.StatusOK}, nil
	}))

	ctx := ContextWithRequestID(context.Background(), "req-from-header")
	h.Analyze(ctx, &api.AnalyzeRequest{})
	if seen != "req-from-header" {
		t.Errorf("request ID = %q, want the propagated one", seen)
	}
}

func TestRecoveryConvertsPanic(t *testing.T) {
	h := Recovery()(AnalysisHandlerFunc(func(ctx context.Context, req *api.AnalyzeRequest) (*api.ResponseEnvelope, error) {
		panic("boom")
	}))

	env, err := h.Analyze(context.Background(), &api.AnalyzeRequest{})
	if err == nil {
		t.Fatal("expected an error after panic")
	}
	apiErr, ok := err.(*api.APIError)
	if !ok || apiErr.Type != api.ErrorTypeServerError {
		t.Errorf("error = %v, want server_error APIError", err)
	}
	if env == nil || env.Status != api.StatusError {
		t.Errorf("envelope = %+v, want status error", env)
	}
}

func TestLoggingPassesThrough(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Logging(logger)(okHandler())

	env, err := h.Analyze(context.Background(), &api.AnalyzeRequest{CSV: "d.csv"})
	if err != nil || env.Status != api.StatusOK {
		t.Errorf("env=%+v err=%v", env, err)
	}
}
