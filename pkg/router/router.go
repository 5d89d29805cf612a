// Package router decides which capability serves a request. The decision
// procedure is layered in strict priority order: an explicit task hint wins,
// then the LLM classifier when the request enables it, then the rule-based
// ranking. Whatever path decided, schema validation runs before the decision
// is handed to the dispatcher; a failed validation rejects the request
// instead of silently trying the next candidate.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arvhal/causeway/pkg/api"
	"github.com/arvhal/causeway/pkg/classify"
	"github.com/arvhal/causeway/pkg/classify/llm"
	"github.com/arvhal/causeway/pkg/dataset"
	"github.com/arvhal/causeway/pkg/observability"
	"github.com/arvhal/causeway/pkg/registry"
)

// reason recorded when the LLM path was requested but could not answer.
const llmFallbackReason = "llm unavailable, fell back to rule-based"

// Decision is a validated routing decision, ready for dispatch.
type Decision struct {
	// CapabilityID names the chosen capability.
	CapabilityID string

	// Method records which mechanism produced the choice.
	Method api.SelectionMethod

	// Reason is the human-readable routing rationale surfaced in the
	// response envelope. Opaque free text, never parsed downstream.
	Reason string

	// RunnersUp lists the remaining ranked capability ids when the
	// rule-based path decided. Diagnostic only.
	RunnersUp []string
}

// Classifier is the LLM classification dependency. *llm.Classifier
// implements it; tests substitute fakes.
type Classifier interface {
	Classify(ctx context.Context, requestText string, candidates []llm.Candidate) llm.Result
}

// Router orchestrates classification and validation. A nil llm disables the
// LLM path regardless of what requests ask for.
type Router struct {
	reg    *registry.Registry
	rules  *classify.RuleClassifier
	llm    Classifier
	logger *slog.Logger
}

// New creates a Router. llmClassifier may be nil when LLM routing is not
// configured.
func New(reg *registry.Registry, rules *classify.RuleClassifier, llmClassifier Classifier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		reg:    reg,
		rules:  rules,
		llm:    llmClassifier,
		logger: logger,
	}
}

// Route decides the capability for the request and validates the decision.
// It returns a typed *api.APIError on rejection: not_found for an unknown
// explicit hint, routing_ambiguous when nothing matched, validation_failed
// when the chosen capability's roles do not resolve. On a validation
// failure the partial decision accompanies the error. LLM failures never
// surface as errors; they degrade to the rule-based path.
func (r *Router) Route(ctx context.Context, req *api.AnalyzeRequest, profile *dataset.Profile) (Decision, error) {
	decision, err := r.decide(ctx, req, profile)
	if err != nil {
		return Decision{}, err
	}

	desc, err := r.reg.Get(decision.CapabilityID)
	if err != nil {
		return Decision{}, err
	}
	if outcome := Validate(desc, req, profile); !outcome.Pass {
		r.logger.Info("routing rejected by validation",
			"capability", decision.CapabilityID,
			"missing_roles", outcome.MissingRoles,
			"unknown_columns", outcome.UnknownColumns)
		// The decision is returned alongside the error so callers can
		// still report which capability was chosen and why.
		return decision, outcome.Err()
	}

	r.logger.Info("routing decided",
		"capability", decision.CapabilityID,
		"method", decision.Method,
		"reason", decision.Reason)
	return decision, nil
}

// decide runs the classification layers without validation.
func (r *Router) decide(ctx context.Context, req *api.AnalyzeRequest, profile *dataset.Profile) (Decision, error) {
	// Layer 1: explicit hint. "auto" means no hint.
	if req.Task != "" && req.Task != api.TaskAuto {
		if !r.reg.Has(req.Task) {
			return Decision{}, api.NewNotFoundError(fmt.Sprintf("unknown capability %q", req.Task))
		}
		return Decision{
			CapabilityID: req.Task,
			Method:       api.SelectedExplicit,
			Reason:       fmt.Sprintf("explicit task hint %q", req.Task),
		}, nil
	}

	ranked := r.rules.Classify(req, profile)

	// Layer 2: LLM, only when the request asks for it and a classifier is
	// configured. The rule ranking narrows the candidate list; with an
	// empty ranking the whole registry is offered.
	fallbackPrefix := ""
	if req.UseLLMRouter && r.llm != nil {
		res := r.llm.Classify(ctx, req.Request, r.candidates(ranked))
		observability.LLMClassificationsTotal.WithLabelValues(string(res.Outcome)).Inc()
		switch res.Outcome {
		case llm.OutcomeChosen:
			reason := res.Rationale
			if reason == "" {
				reason = "chosen by llm classifier"
			}
			return Decision{
				CapabilityID: res.CapabilityID,
				Method:       api.SelectedLLM,
				Reason:       reason,
			}, nil
		default:
			r.logger.Warn("llm classification failed, falling back",
				"outcome", res.Outcome,
				"detail", res.Detail)
			fallbackPrefix = llmFallbackReason + ": "
		}
	}

	// Layer 3: rule-based. An empty ranking is an unroutable request.
	if len(ranked) == 0 {
		return Decision{}, api.NewRoutingAmbiguousError(
			"no capability matched the request; supply an explicit task or a more specific request text")
	}

	top := ranked[0]
	var runnersUp []string
	for _, c := range ranked[1:] {
		runnersUp = append(runnersUp, c.ID)
	}
	return Decision{
		CapabilityID: top.ID,
		Method:       api.SelectedRule,
		Reason:       fallbackPrefix + ruleReason(top),
		RunnersUp:    runnersUp,
	}, nil
}

// candidates converts a rule ranking into the LLM candidate list. With an
// empty ranking every registered capability with keywords is offered, in
// registry order.
func (r *Router) candidates(ranked []classify.Candidate) []llm.Candidate {
	var out []llm.Candidate
	if len(ranked) > 0 {
		for _, c := range ranked {
			desc, err := r.reg.Get(c.ID)
			if err != nil {
				continue
			}
			out = append(out, llm.Candidate{ID: desc.ID, Label: desc.Label, Description: desc.Description})
		}
		return out
	}
	for _, desc := range r.reg.List() {
		if len(desc.Keywords) == 0 {
			continue
		}
		out = append(out, llm.Candidate{ID: desc.ID, Label: desc.Label, Description: desc.Description})
	}
	return out
}

func ruleReason(c classify.Candidate) string {
	if len(c.Evidence) == 0 {
		return fmt.Sprintf("rule-based score %d", c.Score)
	}
	return "rule-based: " + strings.Join(c.Evidence, "; ")
}
