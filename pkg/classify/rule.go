// Package classify implements deterministic, rule-based capability
// classification. Given request text, the role bindings already supplied,
// and the dataset's column profile, it ranks registered capabilities by a
// heuristic score and records the evidence behind each score.
//
// The exact weights are policy, not contract: only the ordering determinism
// and the tie-break by registry order are load-bearing. The LLM classifier
// in the llm subpackage consumes this ranking as its candidate list.
package classify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arvhal/causeway/pkg/api"
	"github.com/arvhal/causeway/pkg/dataset"
	"github.com/arvhal/causeway/pkg/registry"
)

// Weights holds the scoring policy of the rule classifier.
type Weights struct {
	// KeywordHit is added per capability keyword found in the request text.
	KeywordHit int

	// RoleComplete is added when the supplied bindings cover every required
	// single-column role of the capability.
	RoleComplete int

	// MissingRolePenalty is subtracted per required role that is neither
	// bound in the request nor plausibly present in the dataset columns.
	MissingRolePenalty int
}

// DefaultWeights returns the shipped scoring policy.
func DefaultWeights() Weights {
	return Weights{
		KeywordHit:         2,
		RoleComplete:       3,
		MissingRolePenalty: 1,
	}
}

// Candidate is one ranked classification candidate.
type Candidate struct {
	// ID is the capability id.
	ID string

	// Score is the heuristic score, always positive: zero-scored
	// capabilities are dropped from the ranking.
	Score int

	// Evidence lists the matched signals in a stable, human-readable form.
	Evidence []string
}

// RuleClassifier scores capabilities deterministically.
type RuleClassifier struct {
	reg     *registry.Registry
	weights Weights
}

// NewRuleClassifier creates a classifier over the given registry.
func NewRuleClassifier(reg *registry.Registry, weights Weights) *RuleClassifier {
	return &RuleClassifier{reg: reg, weights: weights}
}

// Classify ranks the registered capabilities for the request. The profile
// may be nil when the dataset could not be read; the column-match penalty is
// then skipped rather than guessed. An empty result means no capability
// scored above zero and the router must treat the request as unroutable.
//
// The ranking is a pure function of its inputs: identical request text,
// bindings, and columns always produce the identical ranking.
func (c *RuleClassifier) Classify(req *api.AnalyzeRequest, profile *dataset.Profile) []Candidate {
	text := strings.ToLower(req.Request)
	bound := req.BoundRoles()

	var out []Candidate
	for _, d := range c.reg.List() {
		cand := c.score(d, text, bound, profile)
		if cand.Score > 0 {
			out = append(out, cand)
		}
	}

	// Stable sort preserves registry order among equal scores.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func (c *RuleClassifier) score(d *registry.Descriptor, text string, bound map[string]string, profile *dataset.Profile) Candidate {
	cand := Candidate{ID: d.ID}
	score := 0

	for _, kw := range d.Keywords {
		if containsKeyword(text, kw) {
			score += c.weights.KeywordHit
			cand.Evidence = append(cand.Evidence, fmt.Sprintf("keyword %q", kw))
		}
	}

	required := requiredSingleRoles(d)
	if len(required) > 0 {
		complete := true
		for _, role := range required {
			if bound[role] == "" {
				complete = false
				break
			}
		}
		if complete {
			score += c.weights.RoleComplete
			cand.Evidence = append(cand.Evidence,
				fmt.Sprintf("all required roles bound (%s)", strings.Join(required, ", ")))
		}
	}

	if profile != nil {
		for _, role := range required {
			if bound[role] != "" {
				continue
			}
			r, _ := d.Role(role)
			if len(profile.PlausibleColumns(string(r.Kind))) == 0 {
				score -= c.weights.MissingRolePenalty
				cand.Evidence = append(cand.Evidence,
					fmt.Sprintf("no plausible column for role %q", role))
			}
		}
	}

	if score > 0 {
		cand.Score = score
	}
	return cand
}

// requiredSingleRoles lists the required roles that bind a single column.
// Covariate lists are optional by construction and never scored.
func requiredSingleRoles(d *registry.Descriptor) []string {
	var out []string
	for _, r := range d.Roles {
		if r.Required && r.Kind != registry.RoleCovariateList {
			out = append(out, r.Name)
		}
	}
	return out
}

// containsKeyword reports whether the lowercased text contains the keyword
// as a whole word or phrase. A plain substring check would let "ate" match
// "covariates", so boundaries are enforced on both sides.
func containsKeyword(text, keyword string) bool {
	kw := strings.ToLower(keyword)
	for start := 0; ; {
		idx := strings.Index(text[start:], kw)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(kw)
		beforeOK := idx == 0 || !isWordChar(text[idx-1])
		afterOK := end == len(text) || !isWordChar(text[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}
