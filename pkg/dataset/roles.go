package dataset

import "strings"

// Column-name hints per semantic role kind. Exact-match sets and substring
// hints are kept separate: exact names are strong signals, substrings are
// weak ones. The hints only rank evidence for the classifier; the router
// never auto-binds a column from them.
var (
	treatmentNames = map[string]bool{
		"treatment": true, "treated": true, "treat": true, "trt": true,
		"tx": true, "exposure": true, "exposed": true, "a": true, "arm": true,
		"group": true, "t": true,
	}
	outcomeHints = []string{"y", "outcome", "response", "target", "label", "endpoint", "factual"}
	timeHints    = []string{"time", "duration", "days", "follow", "fu", "surv"}
	eventNames   = map[string]bool{
		"event": true, "status": true, "censor": true, "censored": true,
		"death": true, "died": true, "failure": true,
	}
	groupHints = []string{"group", "arm", "cohort", "strata"}
)

// PlausibleColumns returns the dataset columns whose names plausibly carry
// the given role kind ("treatment", "outcome", "time", "event", "group").
// Covariate lists have no name heuristics and always return nil.
func (p *Profile) PlausibleColumns(kind string) []string {
	var out []string
	for _, c := range p.Columns {
		if plausible(c, kind) {
			out = append(out, c.Name)
		}
	}
	return out
}

func plausible(c Column, kind string) bool {
	name := strings.ToLower(c.Name)
	switch kind {
	case "treatment":
		if treatmentNames[name] {
			return true
		}
		// A lone binary column is a plausible treatment even without a
		// telling name.
		return c.LikelyBinary && !c.LikelyID
	case "outcome":
		for _, h := range outcomeHints {
			if strings.Contains(name, h) && !treatmentNames[name] {
				return true
			}
		}
		return false
	case "time":
		for _, h := range timeHints {
			if strings.Contains(name, h) {
				return true
			}
		}
		return false
	case "event":
		if eventNames[name] {
			return true
		}
		return c.LikelyBinary && strings.Contains(name, "event")
	case "group":
		if c.LikelyID {
			return false
		}
		for _, h := range groupHints {
			if strings.Contains(name, h) {
				return true
			}
		}
		// Low-cardinality categorical columns can act as groups.
		return c.Distinct >= 2 && c.Distinct <= 10
	}
	return false
}
