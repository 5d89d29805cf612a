package registry

// Builtin returns the registry of shipped capabilities. Adding a capability
// is a one-entry change here plus a backend program; nothing else in the
// gateway needs to know about it.
func Builtin() *Registry {
	r, err := New(
		&Descriptor{
			ID:          "causal_ate",
			Tool:        "causalmodels",
			Label:       "Average treatment effect",
			Description: "Doubly-robust estimation of the average treatment effect of a binary treatment on a numeric outcome, adjusting for covariates.",
			Roles: []Role{
				{Name: "treatment", Kind: RoleTreatment, Required: true},
				{Name: "outcome", Kind: RoleOutcome, Required: true},
				{Name: "covariates", Kind: RoleCovariateList, Required: false},
			},
			Keywords: []string{
				"ate", "causal", "causal effect", "treatment effect",
				"effect of", "confounder", "doubly robust",
			},
			Backend: Invocation{
				Exe: "run_causalmodels",
				RoleFlags: map[string]string{
					"treatment":  "--treatment",
					"outcome":    "--outcome",
					"covariates": "--covariates",
				},
			},
		},
		&Descriptor{
			ID:          "survival_adjusted_curves",
			Tool:        "adjustedcurves",
			Label:       "Covariate-adjusted survival curves",
			Description: "Inverse-probability-weighted Kaplan-Meier survival curves comparing groups over time-to-event data, adjusted for covariates.",
			Roles: []Role{
				{Name: "time", Kind: RoleTime, Required: true},
				{Name: "event", Kind: RoleEvent, Required: true},
				{Name: "group", Kind: RoleGroup, Required: true},
				{Name: "covariates", Kind: RoleCovariateList, Required: false},
			},
			Keywords: []string{
				"survival", "kaplan", "curves", "time-to-event",
				"hazard", "censored", "km",
			},
			Backend: Invocation{
				Exe: "run_adjustedcurves",
				RoleFlags: map[string]string{
					"time":       "--time",
					"event":      "--event",
					"group":      "--group",
					"covariates": "--covariates",
				},
			},
		},
		&Descriptor{
			ID:          "dummy_echo",
			Tool:        "dummy",
			Label:       "Echo smoke test",
			Description: "Echoes its inputs back without any statistical computation. For smoke testing the dispatch path.",
			Roles:       []Role{},
			// No keywords: the dummy is never chosen by the rule classifier,
			// only by an explicit task hint.
			Keywords: nil,
			Backend: Invocation{
				Exe:       "run_dummy",
				RoleFlags: map[string]string{},
			},
		},
	)
	if err != nil {
		// The builtin table is static; a construction failure is a bug.
		panic(err)
	}
	return r
}
