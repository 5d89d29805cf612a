package router

import (
	"fmt"
	"strings"

	"github.com/arvhal/causeway/pkg/api"
	"github.com/arvhal/causeway/pkg/dataset"
	"github.com/arvhal/causeway/pkg/registry"
)

// ValidationOutcome is the result of checking a request against a
// capability's role contract. MissingRoles lists required roles with no
// binding; UnknownColumns lists bindings that name columns absent from the
// dataset, as "role=column" pairs.
type ValidationOutcome struct {
	Pass           bool
	MissingRoles   []string
	UnknownColumns []string
}

// Err converts a failed outcome into a typed API error naming the evidence.
// It returns nil for a passing outcome.
func (v ValidationOutcome) Err() *api.APIError {
	if v.Pass {
		return nil
	}
	var parts []string
	if len(v.MissingRoles) > 0 {
		parts = append(parts, "missing "+strings.Join(v.MissingRoles, ", "))
	}
	if len(v.UnknownColumns) > 0 {
		parts = append(parts, "column not in dataset: "+strings.Join(v.UnknownColumns, ", "))
	}
	return api.NewValidationFailedError(strings.Join(v.MissingRoles, ","), strings.Join(parts, "; "))
}

// Validate checks that every required role of the capability resolves to an
// explicit binding in the request, and that every supplied binding names a
// column present in the dataset. It never guesses a column for an unbound
// role. Covariate-list roles default to empty when unspecified; cell values
// are not inspected. A nil profile skips the column-existence checks.
func Validate(desc *registry.Descriptor, req *api.AnalyzeRequest, profile *dataset.Profile) ValidationOutcome {
	out := ValidationOutcome{Pass: true}

	for _, role := range desc.Roles {
		if role.Kind == registry.RoleCovariateList {
			if profile != nil {
				for _, col := range req.Covariates {
					if !profile.Has(col) {
						out.UnknownColumns = append(out.UnknownColumns, fmt.Sprintf("%s=%s", role.Name, col))
					}
				}
			}
			continue
		}

		col := req.RoleBinding(role.Name)
		if col == "" {
			if role.Required {
				out.MissingRoles = append(out.MissingRoles, role.Name)
			}
			continue
		}
		if profile != nil && !profile.Has(col) {
			out.UnknownColumns = append(out.UnknownColumns, fmt.Sprintf("%s=%s", role.Name, col))
		}
	}

	if len(out.MissingRoles) > 0 || len(out.UnknownColumns) > 0 {
		out.Pass = false
	}
	return out
}
