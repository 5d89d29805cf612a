package engine

import (
	"errors"
	"fmt"

	"github.com/arvhal/causeway/pkg/api"
	"github.com/arvhal/causeway/pkg/dispatch"
	"github.com/arvhal/causeway/pkg/registry"
	"github.com/arvhal/causeway/pkg/router"
)

// rejectedEnvelope builds the error envelope for a request that never
// reached a backend. The partial decision, when present, keeps the routing
// rationale auditable.
func rejectedEnvelope(decision router.Decision, reason string, apiErr *api.APIError) *api.ResponseEnvelope {
	if decision.Reason != "" {
		reason = decision.Reason
	}
	return &api.ResponseEnvelope{
		Status: api.StatusError,
		Artifacts: api.Artifacts{
			CapabilityID: decision.CapabilityID,
			SelectedBy:   decision.Method,
			RouterReason: reason,
		},
		Error: apiErr.Error(),
	}
}

// assemble maps a routing decision plus a dispatch result to the canonical
// envelope. Pure; no side effects.
func assemble(decision router.Decision, desc *registry.Descriptor, res dispatch.Result) (*api.ResponseEnvelope, *api.APIError) {
	env := &api.ResponseEnvelope{
		SelectedTool: desc.Tool,
		Stdout:       res.Stdout,
		Stderr:       res.Stderr,
		Artifacts: api.Artifacts{
			CapabilityID: decision.CapabilityID,
			SelectedBy:   decision.Method,
			RouterReason: decision.Reason,
			SummaryJSON:  res.SummaryPath,
		},
	}

	switch res.Class {
	case dispatch.ClassSuccess:
		env.Status = api.StatusOK
		return env, nil

	case dispatch.ClassWarnings:
		env.Status = api.StatusOKWarnings
		return env, nil

	case dispatch.ClassTimeout:
		apiErr := api.NewBackendTimeoutError(res.Detail)
		env.Status = api.StatusError
		env.Error = apiErr.Error()
		return env, apiErr

	case dispatch.ClassNotFound:
		apiErr := api.NewBackendError(fmt.Sprintf("%s: %s", res.Detail, desc.Backend.Exe))
		env.Status = api.StatusError
		env.Error = apiErr.Error()
		return env, apiErr

	default: // dispatch.ClassBackendError
		apiErr := api.NewBackendError(res.Detail)
		env.Status = api.StatusError
		env.Error = apiErr.Error()
		return env, apiErr
	}
}

// asAPIError normalizes any error into an *api.APIError, wrapping unknown
// errors as server errors.
func asAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewServerError(err.Error())
}
