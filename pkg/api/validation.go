package api

import (
	"fmt"
	"strings"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxRequestTextLen int
	MaxCovariates     int
	MaxColumnNameLen  int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxRequestTextLen: 8 * 1024,
		MaxCovariates:     256,
		MaxColumnNameLen:  256,
	}
}

// ValidateRequest checks an AnalyzeRequest for structural validity. It
// returns an *APIError describing the first failure, or nil if the request
// is valid. Structural validation is distinct from schema validation: it
// checks the request in isolation, not against a capability's role contract
// or the dataset's columns.
func ValidateRequest(req *AnalyzeRequest, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(req.CSV) == "" {
		return NewInvalidRequestError("csv", "csv is required")
	}

	if cfg.MaxRequestTextLen > 0 && len(req.Request) > cfg.MaxRequestTextLen {
		return NewInvalidRequestError("request",
			fmt.Sprintf("request text exceeds maximum of %d bytes", cfg.MaxRequestTextLen))
	}

	if cfg.MaxCovariates > 0 && len(req.Covariates) > cfg.MaxCovariates {
		return NewInvalidRequestError("covariates",
			fmt.Sprintf("covariates exceeds maximum of %d entries", cfg.MaxCovariates))
	}

	if req.MaxCovariates < 0 {
		return NewInvalidRequestError("max_covariates", "max_covariates must not be negative")
	}

	for role, col := range req.BoundRoles() {
		if err := validateColumnName(role, col, cfg); err != nil {
			return err
		}
	}
	for _, col := range req.Covariates {
		if err := validateColumnName("covariates", col, cfg); err != nil {
			return err
		}
	}

	return nil
}

// validateColumnName rejects empty and oversized column bindings. Column
// names are passed verbatim to backend processes as flag values, so they
// must not contain control characters.
func validateColumnName(param, col string, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(col) == "" {
		return NewInvalidRequestError(param, "column name must not be blank")
	}
	if cfg.MaxColumnNameLen > 0 && len(col) > cfg.MaxColumnNameLen {
		return NewInvalidRequestError(param,
			fmt.Sprintf("column name exceeds maximum of %d bytes", cfg.MaxColumnNameLen))
	}
	for _, r := range col {
		if r < 0x20 || r == 0x7f {
			return NewInvalidRequestError(param, "column name contains control characters")
		}
	}
	return nil
}
