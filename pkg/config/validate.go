package config

import (
	"errors"
	"fmt"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error naming the offending field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	switch c.Dispatch.Runner {
	case "local", "sandbox", "kubernetes":
	default:
		errs = append(errs, fmt.Errorf("dispatch.runner must be \"local\", \"sandbox\", or \"kubernetes\", got %q", c.Dispatch.Runner))
	}

	if c.Dispatch.Runner == "sandbox" && c.Dispatch.Sandbox.URL == "" {
		errs = append(errs, fmt.Errorf("dispatch.sandbox.url is required when dispatch.runner is \"sandbox\""))
	}

	if c.Dispatch.Runner == "kubernetes" {
		if c.Dispatch.Sandbox.Template == "" {
			errs = append(errs, fmt.Errorf("dispatch.sandbox.template is required when dispatch.runner is \"kubernetes\""))
		}
		if c.Dispatch.Sandbox.Namespace == "" {
			errs = append(errs, fmt.Errorf("dispatch.sandbox.namespace is required when dispatch.runner is \"kubernetes\""))
		}
	}

	if c.Dispatch.MaxCovariates < 0 {
		errs = append(errs, fmt.Errorf("dispatch.max_covariates must be >= 0, got %d", c.Dispatch.MaxCovariates))
	}

	switch c.Storage.Type {
	case "memory", "postgres", "none":
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\" or \"none\", got %q", c.Storage.Type))
	}

	if c.Storage.Type == "postgres" {
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	}

	switch c.Auth.Type {
	case "none", "apikey", "jwt":
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\", or \"jwt\", got %q", c.Auth.Type))
	}

	if c.Auth.Type == "jwt" && c.Auth.JWT.JWKSURL == "" {
		errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
	}

	return errors.Join(errs...)
}
