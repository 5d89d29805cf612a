package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, CAUSEWAY_CONFIG env, ./config.yaml,
//     /etc/causeway/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// explicit argument, CAUSEWAY_CONFIG env var, ./config.yaml,
// /etc/causeway/config.yaml. Returns "" when nothing is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("CAUSEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/causeway/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps CAUSEWAY_* environment variables to config fields.
// Env vars take precedence over both defaults and the config file.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("CAUSEWAY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CAUSEWAY_BACKEND_DIR"); v != "" {
		cfg.Dispatch.BackendDir = v
	}
	if v := os.Getenv("CAUSEWAY_OUT_DIR"); v != "" {
		cfg.Dispatch.OutDir = v
	}
	if v := os.Getenv("CAUSEWAY_DISPATCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Dispatch.Timeout = d
		}
	}
	if v := os.Getenv("CAUSEWAY_RUNNER"); v != "" {
		cfg.Dispatch.Runner = v
	}
	if v := os.Getenv("CAUSEWAY_SANDBOX_URL"); v != "" {
		cfg.Dispatch.Sandbox.URL = v
	}
	if v := os.Getenv("CAUSEWAY_LLM_BASE_URL"); v != "" {
		cfg.Router.LLM.BaseURL = v
	}
	if v := os.Getenv("CAUSEWAY_LLM_MODEL"); v != "" {
		cfg.Router.LLM.Model = v
	}
	if v := os.Getenv("CAUSEWAY_LLM_API_KEY"); v != "" {
		cfg.Router.LLM.APIKey = v
	}
	if v := os.Getenv("CAUSEWAY_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("CAUSEWAY_STORAGE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Storage.MaxSize = size
		}
	}
	if v := os.Getenv("CAUSEWAY_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("CAUSEWAY_AUTH_TYPE"); v != "" {
		cfg.Auth.Type = v
	}

	// CAUSEWAY_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("CAUSEWAY_API_KEYS"); v != "" {
		var keys []APIKeyConfig
		if err := json.Unmarshal([]byte(v), &keys); err != nil {
			return fmt.Errorf("parsing CAUSEWAY_API_KEYS: %w", err)
		}
		cfg.Auth.APIKeys = keys
	}
	return nil
}

// resolveFileReferences reads _file fields and populates the corresponding
// value fields. A _file reference only applies when the value field itself
// is empty.
func resolveFileReferences(cfg *Config) error {
	if cfg.Router.LLM.APIKeyFile != "" && cfg.Router.LLM.APIKey == "" {
		val, err := readSecretFile(cfg.Router.LLM.APIKeyFile)
		if err != nil {
			return fmt.Errorf("router.llm.api_key_file: %w", err)
		}
		cfg.Router.LLM.APIKey = val
	}

	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding
// whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
