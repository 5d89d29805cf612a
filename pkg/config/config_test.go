package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfigFile writes a YAML config into a temp dir and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Dispatch.Runner != "local" {
		t.Errorf("Dispatch.Runner = %q, want local", cfg.Dispatch.Runner)
	}
	if cfg.Dispatch.OutDir != "out/api" {
		t.Errorf("Dispatch.OutDir = %q, want out/api", cfg.Dispatch.OutDir)
	}
	if cfg.Dispatch.Timeout != 5*time.Minute {
		t.Errorf("Dispatch.Timeout = %v, want 5m", cfg.Dispatch.Timeout)
	}
	if cfg.Dispatch.MaxCovariates != 15 {
		t.Errorf("Dispatch.MaxCovariates = %d, want 15", cfg.Dispatch.MaxCovariates)
	}
	if cfg.Router.LLM.Timeout != 10*time.Second {
		t.Errorf("Router.LLM.Timeout = %v, want 10s", cfg.Router.LLM.Timeout)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
	if cfg.Storage.MaxSize != 10000 {
		t.Errorf("Storage.MaxSize = %d, want 10000", cfg.Storage.MaxSize)
	}
	if cfg.Auth.Type != "none" {
		t.Errorf("Auth.Type = %q, want none", cfg.Auth.Type)
	}
	if !cfg.Observability.Metrics.Enabled || cfg.Observability.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v, want enabled at /metrics", cfg.Observability.Metrics)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  write_timeout: 60s
router:
  llm:
    base_url: http://llm.internal:8000
    model: qwen2.5-7b-instruct
dispatch:
  backend_dir: /opt/causeway/backends
  max_covariates: 8
storage:
  type: postgres
  postgres:
    dsn: postgres://causeway@db/causeway
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 60*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want 60s", cfg.Server.WriteTimeout)
	}
	// Unset fields keep their defaults.
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want default 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Router.LLM.BaseURL != "http://llm.internal:8000" {
		t.Errorf("LLM.BaseURL = %q", cfg.Router.LLM.BaseURL)
	}
	if cfg.Dispatch.BackendDir != "/opt/causeway/backends" {
		t.Errorf("Dispatch.BackendDir = %q", cfg.Dispatch.BackendDir)
	}
	if cfg.Dispatch.MaxCovariates != 8 {
		t.Errorf("Dispatch.MaxCovariates = %d, want 8", cfg.Dispatch.MaxCovariates)
	}
	if cfg.Storage.Type != "postgres" {
		t.Errorf("Storage.Type = %q, want postgres", cfg.Storage.Type)
	}
}

func TestConfigFileDiscoveryViaEnv(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 7070\n")
	t.Setenv("CAUSEWAY_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070", cfg.Server.Port)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
dispatch:
  backend_dir: /from/file
`)
	t.Setenv("CAUSEWAY_PORT", "9999")
	t.Setenv("CAUSEWAY_BACKEND_DIR", "/from/env")
	t.Setenv("CAUSEWAY_LLM_BASE_URL", "http://llm.env:8000")
	t.Setenv("CAUSEWAY_STORAGE_SIZE", "500")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want env override 9999", cfg.Server.Port)
	}
	if cfg.Dispatch.BackendDir != "/from/env" {
		t.Errorf("BackendDir = %q, want /from/env", cfg.Dispatch.BackendDir)
	}
	if cfg.Router.LLM.BaseURL != "http://llm.env:8000" {
		t.Errorf("LLM.BaseURL = %q", cfg.Router.LLM.BaseURL)
	}
	if cfg.Storage.MaxSize != 500 {
		t.Errorf("Storage.MaxSize = %d, want 500", cfg.Storage.MaxSize)
	}
}

func TestAPIKeysFromEnvJSON(t *testing.T) {
	t.Setenv("CAUSEWAY_AUTH_TYPE", "apikey")
	t.Setenv("CAUSEWAY_API_KEYS", `[{"key":"cw-k1","subject":"svc-a","tenant_id":"org-1","tier":"standard"}]`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.Type != "apikey" {
		t.Fatalf("Auth.Type = %q, want apikey", cfg.Auth.Type)
	}
	if len(cfg.Auth.APIKeys) != 1 {
		t.Fatalf("len(APIKeys) = %d, want 1", len(cfg.Auth.APIKeys))
	}
	k := cfg.Auth.APIKeys[0]
	if k.Key != "cw-k1" || k.Subject != "svc-a" || k.TenantID != "org-1" || k.Tier != "standard" {
		t.Errorf("APIKeys[0] = %+v", k)
	}
}

func TestAPIKeysFromEnvMalformed(t *testing.T) {
	t.Setenv("CAUSEWAY_AUTH_TYPE", "apikey")
	t.Setenv("CAUSEWAY_API_KEYS", `[{"key":"cw-k1"`)

	_, err := Load("")
	if err == nil {
		t.Fatal("Load accepted malformed CAUSEWAY_API_KEYS")
	}
	if !strings.Contains(err.Error(), "CAUSEWAY_API_KEYS") {
		t.Errorf("error = %v, want mention of CAUSEWAY_API_KEYS", err)
	}
}

func TestFileReferences(t *testing.T) {
	dir := t.TempDir()
	dsnFile := filepath.Join(dir, "dsn")
	if err := os.WriteFile(dsnFile, []byte("postgres://causeway@db/causeway\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	keyFile := filepath.Join(dir, "llm-key")
	if err := os.WriteFile(keyFile, []byte("  sk-secret  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	path := writeConfigFile(t, `
router:
  llm:
    api_key_file: `+keyFile+`
storage:
  type: postgres
  postgres:
    dsn_file: `+dsnFile+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Postgres.DSN != "postgres://causeway@db/causeway" {
		t.Errorf("Postgres.DSN = %q, want trimmed file content", cfg.Storage.Postgres.DSN)
	}
	if cfg.Router.LLM.APIKey != "sk-secret" {
		t.Errorf("LLM.APIKey = %q, want trimmed file content", cfg.Router.LLM.APIKey)
	}
}

func TestFileReferenceDoesNotOverrideValue(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("from-file"), 0o600); err != nil {
		t.Fatal(err)
	}

	path := writeConfigFile(t, `
router:
  llm:
    api_key: inline-key
    api_key_file: `+keyFile+`
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Router.LLM.APIKey != "inline-key" {
		t.Errorf("LLM.APIKey = %q, want inline value to win", cfg.Router.LLM.APIKey)
	}
}

func TestMissingSecretFileFails(t *testing.T) {
	path := writeConfigFile(t, `
router:
  llm:
    api_key_file: /nonexistent/secret
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing secret file")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "server.port",
		},
		{
			name:    "unknown runner",
			mutate:  func(c *Config) { c.Dispatch.Runner = "docker" },
			wantErr: "dispatch.runner",
		},
		{
			name:    "sandbox runner without url",
			mutate:  func(c *Config) { c.Dispatch.Runner = "sandbox" },
			wantErr: "dispatch.sandbox.url",
		},
		{
			name: "kubernetes runner without template",
			mutate: func(c *Config) {
				c.Dispatch.Runner = "kubernetes"
				c.Dispatch.Sandbox.Namespace = "analytics"
			},
			wantErr: "dispatch.sandbox.template",
		},
		{
			name:    "negative max covariates",
			mutate:  func(c *Config) { c.Dispatch.MaxCovariates = -1 },
			wantErr: "dispatch.max_covariates",
		},
		{
			name:    "unknown storage type",
			mutate:  func(c *Config) { c.Storage.Type = "redis" },
			wantErr: "storage.type",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Storage.Type = "postgres" },
			wantErr: "storage.postgres.dsn",
		},
		{
			name:    "unknown auth type",
			mutate:  func(c *Config) { c.Auth.Type = "oauth" },
			wantErr: "auth.type",
		},
		{
			name:    "jwt without jwks url",
			mutate:  func(c *Config) { c.Auth.Type = "jwt" },
			wantErr: "auth.jwt.jwks_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidDefaultsPass(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
