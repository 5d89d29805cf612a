// Package config provides unified configuration for the causeway gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (CAUSEWAY_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the causeway gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Router        RouterConfig        `yaml:"router"`
	Dispatch      DispatchConfig      `yaml:"dispatch"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // default: 8080
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 120s
}

// RouterConfig holds routing settings, notably the optional LLM classifier.
type RouterConfig struct {
	LLM LLMConfig `yaml:"llm"`
}

// LLMConfig configures the chat-completion classifier. Leaving base_url
// empty disables the LLM routing layer entirely; requests asking for it
// then fall back to rule-based routing.
type LLMConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	APIKeyFile string        `yaml:"api_key_file"` // _file variant for api_key
	Model      string        `yaml:"model"`
	Timeout    time.Duration `yaml:"timeout"` // default: 10s
}

// DispatchConfig holds backend execution settings.
type DispatchConfig struct {
	// Runner selects the execution strategy: "local" runs backend
	// binaries directly, "sandbox" delegates to a sandbox runner over
	// HTTP, "kubernetes" acquires sandboxes through SandboxClaims.
	Runner string `yaml:"runner"` // default: "local"

	BackendDir    string        `yaml:"backend_dir"`    // default: "backends"
	OutDir        string        `yaml:"out_dir"`        // default: "out/api"
	Timeout       time.Duration `yaml:"timeout"`        // default: 5m
	MaxCovariates int           `yaml:"max_covariates"` // default: 15

	Sandbox SandboxConfig `yaml:"sandbox"`
}

// SandboxConfig holds settings for the sandbox and kubernetes runners.
type SandboxConfig struct {
	// URL is the sandbox runner endpoint for runner "sandbox".
	URL string `yaml:"url"`

	// Template and Namespace identify the SandboxClaim template for
	// runner "kubernetes".
	Template  string        `yaml:"template"`
	Namespace string        `yaml:"namespace"`
	Timeout   time.Duration `yaml:"timeout"` // sandbox acquisition bound, default: 2m
}

// StorageConfig holds run store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory", "postgres" or "none", default: "memory"
	MaxSize  int            `yaml:"max_size"` // for memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"` // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"` // default: 25
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey", or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`      // settings for type=jwt
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// APIKeyConfig describes a single API key entry. The json tags cover the
// CAUSEWAY_API_KEYS environment override, which carries a JSON array.
type APIKeyConfig struct {
	Key      string `yaml:"key" json:"key"`
	KeyFile  string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject  string `yaml:"subject" json:"subject"`
	TenantID string `yaml:"tenant_id" json:"tenant_id"`
	Tier     string `yaml:"tier" json:"tier"`
}

// JWTConfig holds JWT validation settings.
type JWTConfig struct {
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	JWKSURL  string `yaml:"jwks_url"`
}

// RateLimitConfig holds per-tier rate limiting settings.
type RateLimitConfig struct {
	Enabled    bool           `yaml:"enabled"`
	DefaultRPM int            `yaml:"default_rpm"` // default: 60
	Tiers      map[string]int `yaml:"tiers"`       // tier name -> requests per minute
}

// ObservabilityConfig holds monitoring settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`

	// Debug enables category-based debug logging, e.g. "router,dispatch".
	// The CAUSEWAY_DEBUG and CAUSEWAY_LOG_LEVEL env vars override these.
	Debug    string `yaml:"debug"`
	LogLevel string `yaml:"log_level"` // default: "INFO"
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
		},
		Router: RouterConfig{
			LLM: LLMConfig{
				Timeout: 10 * time.Second,
			},
		},
		Dispatch: DispatchConfig{
			Runner:        "local",
			BackendDir:    "backends",
			OutDir:        "out/api",
			Timeout:       5 * time.Minute,
			MaxCovariates: 15,
			Sandbox: SandboxConfig{
				Timeout: 2 * time.Minute,
			},
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns: 25,
			},
		},
		Auth: AuthConfig{
			Type: "none",
			RateLimit: RateLimitConfig{
				DefaultRPM: 60,
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
