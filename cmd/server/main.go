// Command server runs the causeway analysis gateway.
//
// Configuration is layered: built-in defaults, an optional YAML file
// (--config, CAUSEWAY_CONFIG, ./config.yaml, /etc/causeway/config.yaml),
// then CAUSEWAY_* environment overrides. See pkg/config for the full set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/arvhal/causeway/pkg/auth"
	"github.com/arvhal/causeway/pkg/auth/apikey"
	"github.com/arvhal/causeway/pkg/auth/jwt"
	"github.com/arvhal/causeway/pkg/auth/noop"
	"github.com/arvhal/causeway/pkg/classify"
	"github.com/arvhal/causeway/pkg/classify/llm"
	"github.com/arvhal/causeway/pkg/config"
	"github.com/arvhal/causeway/pkg/debug"
	"github.com/arvhal/causeway/pkg/dispatch"
	"github.com/arvhal/causeway/pkg/dispatch/sandbox"
	"github.com/arvhal/causeway/pkg/dispatch/sandbox/kubernetes"
	"github.com/arvhal/causeway/pkg/engine"
	"github.com/arvhal/causeway/pkg/registry"
	"github.com/arvhal/causeway/pkg/router"
	"github.com/arvhal/causeway/pkg/storage/memory"
	"github.com/arvhal/causeway/pkg/storage/postgres"
	"github.com/arvhal/causeway/pkg/transport"
	transporthttp "github.com/arvhal/causeway/pkg/transport/http"
	transportmcp "github.com/arvhal/causeway/pkg/transport/mcp"
)

const version = "v0.1.0"

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	debug.Init(cfg.Observability.Debug, cfg.Observability.LogLevel)
	logger := slog.Default()

	reg := registry.Builtin()

	rules := classify.NewRuleClassifier(reg, classify.DefaultWeights())

	var classifier router.Classifier
	if cfg.Router.LLM.BaseURL != "" {
		classifier = llm.NewClassifier(llm.Config{
			BaseURL: cfg.Router.LLM.BaseURL,
			APIKey:  cfg.Router.LLM.APIKey,
			Model:   cfg.Router.LLM.Model,
			Timeout: cfg.Router.LLM.Timeout,
		})
		logger.Info("llm routing enabled", "base_url", cfg.Router.LLM.BaseURL, "model", cfg.Router.LLM.Model)
	} else {
		logger.Info("llm routing disabled")
	}

	rtr := router.New(reg, rules, classifier, logger)

	runner, err := buildRunner(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	dispatcher := dispatch.NewDispatcher(runner, dispatch.Options{
		BackendDir:    cfg.Dispatch.BackendDir,
		OutDir:        cfg.Dispatch.OutDir,
		Timeout:       cfg.Dispatch.Timeout,
		MaxCovariates: cfg.Dispatch.MaxCovariates,
	}, logger)

	store, err := buildStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	eng, err := engine.New(engine.Config{
		Registry:   reg,
		Router:     rtr,
		Dispatcher: dispatcher,
		Store:      store,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	authMW, err := buildAuthMiddleware(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating auth: %w", err)
	}

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}

	srv := transporthttp.NewServer(eng, store,
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithLogger(logger),
		transporthttp.WithMetrics(metricsPath),
		transporthttp.WithMount("/mcp", transportmcp.Handler(eng, version)),
		transporthttp.WithOuterMiddleware(authMW),
	)

	return srv.ListenAndServe()
}

// buildRunner selects the backend execution strategy.
func buildRunner(cfg *config.Config, logger *slog.Logger) (dispatch.Runner, error) {
	switch cfg.Dispatch.Runner {
	case "", "local":
		return dispatch.LocalRunner{}, nil

	case "sandbox":
		acquirer := &sandbox.StaticAcquirer{URL: cfg.Dispatch.Sandbox.URL}
		logger.Info("sandbox runner enabled", "url", cfg.Dispatch.Sandbox.URL)
		return sandbox.NewRunner(acquirer, logger), nil

	case "kubernetes":
		scheme, err := kubernetes.NewScheme()
		if err != nil {
			return nil, err
		}
		restConfig, err := ctrlconfig.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("loading kubeconfig: %w", err)
		}
		k8sClient, err := ctrlclient.New(restConfig, ctrlclient.Options{Scheme: scheme})
		if err != nil {
			return nil, fmt.Errorf("creating kubernetes client: %w", err)
		}
		acquirer := kubernetes.NewClaimAcquirer(k8sClient,
			cfg.Dispatch.Sandbox.Template,
			cfg.Dispatch.Sandbox.Namespace,
			cfg.Dispatch.Sandbox.Timeout,
		)
		logger.Info("kubernetes runner enabled",
			"template", cfg.Dispatch.Sandbox.Template,
			"namespace", cfg.Dispatch.Sandbox.Namespace)
		return sandbox.NewRunner(acquirer, logger), nil

	default:
		return nil, fmt.Errorf("unknown runner %q", cfg.Dispatch.Runner)
	}
}

// buildStore creates the run store, or returns nil when history is disabled.
func buildStore(cfg *config.Config, logger *slog.Logger) (transport.RunStore, error) {
	switch cfg.Storage.Type {
	case "none":
		logger.Info("run history disabled")
		return nil, nil

	case "", "memory":
		logger.Info("storage enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
		return memory.New(cfg.Storage.MaxSize), nil

	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("storage enabled", "type", "postgres")
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// buildAuthMiddleware assembles the authenticator chain and rate limiter.
func buildAuthMiddleware(cfg *config.Config, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	chain := &auth.Chain{}

	switch cfg.Auth.Type {
	case "", "none":
		chain.Authenticators = []auth.Authenticator{&noop.Authenticator{}}
		chain.DefaultDecision = auth.Yes

	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			identity := auth.Identity{
				Subject: k.Subject,
				Tier:    k.Tier,
			}
			if k.TenantID != "" {
				identity.Metadata = map[string]string{"tenant_id": k.TenantID}
			}
			entries = append(entries, apikey.RawKeyEntry{Key: k.Key, Identity: identity})
		}
		chain.Authenticators = []auth.Authenticator{apikey.New(entries)}
		chain.DefaultDecision = auth.No
		logger.Info("auth enabled", "type", "apikey", "keys", len(entries))

	case "jwt":
		chain.Authenticators = []auth.Authenticator{jwt.New(jwt.Config{
			Issuer:   cfg.Auth.JWT.Issuer,
			Audience: cfg.Auth.JWT.Audience,
			JWKSURL:  cfg.Auth.JWT.JWKSURL,
		})}
		chain.DefaultDecision = auth.No
		logger.Info("auth enabled", "type", "jwt", "issuer", cfg.Auth.JWT.Issuer)

	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Auth.Type)
	}

	var limiter auth.RateLimiter
	if cfg.Auth.RateLimit.Enabled {
		tiers := make(map[string]auth.TierConfig, len(cfg.Auth.RateLimit.Tiers))
		for name, rpm := range cfg.Auth.RateLimit.Tiers {
			tiers[name] = auth.TierConfig{RequestsPerMinute: rpm}
		}
		limiter = auth.NewInProcessLimiter(tiers, cfg.Auth.RateLimit.DefaultRPM)
		logger.Info("rate limiting enabled", "default_rpm", cfg.Auth.RateLimit.DefaultRPM)
	}

	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints), nil
}
