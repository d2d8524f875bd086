package gateway

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowgate/flowgate/core/flow"
	"github.com/flowgate/flowgate/core/infra/bus"
	"github.com/flowgate/flowgate/core/infra/config"
	"github.com/flowgate/flowgate/core/infra/kv"
	"github.com/flowgate/flowgate/core/infra/logging"
	"github.com/flowgate/flowgate/core/infra/metrics"
	"github.com/flowgate/flowgate/core/intent"
	"github.com/flowgate/flowgate/core/oauth"
	"github.com/flowgate/flowgate/core/routing"
)

// Run wires the gateway from configuration and serves until SIGINT or
// SIGTERM.
func Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := kv.NewRedisStore(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("kv store: %w", err)
	}
	defer func() { _ = store.Close() }()

	rules := routing.NewStore(cfg.RoutingRules)
	if _, err := rules.Load(); err != nil {
		// The table is re-read on demand; startup proceeds so operators can
		// fix the file without a restart loop.
		logging.Warn(component, "routing rules not loadable at startup", "path", cfg.RoutingRules, "error", err)
	}

	registry := flow.NewRegistry()
	flow.RegisterBuiltins(registry)

	prom := metrics.NewProm("flowgate")
	dispatcher := flow.NewDispatcher(registry, intent.NewMatcher(rules), prom)

	bridge, err := buildBridge(cfg, store, prom)
	if err != nil {
		return err
	}

	var pub bus.Publisher = bus.Noop{}
	if cfg.NatsURL != "" {
		nb, err := bus.NewNatsBus(cfg.NatsURL)
		if err != nil {
			logging.Warn(component, "nats unavailable, events disabled", "error", err)
		} else {
			pub = nb
			defer nb.Close()
		}
	}

	go serveMetrics(ctx, cfg.MetricsAddr)

	srv := NewServer(cfg, dispatcher, rules, bridge, store, prom, pub)
	return srv.Run(ctx)
}

// buildBridge registers every provider from the providers file. Providers
// without client credentials are still registered; they fail closed at
// authorize time.
func buildBridge(cfg *config.Config, store kv.Store, m metrics.OAuthMetrics) (*oauth.Bridge, error) {
	providers, err := config.LoadProvidersConfig(cfg.ProvidersPath)
	if err != nil {
		return nil, fmt.Errorf("providers config: %w", err)
	}

	bridge := oauth.NewBridge(oauth.NewStateManager(store), oauth.NewUserStore(store), m)
	for name, pc := range providers.Providers {
		settings := oauth.Settings{
			AuthorizeURL: pc.AuthorizeURL,
			TokenURL:     pc.TokenURL,
			UserinfoURL:  pc.UserinfoURL,
			ClientID:     providers.ClientID(name),
			ClientSecret: providers.ClientSecret(name),
			RedirectURI:  cfg.BaseURL + "/oauth/" + name + "/callback",
			Scopes:       pc.Scopes,
			ExtraParams:  pc.ExtraParams,
		}
		switch name {
		case "google":
			bridge.Register(oauth.NewGoogleProvider(settings))
		case "notion":
			bridge.Register(oauth.NewNotionProvider(settings))
		default:
			logging.Warn(component, "unknown provider in config, skipping", "provider", name)
		}
	}
	return bridge, nil
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logging.Info(component, "metrics server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logging.Error(component, "metrics server failed", "error", err)
	}
}
