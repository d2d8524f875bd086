package config

import "os"

const (
	defaultHTTPAddr      = ":8080"
	defaultMetricsAddr   = ":9090"
	defaultRedisURL      = "redis://localhost:6379"
	defaultBaseURL       = "http://localhost:8080"
	defaultAgentTag      = "flowgate"
	defaultRoutingRules  = "rules/routing-rules.json"
	defaultProvidersPath = "config/providers.yaml"

	envHTTPAddr      = "GATEWAY_HTTP_ADDR"
	envMetricsAddr   = "GATEWAY_METRICS_ADDR"
	envRedisURL      = "REDIS_URL"
	envNATSURL       = "NATS_URL"
	envBaseURL       = "BASE_URL"
	envAgentTag      = "AGENT_SIGNATURE"
	envRoutingRules  = "ROUTING_RULES_PATH"
	envProvidersPath = "PROVIDERS_CONFIG_PATH"
)

// Config holds runtime configuration for the gateway.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	RedisURL    string
	// NatsURL is optional; empty disables the event bus.
	NatsURL string
	// BaseURL is the public origin this service is reachable at. It seeds
	// OAuth redirect URIs and the request-loop detector.
	BaseURL string
	// AgentTag is the User-Agent signature this service stamps on its own
	// outbound calls; inbound requests carrying it are treated as loops.
	AgentTag      string
	RoutingRules  string
	ProvidersPath string
}

// Load returns configuration using environment variables with sane defaults.
func Load() *Config {
	return &Config{
		HTTPAddr:      envOr(envHTTPAddr, defaultHTTPAddr),
		MetricsAddr:   envOr(envMetricsAddr, defaultMetricsAddr),
		RedisURL:      envOr(envRedisURL, defaultRedisURL),
		NatsURL:       os.Getenv(envNATSURL),
		BaseURL:       envOr(envBaseURL, defaultBaseURL),
		AgentTag:      envOr(envAgentTag, defaultAgentTag),
		RoutingRules:  envOr(envRoutingRules, defaultRoutingRules),
		ProvidersPath: envOr(envProvidersPath, defaultProvidersPath),
	}
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
