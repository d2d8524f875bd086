package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowgate/flowgate/core/infra/schema"
)

// ProviderConfig describes one OAuth provider's endpoints and scopes.
// Client credentials are never stored in the file; they come from
// <PROVIDER>_CLIENT_ID / <PROVIDER>_CLIENT_SECRET environment variables.
type ProviderConfig struct {
	AuthorizeURL string            `yaml:"authorize_url"`
	TokenURL     string            `yaml:"token_url"`
	UserinfoURL  string            `yaml:"userinfo_url,omitempty"`
	Scopes       []string          `yaml:"scopes,omitempty"`
	ExtraParams  map[string]string `yaml:"extra_params,omitempty"`
}

// ProvidersConfig maps provider names to their settings.
type ProvidersConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ClientID resolves the provider's client id from the environment.
func (p ProvidersConfig) ClientID(provider string) string {
	return os.Getenv(credentialEnv(provider, "CLIENT_ID"))
}

// ClientSecret resolves the provider's client secret from the environment.
func (p ProvidersConfig) ClientSecret(provider string) string {
	return os.Getenv(credentialEnv(provider, "CLIENT_SECRET"))
}

func credentialEnv(provider, suffix string) string {
	name := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(provider), "-", "_"))
	return name + "_" + suffix
}

// ParseProvidersConfig parses provider config data from YAML bytes.
func ParseProvidersConfig(data []byte) (*ProvidersConfig, error) {
	if len(data) == 0 {
		return nil, errors.New("providers config is empty")
	}
	if err := validateConfigSchema("providers", providersSchemaFile, data); err != nil {
		return nil, err
	}
	var cfg ProvidersConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse providers config: %w", err)
	}
	if len(cfg.Providers) == 0 {
		return nil, errors.New("providers config has no providers")
	}
	for name, p := range cfg.Providers {
		if p.AuthorizeURL == "" || p.TokenURL == "" {
			return nil, fmt.Errorf("provider %s missing authorize_url or token_url", name)
		}
	}
	return &cfg, nil
}

// LoadProvidersConfig reads a YAML file of OAuth provider settings.
func LoadProvidersConfig(path string) (*ProvidersConfig, error) {
	if path == "" {
		return nil, errors.New("providers config path is empty")
	}
	// #nosec G304 -- providers config path is operator-provided.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read providers config %s: %w", path, err)
	}
	return ParseProvidersConfig(data)
}

func validateConfigSchema(name, schemaPath string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	schemaBytes, err := configSchemaFS.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("load %s schema: %w", name, err)
	}
	var payload any
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse %s config: %w", name, err)
	}
	if err := schema.Validate(name, schemaBytes, payload); err != nil {
		return fmt.Errorf("validate %s config: %w", name, err)
	}
	return nil
}
