package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models creetonbiz.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret          string `yaml:"jwt_secret"`
		TokenLifetimeHours int    `yaml:"token_lifetime_hours"`
	} `yaml:"auth"`
	Limits struct {
		FreeIdeas int `yaml:"free_ideas"`
	} `yaml:"limits"`
	Stripe struct {
		SecretKey          string `yaml:"secret_key"`
		PublishableKey     string `yaml:"publishable_key"`
		WebhookSecret      string `yaml:"webhook_secret"`
		PriceInfinity      string `yaml:"price_infinity"`
		PriceStartnowSetup string `yaml:"price_startnow_setup"`
	} `yaml:"stripe"`
	Frontend struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"frontend"`
	Publish struct {
		WebRoot string `yaml:"web_root"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"publish"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "creetonbiz.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run ctb init or copy the default template", Path(workspace))
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the default Config struct.
func Default() *Config {
	cfg, _ := FromYAML([]byte(defaultTemplate))
	return cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8080"
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/api"
	}
	if c.Auth.TokenLifetimeHours == 0 {
		c.Auth.TokenLifetimeHours = 24
	}
	if c.Limits.FreeIdeas == 0 {
		c.Limits.FreeIdeas = 3
	}
	if c.Frontend.BaseURL == "" {
		c.Frontend.BaseURL = "http://localhost:5173"
	}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.base_path must start with /")
	}
	if c.Auth.TokenLifetimeHours < 0 {
		return fmt.Errorf("auth.token_lifetime_hours must be positive")
	}
	if c.Limits.FreeIdeas < 0 {
		return fmt.Errorf("limits.free_ideas must be positive")
	}
	if c.Stripe.SecretKey != "" {
		if c.Stripe.PriceInfinity == "" || c.Stripe.PriceStartnowSetup == "" {
			return fmt.Errorf("stripe price ids are required when stripe.secret_key is set")
		}
	}
	if c.Publish.WebRoot != "" && c.Publish.BaseURL == "" {
		return fmt.Errorf("publish.base_url is required when publish.web_root is set")
	}
	return nil
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /api

auth:
  # Required for serving; override with CTB_JWT_SECRET in production.
  jwt_secret: ""
  token_lifetime_hours: 24

limits:
  # Ideas a free account may generate before being pointed at the packs.
  free_ideas: 3

stripe:
  secret_key: ""
  publishable_key: ""
  webhook_secret: ""
  price_infinity: ""
  price_startnow_setup: ""

frontend:
  base_url: http://localhost:5173

publish:
  # When set, published landing pages are copied below web_root and exposed
  # at base_url/<project-id>/.
  web_root: ""
  base_url: ""
`
