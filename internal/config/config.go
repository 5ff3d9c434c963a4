// Package config loads the assistant's YAML configuration.
//
// Everything has a working default: a missing file yields a usable Config,
// and a file only needs the keys it wants to change. Secrets (the model API
// key) never live in the file; they come from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jaredassist/jared/internal/agent"
	"github.com/jaredassist/jared/internal/bridge"
)

// Config is the root configuration for the assistant.
type Config struct {
	Model  ModelConfig            `yaml:"model"`
	Quotas QuotasConfig           `yaml:"quotas"`
	Agents map[string]AgentConfig `yaml:"agents"`
	Outbox OutboxConfig           `yaml:"outbox"`
	Server ServerConfig           `yaml:"server"`
	Retry  RetryConfig            `yaml:"retry"`
}

// ModelConfig configures the chat-completions backend.
type ModelConfig struct {
	BaseURL        string `yaml:"baseURL"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`

	// APIKeyEnv names the environment variable holding the API key.
	// The key itself never appears in the file.
	APIKeyEnv string `yaml:"apiKeyEnv"`
}

// APIKey resolves the model API key from the environment.
func (m ModelConfig) APIKey() string {
	return os.Getenv(m.APIKeyEnv)
}

// Timeout returns the per-call model timeout.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// QuotasConfig caps per-run tool invocations. Zero values fall back to the
// bridge defaults.
type QuotasConfig struct {
	Search int `yaml:"search"`
	Fetch  int `yaml:"fetch"`
	Send   int `yaml:"send"`
	Label  int `yaml:"label"`
}

// AgentConfig overrides a role's tunable knobs. Tool subsets are fixed in
// code and deliberately not configurable.
type AgentConfig struct {
	MaxTurns     int    `yaml:"maxTurns"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// OutboxConfig locates the pending-draft database.
type OutboxConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig controls the serving addresses.
type ServerConfig struct {
	MetricsAddress string `yaml:"metricsAddress"`
}

// RetryConfig bounds the orchestrator's transient-failure retries.
type RetryConfig struct {
	MaxAttempts            uint `yaml:"maxAttempts"`
	InitialIntervalSeconds int  `yaml:"initialIntervalSeconds"`
}

// InitialInterval returns the backoff seed interval.
func (r RetryConfig) InitialInterval() time.Duration {
	return time.Duration(r.InitialIntervalSeconds) * time.Second
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Model: ModelConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 90,
			APIKeyEnv:      "OPENAI_API_KEY",
		},
		Outbox: OutboxConfig{Path: ""},
		Server: ServerConfig{MetricsAddress: ":9090"},
		Retry:  RetryConfig{MaxAttempts: 3, InitialIntervalSeconds: 1},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged; a missing file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Model.BaseURL == "" {
		c.Model.BaseURL = def.Model.BaseURL
	}
	if c.Model.Model == "" {
		c.Model.Model = def.Model.Model
	}
	if c.Model.TimeoutSeconds <= 0 {
		c.Model.TimeoutSeconds = def.Model.TimeoutSeconds
	}
	if c.Model.APIKeyEnv == "" {
		c.Model.APIKeyEnv = def.Model.APIKeyEnv
	}
	if c.Server.MetricsAddress == "" {
		c.Server.MetricsAddress = def.Server.MetricsAddress
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.InitialIntervalSeconds <= 0 {
		c.Retry.InitialIntervalSeconds = def.Retry.InitialIntervalSeconds
	}
}

// Validate ensures the configuration is internally consistent.
func (c Config) Validate() error {
	for name, ac := range c.Agents {
		switch name {
		case agent.RoleReader, agent.RoleDrafter, agent.RoleAnalyzer:
		default:
			return fmt.Errorf("unknown agent role %q", name)
		}
		if ac.MaxTurns < 0 {
			return fmt.Errorf("agent %s: maxTurns cannot be negative", name)
		}
	}
	if c.Quotas.Search < 0 || c.Quotas.Fetch < 0 || c.Quotas.Send < 0 || c.Quotas.Label < 0 {
		return errors.New("quotas cannot be negative")
	}
	return nil
}

// BridgeQuotas converts the configured quotas for the tool bridge.
func (c Config) BridgeQuotas() bridge.Quotas {
	return bridge.Quotas{
		Search: c.Quotas.Search,
		Fetch:  c.Quotas.Fetch,
		Send:   c.Quotas.Send,
		Label:  c.Quotas.Label,
	}
}

// Roles returns the default roles with configured overrides applied. The tool
// subset of each role is never touched; only prompts and turn budgets are
// tunable.
func (c Config) Roles() map[string]agent.Role {
	roles := map[string]agent.Role{
		agent.RoleReader:   agent.ReaderRole(),
		agent.RoleDrafter:  agent.DrafterRole(),
		agent.RoleAnalyzer: agent.AnalyzerRole(),
	}
	for name, ac := range c.Agents {
		role, ok := roles[name]
		if !ok {
			continue
		}
		if ac.MaxTurns > 0 {
			role.MaxTurns = ac.MaxTurns
		}
		if ac.SystemPrompt != "" {
			role.SystemPrompt = ac.SystemPrompt
		}
		roles[name] = role
	}
	return roles
}
