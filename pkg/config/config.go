package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `json:"app" yaml:"app"`
	Gateways  map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Memory    MemoryConfig              `json:"memory" yaml:"memory"`
	Pipeline  PipelineConfig            `json:"pipeline" yaml:"pipeline"`
	Policy    PolicyConfig              `json:"policy" yaml:"policy"`
	Logging   LoggingConfig             `json:"logging" yaml:"logging"`
}

type AppConfig struct {
	Name string `json:"name" yaml:"name"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// MemoryConfig locates the sqlite database holding the conversation log
// and the plan cache. An empty Path disables both.
type MemoryConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}

type PipelineConfig struct {
	// Concurrency bounds the sub-queries routed at the same time.
	Concurrency          int    `json:"concurrency" yaml:"concurrency"`
	OracleTimeoutSeconds int    `json:"oracle_timeout_seconds" yaml:"oracle_timeout_seconds"`
	FailFast             *bool  `json:"fail_fast,omitempty" yaml:"fail_fast,omitempty"`
	CachePlans           bool   `json:"cache_plans" yaml:"cache_plans"`
	PromptsDir           string `json:"prompts_dir" yaml:"prompts_dir"`
}

type PolicyConfig struct {
	DenyPatterns   []string `json:"deny_patterns" yaml:"deny_patterns"`
	MaxQueryLength int      `json:"max_query_length" yaml:"max_query_length"`
	MaxSubQueries  int      `json:"max_sub_queries" yaml:"max_sub_queries"`
}

type LoggingConfig struct {
	LLMLogPath string `json:"llm_log_path" yaml:"llm_log_path"`
}

// LoadConfig reads a JSON or YAML (.yaml, .yml) config file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "tally"
	}
	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = 1
	}
	if c.Pipeline.OracleTimeoutSeconds <= 0 {
		c.Pipeline.OracleTimeoutSeconds = 60
	}
	if c.Pipeline.FailFast == nil {
		failFast := true
		c.Pipeline.FailFast = &failFast
	}
	if c.Pipeline.PromptsDir == "" {
		c.Pipeline.PromptsDir = "./prompts"
	}

	// Fall back to the environment for the OpenAI key
	if p, ok := c.Providers["openai"]; ok && p.APIKey == "" {
		p.APIKey = os.Getenv("OPENAI_API_KEY")
		c.Providers["openai"] = p
	}
}

// OracleTimeout is the per-call oracle deadline.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Pipeline.OracleTimeoutSeconds) * time.Second
}

// ShouldFailFast reports whether one routing failure aborts the request.
func (c *Config) ShouldFailFast() bool {
	return c.Pipeline.FailFast == nil || *c.Pipeline.FailFast
}

// GetDefaultProvider returns the enabled provider with the smallest name,
// so the choice does not depend on map order.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	best := ""
	for name, p := range c.Providers {
		if p.Enabled && (best == "" || name < best) {
			best = name
		}
	}
	if best == "" {
		return "", ProviderConfig{}
	}
	return best, c.Providers[best]
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	return c.gateway("telegram")
}

// GetDiscordConfig returns discord config if enabled
func (c *Config) GetDiscordConfig() (GatewayConfig, bool) {
	return c.gateway("discord")
}

func (c *Config) gateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled && g.Token != "" {
		return g, true
	}
	return GatewayConfig{}, false
}
