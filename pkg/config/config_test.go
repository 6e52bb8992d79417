package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_JSON(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := writeConfig(t, "config.json", `{
		"app": {"name": "calc"},
		"gateways": {"telegram": {"token": "tg-token", "enabled": true}},
		"providers": {"openai": {"api_key": "sk-test", "model": "gpt-4o-mini", "enabled": true}},
		"memory": {"type": "sqlite", "path": "tally.db"},
		"pipeline": {"concurrency": 4, "oracle_timeout_seconds": 10, "fail_fast": false, "cache_plans": true},
		"policy": {"deny_patterns": ["(?i)password"], "max_query_length": 500, "max_sub_queries": 8}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "calc", cfg.App.Name)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.OracleTimeout())
	assert.False(t, cfg.ShouldFailFast())
	assert.True(t, cfg.Pipeline.CachePlans)
	assert.Equal(t, "./prompts", cfg.Pipeline.PromptsDir)
	assert.Equal(t, []string{"(?i)password"}, cfg.Policy.DenyPatterns)
	assert.Equal(t, 8, cfg.Policy.MaxSubQueries)

	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "openai", name)
	assert.Equal(t, "gpt-4o-mini", p.Model)

	tg, ok := cfg.GetTelegramConfig()
	require.True(t, ok)
	assert.Equal(t, "tg-token", tg.Token)

	_, ok = cfg.GetDiscordConfig()
	assert.False(t, ok)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
providers:
  openrouter:
    api_key: or-key
    model: openai/gpt-4o
    base_url: https://openrouter.ai/api/v1
    enabled: true
gateways:
  discord:
    token: dc-token
    enabled: true
pipeline:
  concurrency: 2
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	name, p := cfg.GetDefaultProvider()
	assert.Equal(t, "openrouter", name)
	assert.Equal(t, "https://openrouter.ai/api/v1", p.BaseURL)
	assert.Equal(t, 2, cfg.Pipeline.Concurrency)

	dc, ok := cfg.GetDiscordConfig()
	require.True(t, ok)
	assert.Equal(t, "dc-token", dc.Token)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "empty.json", `{}`))
	require.NoError(t, err)

	assert.Equal(t, "tally", cfg.App.Name)
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
	assert.Equal(t, 60*time.Second, cfg.OracleTimeout())
	assert.True(t, cfg.ShouldFailFast())

	name, _ := cfg.GetDefaultProvider()
	assert.Empty(t, name)
}

func TestLoadConfig_EnvironmentKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	cfg, err := LoadConfig(writeConfig(t, "config.json",
		`{"providers": {"openai": {"model": "gpt-4o-mini", "enabled": true}}}`))
	require.NoError(t, err)

	_, p := cfg.GetDefaultProvider()
	assert.Equal(t, "sk-env", p.APIKey)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "bad.json", `{"app":`))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "bad.yml", "app: [unclosed"))
	assert.Error(t, err)
}

func TestGateway_DisabledOrTokenless(t *testing.T) {
	cfg := &Config{Gateways: map[string]GatewayConfig{
		"telegram": {Token: "x", Enabled: false},
		"discord":  {Enabled: true},
	}}
	_, ok := cfg.GetTelegramConfig()
	assert.False(t, ok)
	_, ok = cfg.GetDiscordConfig()
	assert.False(t, ok)
}
