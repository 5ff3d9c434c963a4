package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaredassist/jared/internal/agent"
	"github.com/jaredassist/jared/internal/bridge"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jared.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 90*time.Second, cfg.Model.Timeout())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	path := writeConfig(t, `
model:
  model: gpt-4o
quotas:
  search: 5
  send: 1
agents:
  reader:
    maxTurns: 12
  drafter:
    systemPrompt: "Write like a pirate."
outbox:
  path: /tmp/jared-outbox.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Model.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Model.BaseURL, "unset keys keep defaults")
	assert.Equal(t, ":9090", cfg.Server.MetricsAddress)
	assert.Equal(t, bridge.Quotas{Search: 5, Send: 1}, cfg.BridgeQuotas())
	assert.Equal(t, "/tmp/jared-outbox.db", cfg.Outbox.Path)

	roles := cfg.Roles()
	assert.Equal(t, 12, roles[agent.RoleReader].MaxTurns)
	assert.Equal(t, "Write like a pirate.", roles[agent.RoleDrafter].SystemPrompt)
	assert.Equal(t, agent.DefaultMaxTurns, roles[agent.RoleAnalyzer].MaxTurns)
}

func TestRoleToolSubsetsNotConfigurable(t *testing.T) {
	path := writeConfig(t, `
agents:
  drafter:
    maxTurns: 2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	drafter := cfg.Roles()[agent.RoleDrafter]
	assert.Equal(t, agent.DrafterRole().AllowedTools, drafter.AllowedTools,
		"tool subsets are fixed in code")
	assert.False(t, drafter.Allows(bridge.ToolSend))
}

func TestValidateRejectsUnknownRole(t *testing.T) {
	path := writeConfig(t, `
agents:
  scheduler:
    maxTurns: 4
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown agent role")
}

func TestValidateRejectsNegativeQuota(t *testing.T) {
	path := writeConfig(t, `
quotas:
  fetch: -1
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "quotas cannot be negative")
}

func TestAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := Default()
	assert.Equal(t, "sk-test", cfg.Model.APIKey())
}
