package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-cli/maestro/pkg/tools"
)

const sampleConfig = `
providers:
  anthropic:
    default_model: claude-sonnet-4-20250514
    api_key_env: ANTHROPIC_API_KEY
  openai:
    default_model: gpt-4o
    api_key_env: OPENAI_API_KEY

agents:
  research:
    model: claude-sonnet-4-20250514
    max_tokens: 8192
    max_tool_steps: 12
  explore:
    model: claude-haiku-4-20250514

permissions:
  "fs.*": confirm
  "fs/read_file": auto
  "admin.*": deny

tool_servers:
  - name: market
    command: uvx
    args: ["market-mcp"]
  - name: filings
    url: https://filings.example.com/mcp
    headers:
      Authorization: "Bearer ${FILINGS_TOKEN}"

tool_groups:
  market-data: ["market/get_quote", "market/get_news"]

session:
  budget_usd: 10.0
  approval_threshold_usd: 2.5
  max_concurrency: 4
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Providers["anthropic"].DefaultModel)
	assert.Equal(t, 12, cfg.Agents["research"].MaxToolSteps)
	assert.Equal(t, tools.PermissionDeny, cfg.Permissions["admin.*"])
	require.Len(t, cfg.ToolServers, 2)
	assert.Equal(t, "stdio", cfg.ToolServers[0].Transport())
	assert.Equal(t, "streamable-http", cfg.ToolServers[1].Transport())
	assert.Equal(t, 10.0, cfg.Session.BudgetUSD)
	assert.Equal(t, 4, cfg.Session.MaxConcurrency)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, defaultMaxConcurrency, cfg.Session.MaxConcurrency)
	assert.Equal(t, defaultApprovalThresholdUSD, cfg.Session.ApprovalThresholdUSD)
	assert.Equal(t, defaultMaxToolSteps, cfg.Agents["default"].MaxToolSteps)
	// Explicit max_tool_steps survives defaulting.
	assert.Equal(t, defaultMaxToolSteps, cfg.Agents["explore"].MaxToolSteps)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("MAESTRO_TEST_MODEL", "gpt-4o")

	cfg, err := Parse([]byte(`
agents:
  default:
    model: ${MAESTRO_TEST_MODEL}
  research:
    model: ${MAESTRO_TEST_UNSET:-claude-opus-4}
`))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Agents["default"].Model)
	assert.Equal(t, "claude-opus-4", cfg.Agents["research"].Model)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"nameless tool server", "tool_servers:\n  - command: uvx\n"},
		{"server without transport", "tool_servers:\n  - name: x\n"},
		{"bad permission level", "permissions:\n  \"fs.*\": maybe\n"},
		{"negative budget", "session:\n  budget_usd: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestAgentFor_FallsBackToDefault(t *testing.T) {
	cfg, err := Parse([]byte("agents:\n  default:\n    model: gpt-4o\n"))
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.AgentFor("custom-type").Model)
	assert.Equal(t, "gpt-4o", cfg.AgentFor("default").Model)
}
