// Package config holds the top-level configuration for a maestro session:
// model providers, agent-type defaults, tool servers and groups, the
// permission policy, and session-level budget and approval settings.
package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/maestro-cli/maestro/pkg/llms"
	"github.com/maestro-cli/maestro/pkg/mcp"
	"github.com/maestro-cli/maestro/pkg/tools"
)

// AgentConfig is the preset of model and tool-loop defaults for one agent
// type.
type AgentConfig struct {
	Model        string   `yaml:"model,omitempty"`
	MaxTokens    int      `yaml:"max_tokens,omitempty"`
	Temperature  *float64 `yaml:"temperature,omitempty"`
	MaxToolSteps int      `yaml:"max_tool_steps,omitempty"`
}

// SessionConfig carries the outer guardrails enforced before the engine
// runs: session budget, approval threshold, read-only mode.
type SessionConfig struct {
	BudgetUSD            float64  `yaml:"budget_usd,omitempty"`
	ApprovalThresholdUSD float64  `yaml:"approval_threshold_usd,omitempty"`
	ReadOnly             bool     `yaml:"read_only,omitempty"`
	ReadOnlyAllowedTools []string `yaml:"read_only_allowed_tools,omitempty"`
	MaxConcurrency       int      `yaml:"max_concurrency,omitempty"`
	MaxBudgetUSD         float64  `yaml:"max_budget_usd,omitempty"`
}

// SkillDirs points at the skill search path. User skills shadow built-ins
// of the same name.
type SkillDirs struct {
	BuiltinDir string `yaml:"builtin_dir,omitempty"`
	UserDir    string `yaml:"user_dir,omitempty"`
}

type Config struct {
	Providers   llms.Providers         `yaml:"providers,omitempty"`
	Agents      map[string]AgentConfig `yaml:"agents,omitempty"`
	Permissions tools.PermissionPolicy `yaml:"permissions,omitempty"`
	ToolServers []mcp.ServerConfig     `yaml:"tool_servers,omitempty"`
	ToolGroups  map[string][]string    `yaml:"tool_groups,omitempty"`
	Session     SessionConfig          `yaml:"session,omitempty"`
	Skills      SkillDirs              `yaml:"skills,omitempty"`
}

const (
	defaultMaxConcurrency       = 3
	defaultMaxToolSteps         = 8
	defaultApprovalThresholdUSD = 1.00
)

func (c *Config) SetDefaults() {
	if c.Agents == nil {
		c.Agents = make(map[string]AgentConfig)
	}
	for _, agentType := range []string{"research", "explore", "verify", "default"} {
		agent := c.Agents[agentType]
		if agent.MaxToolSteps == 0 {
			agent.MaxToolSteps = defaultMaxToolSteps
		}
		c.Agents[agentType] = agent
	}

	if c.Session.MaxConcurrency == 0 {
		c.Session.MaxConcurrency = defaultMaxConcurrency
	}
	if c.Session.ApprovalThresholdUSD == 0 {
		c.Session.ApprovalThresholdUSD = defaultApprovalThresholdUSD
	}
}

func (c *Config) Validate() error {
	if c.Session.MaxConcurrency < 0 {
		return fmt.Errorf("session.max_concurrency cannot be negative")
	}
	if c.Session.BudgetUSD < 0 {
		return fmt.Errorf("session.budget_usd cannot be negative")
	}
	for i, server := range c.ToolServers {
		if server.Name == "" {
			return fmt.Errorf("tool_servers[%d]: name is required", i)
		}
		if server.Command == "" && server.URL == "" {
			return fmt.Errorf("tool server '%s': either command or url is required", server.Name)
		}
	}
	for key, level := range c.Permissions {
		switch level {
		case tools.PermissionAuto, tools.PermissionConfirm, tools.PermissionDeny:
		default:
			return fmt.Errorf("permissions['%s']: unknown level '%s'", key, level)
		}
	}
	return nil
}

// AgentFor returns the preset for an agent type, falling back to the
// default preset for unknown types.
func (c *Config) AgentFor(agentType string) AgentConfig {
	if agent, ok := c.Agents[agentType]; ok {
		return agent
	}
	return c.Agents["default"]
}

// Parse decodes raw YAML config text after env expansion.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "yaml",
		Result:  cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads and parses a config file. A missing file yields the
// defaults.
func LoadFile(path string) (*Config, error) {
	LoadDotEnv()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			cfg.SetDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return Parse(data)
}
