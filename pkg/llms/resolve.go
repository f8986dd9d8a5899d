package llms

import (
	"os"
	"strings"
)

// ProviderConfig describes one model provider: the model used when a stage
// is remapped onto it, and the environment variable carrying its API key.
type ProviderConfig struct {
	DefaultModel string `yaml:"default_model"`
	APIKeyEnv    string `yaml:"api_key_env"`
}

// Providers is the model-resolution side of the configuration, keyed by
// provider name (anthropic, openai, google, ...).
type Providers map[string]ProviderConfig

// modelOwners maps model-id prefixes to the provider that serves them.
var modelOwners = map[string]string{
	"claude": "anthropic",
	"gpt":    "openai",
	"o1":     "openai",
	"o3":     "openai",
	"o4":     "openai",
	"gemini": "google",
}

// OwnerOf returns the provider name owning a model id, or "" when the
// prefix is not recognized.
func OwnerOf(model string) string {
	for prefix, owner := range modelOwners {
		if strings.HasPrefix(model, prefix) {
			return owner
		}
	}
	return ""
}

// HasKey reports whether the provider's API key is present in the
// environment.
func (p Providers) HasKey(name string) bool {
	cfg, ok := p[name]
	if !ok || cfg.APIKeyEnv == "" {
		return false
	}
	return os.Getenv(cfg.APIKeyEnv) != ""
}

// firstKeyed returns a provider with a usable key, preferring a stable
// order so remapping is deterministic.
func (p Providers) firstKeyed() (string, ProviderConfig, bool) {
	for _, name := range []string{"anthropic", "openai", "google"} {
		if p.HasKey(name) {
			return name, p[name], true
		}
	}
	for name, cfg := range p {
		if p.HasKey(name) {
			return name, cfg, true
		}
	}
	return "", ProviderConfig{}, false
}

// agentTypeDefaultModels are the last-resort models per agent type, used
// when neither the stage nor the agent configuration names one.
var agentTypeDefaultModels = map[string]string{
	"research": "claude-sonnet-4-20250514",
	"explore":  "claude-haiku-4-20250514",
	"verify":   "claude-sonnet-4-20250514",
	"default":  "claude-sonnet-4-20250514",
}

func AgentTypeDefaultModel(agentType string) string {
	if m, ok := agentTypeDefaultModels[agentType]; ok {
		return m
	}
	return agentTypeDefaultModels["default"]
}

// ResolveModel picks the model id for a stage. Priority: run-level
// override, then the stage's own model, then the agent configuration for
// the stage's agent type, then the built-in agent-type default. If the
// owning provider has no API key, the stage is remapped to the default
// model of a provider that does. Returns the resolved id and the id before
// remapping (equal when no remap happened).
func (p Providers) ResolveModel(override, stageModel, agentModel, agentType string) (resolved, requested string) {
	requested = override
	if requested == "" {
		requested = stageModel
	}
	if requested == "" {
		requested = agentModel
	}
	if requested == "" {
		requested = AgentTypeDefaultModel(agentType)
	}

	owner := OwnerOf(requested)
	if owner != "" && p.HasKey(owner) {
		return requested, requested
	}
	if owner == "" && len(p) == 0 {
		// Nothing to remap against; trust the caller.
		return requested, requested
	}
	if _, cfg, ok := p.firstKeyed(); ok && cfg.DefaultModel != "" {
		return cfg.DefaultModel, requested
	}
	return requested, requested
}
