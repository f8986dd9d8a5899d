package llms

import (
	"os"

	"github.com/maestro-cli/maestro/pkg/logger"
)

// NewRegistryFromProviders instantiates a caller for every configured
// provider whose API key is present in the environment. Providers without
// a concrete binding are skipped with a warning; model resolution remaps
// their models onto a keyed provider.
func NewRegistryFromProviders(p Providers) (*Registry, error) {
	reg := NewRegistry()

	for name, cfg := range p {
		if cfg.APIKeyEnv == "" {
			continue
		}
		key := os.Getenv(cfg.APIKeyEnv)
		if key == "" {
			continue
		}

		var caller ModelCaller
		var err error
		switch name {
		case "anthropic":
			caller, err = NewAnthropicCaller(key)
		case "openai":
			caller, err = NewOpenAICaller(key)
		default:
			logger.GetLogger().Warn("No model caller binding for provider", "provider", name)
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := reg.RegisterCaller(name, caller); err != nil {
			return nil, err
		}
	}

	return reg, nil
}
