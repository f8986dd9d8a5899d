package llms

import (
	"fmt"

	"github.com/maestro-cli/maestro/pkg/registry"
)

// Registry holds the ModelCaller instances available to a run, keyed by
// provider name.
type Registry struct {
	*registry.BaseRegistry[ModelCaller]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[ModelCaller]()}
}

func (r *Registry) RegisterCaller(name string, caller ModelCaller) error {
	if name == "" {
		return fmt.Errorf("model caller name cannot be empty")
	}
	if caller == nil {
		return fmt.Errorf("model caller cannot be nil")
	}
	return r.Register(name, caller)
}

// CallerFor returns the caller registered for the provider owning the
// model, falling back to a sole registered caller when the owner is
// unknown or unregistered.
func (r *Registry) CallerFor(model string) (ModelCaller, error) {
	if owner := OwnerOf(model); owner != "" {
		if caller, ok := r.Get(owner); ok {
			return caller, nil
		}
	}
	if names := r.Names(); len(names) == 1 {
		caller, _ := r.Get(names[0])
		return caller, nil
	}
	return nil, fmt.Errorf("no model caller registered for model '%s'", model)
}
