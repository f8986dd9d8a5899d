package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/maestro-cli/maestro/pkg/registry"
)

// ToolRegistry holds the resolved tool catalog plus the named groups skills
// reference in their stages' tools lists.
type ToolRegistry struct {
	*registry.BaseRegistry[Tool]

	mu     sync.RWMutex
	groups map[string][]string
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		BaseRegistry: registry.NewBaseRegistry[Tool](),
		groups:       make(map[string][]string),
	}
}

func (r *ToolRegistry) RegisterTool(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	return r.Register(tool.GetName(), tool)
}

// DefineGroup names a set of qualified tool names stages can reference.
// Redefinition replaces the previous membership.
func (r *ToolRegistry) DefineGroup(name string, toolNames []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.groups[name] = append([]string(nil), toolNames...)
}

func (r *ToolRegistry) GroupNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveGroups returns the union of the named groups' tools. A group name
// that matches a registered tool directly is treated as a one-tool group.
// Unknown names resolve to nothing; availability is the engine's concern.
func (r *ToolRegistry) ResolveGroups(groupNames []string) ToolMap {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolved := make(ToolMap)
	for _, groupName := range groupNames {
		members, ok := r.groups[groupName]
		if !ok {
			if tool, found := r.Get(groupName); found {
				resolved[groupName] = tool
			}
			continue
		}
		for _, toolName := range members {
			if tool, found := r.Get(toolName); found {
				resolved[toolName] = tool
			}
		}
	}
	return resolved
}

// IsAvailable reports whether a qualified tool name is in the catalog.
func (r *ToolRegistry) IsAvailable(name string) bool {
	_, ok := r.Get(name)
	return ok
}
