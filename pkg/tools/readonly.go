package tools

import (
	"context"

	"github.com/maestro-cli/maestro/pkg/schema"
)

// FilterReadOnly restricts a catalog to the allow-list of side-effect-free
// tools. It runs before permission wrapping. manage_config stays callable
// for reads but its mutating action is blocked.
func FilterReadOnly(catalog ToolMap, allowed []string) ToolMap {
	allowSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowSet[name] = struct{}{}
	}

	filtered := make(ToolMap)
	for name, tool := range catalog {
		if _, ok := allowSet[name]; !ok {
			continue
		}
		if name == "manage_config" || baseName(name) == "manage_config" {
			filtered[name] = &readOnlyConfigTool{tool: tool}
			continue
		}
		filtered[name] = tool
	}
	return filtered
}

func baseName(qualified string) string {
	for i := len(qualified) - 1; i >= 0; i-- {
		if qualified[i] == '/' {
			return qualified[i+1:]
		}
	}
	return qualified
}

type readOnlyConfigTool struct {
	tool Tool
}

func (r *readOnlyConfigTool) GetName() string           { return r.tool.GetName() }
func (r *readOnlyConfigTool) GetDescription() string    { return r.tool.GetDescription() }
func (r *readOnlyConfigTool) GetSchema() *schema.Schema { return r.tool.GetSchema() }

func (r *readOnlyConfigTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	if action, _ := args["action"].(string); action == "set" {
		return errorResult(r.GetName(),
			"Configuration changes are not allowed in read-only mode", 0), nil
	}
	return r.tool.Execute(ctx, args)
}
