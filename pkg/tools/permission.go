package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/maestro-cli/maestro/pkg/schema"
)

type PermissionLevel string

const (
	PermissionAuto    PermissionLevel = "auto"
	PermissionConfirm PermissionLevel = "confirm"
	PermissionDeny    PermissionLevel = "deny"
)

// PermissionPolicy maps tool names, or globs of the form "prefix.*", to a
// permission level.
type PermissionPolicy map[string]PermissionLevel

// OnPermissionRequired asks the user to approve one tool call. Returning
// false denies it.
type OnPermissionRequired func(toolName string, args map[string]any) bool

// ResolvePermission determines the effective level for a tool. An exact
// policy entry always wins. Otherwise glob entries "prefix.*" are scanned
// in sorted order; a glob matches iff the tool name continues past the
// prefix with "/" or "_". No match means auto.
func ResolvePermission(toolName string, policy PermissionPolicy) PermissionLevel {
	if level, ok := policy[toolName]; ok {
		return level
	}

	globs := make([]string, 0)
	for key := range policy {
		if strings.HasSuffix(key, ".*") {
			globs = append(globs, key)
		}
	}
	sort.Strings(globs)

	for _, key := range globs {
		prefix := strings.TrimSuffix(key, ".*")
		if strings.HasPrefix(toolName, prefix+"/") || strings.HasPrefix(toolName, prefix+"_") {
			return policy[key]
		}
	}
	return PermissionAuto
}

// ApplyPolicy wraps every tool in the catalog with its effective
// permission level. Denied tools fail immediately with a readable reason;
// confirm-level tools ask the callback first. Auto is the identity.
func ApplyPolicy(catalog ToolMap, policy PermissionPolicy, onRequired OnPermissionRequired) ToolMap {
	wrapped := make(ToolMap, len(catalog))
	for name, tool := range catalog {
		switch ResolvePermission(name, policy) {
		case PermissionDeny:
			wrapped[name] = &deniedTool{tool: tool}
		case PermissionConfirm:
			wrapped[name] = &confirmTool{tool: tool, onRequired: onRequired}
		default:
			wrapped[name] = tool
		}
	}
	return wrapped
}

type deniedTool struct {
	tool Tool
}

func (d *deniedTool) GetName() string           { return d.tool.GetName() }
func (d *deniedTool) GetDescription() string    { return d.tool.GetDescription() }
func (d *deniedTool) GetSchema() *schema.Schema { return d.tool.GetSchema() }

func (d *deniedTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	return errorResult(d.GetName(),
		fmt.Sprintf("Tool '%s' is denied by the permission policy", d.GetName()), 0), nil
}

type confirmTool struct {
	tool       Tool
	onRequired OnPermissionRequired
}

func (c *confirmTool) GetName() string           { return c.tool.GetName() }
func (c *confirmTool) GetDescription() string    { return c.tool.GetDescription() }
func (c *confirmTool) GetSchema() *schema.Schema { return c.tool.GetSchema() }

func (c *confirmTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	if c.onRequired == nil || !c.onRequired(c.GetName(), args) {
		return errorResult(c.GetName(),
			fmt.Sprintf("Tool '%s' call was not approved by the user", c.GetName()), 0), nil
	}
	return c.tool.Execute(ctx, args)
}
