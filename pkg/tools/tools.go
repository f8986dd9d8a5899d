// Package tools defines the tool surface task agents call into: the Tool
// interface, the adapter that wraps remote MCP tools with validation,
// timeout and retry, the grouped registry, and the permission gate.
package tools

import (
	"context"
	"time"

	"github.com/maestro-cli/maestro/pkg/schema"
)

// ToolResult is the settled outcome of one tool call. Success with empty
// Content never happens; the adapter substitutes a placeholder message.
type ToolResult struct {
	Success    bool           `json:"success"`
	Content    string         `json:"content,omitempty"`
	Structured any            `json:"structured,omitempty"`
	Error      string         `json:"error,omitempty"`
	ToolName   string         `json:"tool_name"`
	Duration   time.Duration  `json:"duration,omitempty"`
	Source     string         `json:"source,omitempty"`
	AccessedAt time.Time      `json:"accessed_at,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type Tool interface {
	GetName() string

	GetDescription() string

	// GetSchema returns the parameter schema exposed to the model, with
	// injected parameters already stripped.
	GetSchema() *schema.Schema

	Execute(ctx context.Context, args map[string]any) (ToolResult, error)
}

// ToolMap is a resolved catalog keyed by qualified tool name.
type ToolMap map[string]Tool

func errorResult(toolName, message string, duration time.Duration) ToolResult {
	return ToolResult{
		Success:  false,
		Error:    message,
		ToolName: toolName,
		Duration: duration,
	}
}
