package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/maestro-cli/maestro/pkg/schema"
)

const (
	toolCallTimeout = 30 * time.Second
	retryDelay      = 1 * time.Second
)

// ToolDescriptor is the declarative description a tool server advertises.
// InputSchema is a JSON-Schema object map.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// CallFunc performs the remote invocation and returns the concatenated
// text content.
type CallFunc func(ctx context.Context, args map[string]any) (string, error)

// Adapter wraps one remote tool behind the Tool interface: it validates
// arguments against the converted schema, merges injected parameters,
// enforces the call timeout with a single retry on transient failures, and
// annotates successful results with their source.
type Adapter struct {
	server      string
	name        string
	description string
	schema      *schema.Schema
	injected    map[string]any
	call        CallFunc
}

// NewAdapter builds an adapter for a server tool. Keys in injected are
// stripped from the exposed schema and merged into every outgoing call;
// the description gains a note naming them.
func NewAdapter(server string, desc ToolDescriptor, injected map[string]any, call CallFunc) *Adapter {
	converted := schema.Convert(desc.InputSchema, nil)

	description := desc.Description
	if len(injected) > 0 {
		keys := make([]string, 0, len(injected))
		for k := range injected {
			keys = append(keys, k)
			converted = converted.RemoveProperty(k)
		}
		sort.Strings(keys)
		description = strings.TrimSpace(description +
			fmt.Sprintf(" (auto-provided: %s)", strings.Join(keys, ", ")))
	}

	return &Adapter{
		server:      server,
		name:        desc.Name,
		description: description,
		schema:      converted,
		injected:    injected,
		call:        call,
	}
}

// GetName returns the qualified name, <server>/<tool>.
func (a *Adapter) GetName() string {
	return a.server + "/" + a.name
}

func (a *Adapter) GetDescription() string {
	return a.description
}

func (a *Adapter) GetSchema() *schema.Schema {
	return a.schema
}

func (a *Adapter) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	started := time.Now()

	if err := a.schema.Validate(args); err != nil {
		return errorResult(a.GetName(), fmt.Sprintf("invalid arguments: %v", err), time.Since(started)), nil
	}

	merged := make(map[string]any, len(args)+len(a.injected))
	for k, v := range args {
		merged[k] = v
	}
	for k, v := range a.injected {
		merged[k] = v
	}

	text, err := a.callWithRetry(ctx, merged)
	if err != nil {
		return errorResult(a.GetName(), err.Error(), time.Since(started)), nil
	}

	result := ToolResult{
		Success:    true,
		Content:    text,
		ToolName:   a.GetName(),
		Duration:   time.Since(started),
		Source:     fmt.Sprintf("mcp://%s/%s", a.server, a.name),
		AccessedAt: time.Now(),
	}

	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		result.Content = fmt.Sprintf("Tool '%s' executed successfully but returned no content.", a.GetName())
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		var structured any
		if err := json.Unmarshal([]byte(trimmed), &structured); err == nil {
			result.Structured = structured
		}
	}

	return result, nil
}

func (a *Adapter) callWithRetry(ctx context.Context, args map[string]any) (string, error) {
	text, err := a.callOnce(ctx, args)
	if err == nil || !isTransientError(err) || ctx.Err() != nil {
		return text, err
	}

	select {
	case <-time.After(retryDelay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return a.callOnce(ctx, args)
}

func (a *Adapter) callOnce(ctx context.Context, args map[string]any) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
	defer cancel()
	return a.call(callCtx, args)
}

var transientMarkers = []string{
	"timeout",
	"timed out",
	"connection reset",
	"server error",
	"500",
	"502",
	"503",
}

func isTransientError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
