// Package llms defines the opaque model surface the pipeline engine drives:
// message and tool-call types, the ModelCaller interface, and model id
// resolution against the configured providers. Concrete SDK bindings live
// with the caller; the engine only ever sees this interface.
package llms

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCallID ties a RoleTool message back to the assistant call it
	// answers.
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []*ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition is the provider-facing description of one callable tool.
// Parameters is a JSON-Schema object map.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage is the token accounting reported by a provider for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// Request is one model invocation.
type Request struct {
	Model       string
	System      string
	Messages    []*Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature *float64
}

// Result is the settled outcome of a non-streaming call.
type Result struct {
	Text      string
	ToolCalls []*ToolCall
	Usage     Usage
}

type StreamChunkType string

const (
	ChunkTypeText  StreamChunkType = "text"
	ChunkTypeDone  StreamChunkType = "done"
	ChunkTypeError StreamChunkType = "error"
)

// StreamChunk is one increment of a streaming response. The terminal chunk
// is ChunkTypeDone carrying the final usage, or ChunkTypeError.
type StreamChunk struct {
	Type  StreamChunkType
	Text  string
	Usage Usage
	Error error
}

// ModelCaller is the only contract the engine has with a language model.
type ModelCaller interface {
	Generate(ctx context.Context, req *Request) (*Result, error)

	// GenerateStreaming returns a channel that yields incremental chunks
	// and closes after a terminal chunk.
	GenerateStreaming(ctx context.Context, req *Request) (<-chan StreamChunk, error)
}
