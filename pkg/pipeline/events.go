package pipeline

import (
	"sync"

	"github.com/maestro-cli/maestro/pkg/verify"
)

type EventName string

const (
	EventStageStart           EventName = "stage:start"
	EventStageStream          EventName = "stage:stream"
	EventStageToolStart       EventName = "stage:tool-start"
	EventStageToolEnd         EventName = "stage:tool-end"
	EventStageComplete        EventName = "stage:complete"
	EventStageError           EventName = "stage:error"
	EventPipelineComplete     EventName = "pipeline:complete"
	EventPipelineError        EventName = "pipeline:error"
	EventToolUnavailable      EventName = "tool:unavailable"
	EventVerificationComplete EventName = "verification:complete"
)

type Event struct {
	Name    EventName
	Payload any
}

type StageStartEvent struct {
	StageName string `json:"stage_name"`
	Model     string `json:"model,omitempty"`
	AgentType string `json:"agent_type,omitempty"`
}

type StageStreamEvent struct {
	StageName string `json:"stage_name"`
	Text      string `json:"text"`
}

type StageToolStartEvent struct {
	StageName string         `json:"stage_name"`
	CallID    string         `json:"call_id"`
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args,omitempty"`
}

type StageToolEndEvent struct {
	StageName  string `json:"stage_name"`
	CallID     string `json:"call_id"`
	ToolName   string `json:"tool_name"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

type StageCompleteEvent struct {
	StageName    string  `json:"stage_name"`
	Model        string  `json:"model,omitempty"`
	Content      string  `json:"content"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	DurationMs   int64   `json:"duration_ms"`
}

type StageErrorEvent struct {
	StageName string `json:"stage_name"`
	Error     string `json:"error"`
	Fatal     bool   `json:"fatal,omitempty"`
}

type ToolUnavailableEvent struct {
	ToolName string `json:"tool_name"`
	Required bool   `json:"required"`
}

type VerificationCompleteEvent struct {
	StageName string         `json:"stage_name"`
	Report    *verify.Report `json:"report"`
}

type PipelineErrorEvent struct {
	Error string `json:"error"`
}

type Handler func(Event)

// Emitter is a synchronous typed pub/sub surface. Handlers run in
// subscription order; publishes are serialized so a single stage's events
// never interleave with themselves.
type Emitter struct {
	mu        sync.RWMutex
	handlers  map[EventName][]Handler
	all       []Handler
	publishMu sync.Mutex
}

func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventName][]Handler)}
}

func (e *Emitter) Subscribe(name EventName, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = append(e.handlers[name], h)
}

// SubscribeAll receives every event; used for bubbling sub-pipeline
// events and for UI renderers.
func (e *Emitter) SubscribeAll(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, h)
}

func (e *Emitter) Emit(name EventName, payload any) {
	e.mu.RLock()
	named := append([]Handler(nil), e.handlers[name]...)
	all := append([]Handler(nil), e.all...)
	e.mu.RUnlock()

	e.publishMu.Lock()
	defer e.publishMu.Unlock()

	ev := Event{Name: name, Payload: payload}
	for _, h := range named {
		h(ev)
	}
	for _, h := range all {
		h(ev)
	}
}

// prefixStage rewrites the stage name inside a bubbled event payload to
// "<outer>/<inner>".
func prefixStage(outer string, ev Event) Event {
	prefix := func(name string) string { return outer + "/" + name }

	switch p := ev.Payload.(type) {
	case StageStartEvent:
		p.StageName = prefix(p.StageName)
		ev.Payload = p
	case StageStreamEvent:
		p.StageName = prefix(p.StageName)
		ev.Payload = p
	case StageToolStartEvent:
		p.StageName = prefix(p.StageName)
		ev.Payload = p
	case StageToolEndEvent:
		p.StageName = prefix(p.StageName)
		ev.Payload = p
	case StageCompleteEvent:
		p.StageName = prefix(p.StageName)
		ev.Payload = p
	case StageErrorEvent:
		p.StageName = prefix(p.StageName)
		ev.Payload = p
	case VerificationCompleteEvent:
		p.StageName = prefix(p.StageName)
		ev.Payload = p
	}
	return ev
}
