package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/maestro-cli/maestro/pkg/budget"
	"github.com/maestro-cli/maestro/pkg/config"
	"github.com/maestro-cli/maestro/pkg/llms"
	"github.com/maestro-cli/maestro/pkg/skill"
	"github.com/maestro-cli/maestro/pkg/tools"
)

// taskAgent executes exactly one model stage: prompt construction,
// streaming or tool-loop invocation, cost accounting, and per-stage event
// emission.
type taskAgent struct {
	stage        *skill.Stage
	model        string
	agentCfg     config.AgentConfig
	inputs       map[string]any
	priorOutputs map[string]string
	tracker      *budget.Tracker
	budgetLimit  float64
	caller       llms.ModelCaller
	tools        tools.ToolMap
	events       *Emitter
}

// stageOutcome is the settled result of one stage. Fatal errors abort the
// remaining levels; non-fatal ones only skip dependents.
type stageOutcome struct {
	err        error
	fatal      bool
	content    string
	usage      llms.Usage
	costUSD    float64
	durationMs int64
}

var roleDirectives = map[skill.AgentType]string{
	skill.AgentTypeResearch: "You are a meticulous research analyst. Ground every statement in the provided context and tool results.",
	skill.AgentTypeExplore:  "You are a fast exploratory analyst. Survey the provided material broadly and surface what matters.",
	skill.AgentTypeVerify:   "You are a verification analyst. Cross-check claims against the provided stage outputs and flag anything unsupported.",
	skill.AgentTypeDefault:  "You are an analysis agent executing one stage of a multi-stage pipeline.",
}

func (a *taskAgent) run(ctx context.Context) stageOutcome {
	started := time.Now()

	vars := make(map[string]any, len(a.inputs)+len(a.stage.InputFrom))
	for k, v := range a.inputs {
		vars[k] = v
	}
	for _, dep := range a.stage.InputFrom {
		if out, ok := a.priorOutputs[dep]; ok {
			vars[dep] = out
		}
	}
	prompt := skill.SubstituteVariables(a.stage.Prompt, vars)

	req := &llms.Request{
		Model:       a.model,
		System:      a.systemMessage(),
		MaxTokens:   a.maxOutputTokens(),
		Temperature: a.temperature(),
	}
	for _, dep := range a.stage.InputFrom {
		out, ok := a.priorOutputs[dep]
		if !ok || out == "" {
			continue
		}
		req.Messages = append(req.Messages, &llms.Message{
			Role:    llms.RoleUser,
			Content: fmt.Sprintf("--- Output from %q stage ---\n%s", dep, out),
		})
	}
	req.Messages = append(req.Messages, &llms.Message{Role: llms.RoleUser, Content: prompt})

	reservation := a.tracker.Reserve(budget.EstimateStageCost(a.model, prompt, req.MaxTokens))

	var content string
	var usage llms.Usage
	var err error
	if len(a.tools) == 0 {
		content, usage, err = a.runStreaming(ctx, req)
	} else {
		content, usage, err = a.runToolLoop(ctx, req)
	}

	cost := budget.Cost(a.model, usage.InputTokens, usage.OutputTokens)
	a.tracker.Finalize(reservation, cost)

	outcome := stageOutcome{
		content:    content,
		usage:      usage,
		costUSD:    cost,
		durationMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		outcome.err = err
		outcome.fatal = classifyFatal(ctx, err)
	}
	return outcome
}

func (a *taskAgent) systemMessage() string {
	system := roleDirectives[a.stage.ResolveAgentType()]
	if system == "" {
		system = roleDirectives[skill.AgentTypeDefault]
	}
	if a.stage.OutputFormat != "" {
		system += fmt.Sprintf(" Respond in %s format.", a.stage.OutputFormat)
	}
	return system
}

func (a *taskAgent) maxOutputTokens() int {
	if a.stage.MaxTokens > 0 {
		return a.stage.MaxTokens
	}
	return a.agentCfg.MaxTokens
}

func (a *taskAgent) temperature() *float64 {
	if a.stage.Temperature != nil {
		return a.stage.Temperature
	}
	return a.agentCfg.Temperature
}

func (a *taskAgent) runStreaming(ctx context.Context, req *llms.Request) (string, llms.Usage, error) {
	var usage llms.Usage

	ch, err := a.caller.GenerateStreaming(ctx, req)
	if err != nil {
		return "", usage, err
	}

	var sb strings.Builder
	for chunk := range ch {
		switch chunk.Type {
		case llms.ChunkTypeText:
			sb.WriteString(chunk.Text)
			a.events.Emit(EventStageStream, StageStreamEvent{StageName: a.stage.Name, Text: chunk.Text})
		case llms.ChunkTypeDone:
			usage = chunk.Usage
		case llms.ChunkTypeError:
			return sb.String(), usage, chunk.Error
		}
	}
	return sb.String(), usage, nil
}

func (a *taskAgent) runToolLoop(ctx context.Context, req *llms.Request) (string, llms.Usage, error) {
	var usage llms.Usage

	maxSteps := a.agentCfg.MaxToolSteps
	if maxSteps <= 0 {
		maxSteps = 8
	}
	req.Tools = toolDefinitions(a.tools)

	for step := 0; step < maxSteps; step++ {
		if err := a.tracker.CheckBudget(a.budgetLimit); err != nil {
			return "", usage, err
		}

		result, err := a.caller.Generate(ctx, req)
		if err != nil {
			return "", usage, err
		}
		usage = usage.Add(result.Usage)

		if len(result.ToolCalls) == 0 {
			return result.Text, usage, nil
		}

		req.Messages = append(req.Messages, &llms.Message{
			Role:      llms.RoleAssistant,
			Content:   result.Text,
			ToolCalls: result.ToolCalls,
		})
		for _, call := range result.ToolCalls {
			toolMsg, err := a.executeToolCall(ctx, call)
			if err != nil {
				return "", usage, err
			}
			req.Messages = append(req.Messages, toolMsg)
		}
	}
	return "", usage, fmt.Errorf("stage '%s' exceeded %d tool steps without a final answer", a.stage.Name, maxSteps)
}

// executeToolCall runs one model-requested tool and wraps its result as a
// tool message. Tool-level failures feed back to the model; transport
// failures propagate and fail the stage. Tool-end fires either way.
func (a *taskAgent) executeToolCall(ctx context.Context, call *llms.ToolCall) (*llms.Message, error) {
	callID := call.ID
	if callID == "" {
		callID = uuid.NewString()
	}
	started := time.Now()

	a.events.Emit(EventStageToolStart, StageToolStartEvent{
		StageName: a.stage.Name,
		CallID:    callID,
		ToolName:  call.Name,
		Args:      call.Arguments,
	})

	var result tools.ToolResult
	var execErr error
	if tool, ok := a.tools[call.Name]; ok {
		result, execErr = tool.Execute(ctx, call.Arguments)
	} else {
		result = tools.ToolResult{
			Success:  false,
			Error:    fmt.Sprintf("unknown tool '%s'", call.Name),
			ToolName: call.Name,
		}
	}

	end := StageToolEndEvent{
		StageName:  a.stage.Name,
		CallID:     callID,
		ToolName:   call.Name,
		Success:    execErr == nil && result.Success,
		DurationMs: time.Since(started).Milliseconds(),
	}
	if execErr != nil {
		end.Error = execErr.Error()
	} else if !result.Success {
		end.Error = result.Error
	}
	a.events.Emit(EventStageToolEnd, end)

	if execErr != nil {
		return nil, execErr
	}

	content := result.Content
	if !result.Success {
		content = fmt.Sprintf("Tool error: %s", result.Error)
	}
	return &llms.Message{Role: llms.RoleTool, ToolCallID: callID, Content: content}, nil
}

func toolDefinitions(catalog tools.ToolMap) []llms.ToolDefinition {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]llms.ToolDefinition, 0, len(names))
	for _, name := range names {
		tool := catalog[name]
		defs = append(defs, llms.ToolDefinition{
			Name:        name,
			Description: tool.GetDescription(),
			Parameters:  tool.GetSchema().ToMap(),
		})
	}
	return defs
}

// classifyFatal decides whether a stage error aborts the whole pipeline.
// Budget exhaustion and cancellation are fatal; ordinary model or tool
// failures only skip dependents.
func classifyFatal(ctx context.Context, err error) bool {
	var budgetErr *budget.BudgetExceededError
	if errors.As(err, &budgetErr) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "budget exceeded")
}
