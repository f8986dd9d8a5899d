// Package pipeline is the DAG execution engine: it schedules a skill's
// stages level by level, runs task agents under a bounded-concurrency
// semaphore, enforces the shared budget, and emits lifecycle events.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/maestro-cli/maestro/pkg/budget"
	"github.com/maestro-cli/maestro/pkg/config"
	"github.com/maestro-cli/maestro/pkg/llms"
	"github.com/maestro-cli/maestro/pkg/logger"
	"github.com/maestro-cli/maestro/pkg/observability"
	"github.com/maestro-cli/maestro/pkg/skill"
	"github.com/maestro-cli/maestro/pkg/tools"
	"github.com/maestro-cli/maestro/pkg/verify"
)

const defaultMaxConcurrency = 5

// Context carries everything one engine run needs. Nested sub-pipelines
// receive a copy with the child skill, substituted inputs, incremented
// depth, and the same shared tracker.
type Context struct {
	Skill         *skill.Skill
	Inputs        map[string]any
	ModelOverride string
	MaxBudgetUSD  float64

	Providers llms.Providers
	Callers   *llms.Registry

	ResolveTools    func(groupNames []string) tools.ToolMap
	IsToolAvailable func(name string) bool
	ToolsConfig     map[string]map[string]any

	MaxConcurrency int
	AgentConfig    map[string]config.AgentConfig

	LoadSkill skill.LoadFunc
	Tracker   *budget.Tracker
	Hooks     *HookManager

	depth int
}

// Result is the completion payload of a run, also emitted as
// pipeline:complete.
type Result struct {
	SkillName       string                    `json:"skill_name"`
	Outputs         map[string]string         `json:"outputs"`
	PrimaryOutput   string                    `json:"primary_output"`
	StagesCompleted int                       `json:"stages_completed"`
	Partial         bool                      `json:"partial,omitempty"`
	FailedStages    []string                  `json:"failed_stages,omitempty"`
	SkippedStages   []string                  `json:"skipped_stages,omitempty"`
	TotalCostUSD    float64                   `json:"total_cost_usd"`
	Usage           llms.Usage                `json:"usage"`
	DurationMs      int64                     `json:"duration_ms"`
	Verifications   map[string]*verify.Report `json:"verifications,omitempty"`
}

// Engine runs one skill. Events are observable through Events() before
// Run is called.
type Engine struct {
	pctx    *Context
	events  *Emitter
	tracker *budget.Tracker
}

func NewEngine(pctx *Context) *Engine {
	tracker := pctx.Tracker
	if tracker == nil {
		tracker = budget.NewTracker()
	}
	return &Engine{pctx: pctx, events: NewEmitter(), tracker: tracker}
}

func (e *Engine) Events() *Emitter {
	return e.events
}

// runState is the mutable bookkeeping shared by the per-stage goroutines.
type runState struct {
	mu            sync.Mutex
	outputs       map[string]string
	usage         llms.Usage
	completed     int
	failed        []string
	failedSet     map[string]bool
	skipped       []string
	skippedSet    map[string]bool
	verifications map[string]*verify.Report
}

func newRunState() *runState {
	return &runState{
		outputs:       make(map[string]string),
		failedSet:     make(map[string]bool),
		skippedSet:    make(map[string]bool),
		verifications: make(map[string]*verify.Report),
	}
}

func (s *runState) markFailed(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.failedSet[name] {
		s.failedSet[name] = true
		s.failed = append(s.failed, name)
	}
}

func (s *runState) markSkipped(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.skippedSet[name] {
		s.skippedSet[name] = true
		s.skipped = append(s.skipped, name)
	}
}

// blockedDep returns a dependency of the stage that failed or was
// skipped, or "" when the stage is runnable. Skipped dependencies
// disqualify downstream stages the same way failed ones do.
func (s *runState) blockedDep(stage *skill.Stage) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range stage.InputFrom {
		if s.failedSet[dep] || s.skippedSet[dep] {
			return dep
		}
	}
	return ""
}

func (s *runState) snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[string]string, len(s.outputs))
	for k, v := range s.outputs {
		snap[k] = v
	}
	return snap
}

// Run drives the full protocol: tool pre-flight, pre-pipeline hook,
// level-by-level execution, and the completion payload. After execution
// has begun, errors flow through the event stream and the Result rather
// than the error return.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	sk := e.pctx.Skill

	tracer := observability.GetTracer("pipeline")
	ctx, span := tracer.Start(ctx, observability.SpanPipelineRun)
	defer span.End()

	if err := e.preflightTools(sk); err != nil {
		e.events.Emit(EventPipelineError, PipelineErrorEvent{Error: err.Error()})
		return nil, err
	}

	if err := e.pctx.Hooks.RunBlocking(ctx, HookPrePipeline, sk.Name); err != nil {
		err = fmt.Errorf("pre-pipeline hook failed: %w", err)
		e.events.Emit(EventPipelineError, PipelineErrorEvent{Error: err.Error()})
		return nil, err
	}

	levels, err := sk.ComputeExecutionLevels()
	if err != nil {
		e.events.Emit(EventPipelineError, PipelineErrorEvent{Error: err.Error()})
		return nil, err
	}

	// The internal fatal controller combines with the caller's signal:
	// either one aborting stops all subsequent scheduling.
	runCtx, fatalCancel := context.WithCancel(ctx)
	defer fatalCancel()

	maxConc := e.pctx.MaxConcurrency
	if maxConc <= 0 {
		maxConc = defaultMaxConcurrency
	}
	sem := semaphore.NewWeighted(int64(maxConc))

	state := newRunState()

	for _, level := range levels {
		var wg sync.WaitGroup
		for _, stageName := range level {
			stage := sk.StageByName(stageName)

			if runCtx.Err() != nil {
				state.markSkipped(stage.Name)
				e.events.Emit(EventStageError, StageErrorEvent{
					StageName: stage.Name,
					Error:     "Skipped: pipeline aborted",
				})
				continue
			}

			if dep := state.blockedDep(stage); dep != "" {
				state.markSkipped(stage.Name)
				e.events.Emit(EventStageError, StageErrorEvent{
					StageName: stage.Name,
					Error:     "Skipped: dependency stage(s) failed",
				})
				continue
			}

			if err := e.tracker.CheckBudget(e.pctx.MaxBudgetUSD); err != nil {
				state.markFailed(stage.Name)
				e.events.Emit(EventStageError, StageErrorEvent{
					StageName: stage.Name,
					Error:     err.Error(),
					Fatal:     true,
				})
				fatalCancel()
				continue
			}

			agentType := stage.ResolveAgentType()
			agentCfg := e.agentFor(string(agentType))
			model := ""
			if !stage.IsSubPipeline() {
				model, _ = e.pctx.Providers.ResolveModel(
					e.pctx.ModelOverride, stage.Model, agentCfg.Model, string(agentType))
			}

			e.events.Emit(EventStageStart, StageStartEvent{
				StageName: stage.Name,
				Model:     model,
				AgentType: string(agentType),
			})

			if err := e.pctx.Hooks.RunBlocking(runCtx, HookPreStage, stage.Name); err != nil {
				state.markFailed(stage.Name)
				e.events.Emit(EventStageError, StageErrorEvent{
					StageName: stage.Name,
					Error:     fmt.Sprintf("pre-stage hook failed: %v", err),
				})
				continue
			}

			snapshot := state.snapshot()
			wg.Add(1)
			go func(stage *skill.Stage, model string, agentCfg config.AgentConfig, snapshot map[string]string) {
				defer wg.Done()

				if err := sem.Acquire(runCtx, 1); err != nil {
					state.markSkipped(stage.Name)
					e.events.Emit(EventStageError, StageErrorEvent{
						StageName: stage.Name,
						Error:     "Skipped: pipeline aborted",
					})
					return
				}
				outcome := e.executeStage(runCtx, stage, model, agentCfg, snapshot)
				sem.Release(1)

				e.settleStage(runCtx, stage, model, outcome, state, snapshot, fatalCancel)
			}(stage, model, agentCfg, snapshot)
		}
		wg.Wait()
	}

	result := &Result{
		SkillName:       sk.Name,
		Outputs:         state.snapshot(),
		StagesCompleted: state.completed,
		TotalCostUSD:    e.tracker.Spent(),
		Usage:           state.usage,
		DurationMs:      time.Since(started).Milliseconds(),
	}
	if sk.Output.Primary != "" {
		result.PrimaryOutput = result.Outputs[sk.Output.Primary]
	}
	if len(state.failed) > 0 || len(state.skipped) > 0 {
		result.Partial = true
		result.FailedStages = state.failed
		result.SkippedStages = state.skipped
	}
	if len(state.verifications) > 0 {
		result.Verifications = state.verifications
	}

	e.events.Emit(EventPipelineComplete, result)
	e.pctx.Hooks.FireAndForget(HookPostPipeline, result)
	return result, nil
}

func (e *Engine) preflightTools(sk *skill.Skill) error {
	available := func(name string) bool {
		return e.pctx.IsToolAvailable != nil && e.pctx.IsToolAvailable(name)
	}

	var missing []string
	for _, name := range sk.ToolsRequired {
		if !available(name) {
			e.events.Emit(EventToolUnavailable, ToolUnavailableEvent{ToolName: name, Required: true})
			missing = append(missing, name)
		}
	}
	for _, name := range sk.ToolsOptional {
		if !available(name) {
			e.events.Emit(EventToolUnavailable, ToolUnavailableEvent{ToolName: name, Required: false})
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tool(s) unavailable: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (e *Engine) agentFor(agentType string) config.AgentConfig {
	if cfg, ok := e.pctx.AgentConfig[agentType]; ok {
		return cfg
	}
	return e.pctx.AgentConfig["default"]
}

func (e *Engine) executeStage(ctx context.Context, stage *skill.Stage, model string, agentCfg config.AgentConfig, snapshot map[string]string) stageOutcome {
	if stage.IsSubPipeline() {
		return e.runSubPipeline(ctx, stage, snapshot)
	}

	caller, err := e.pctx.Callers.CallerFor(model)
	if err != nil {
		return stageOutcome{err: err}
	}

	agent := &taskAgent{
		stage:        stage,
		model:        model,
		agentCfg:     agentCfg,
		inputs:       e.pctx.Inputs,
		priorOutputs: snapshot,
		tracker:      e.tracker,
		budgetLimit:  e.pctx.MaxBudgetUSD,
		caller:       caller,
		tools:        e.resolveStageTools(stage),
		events:       e.events,
	}
	return agent.run(ctx)
}

func (e *Engine) resolveStageTools(stage *skill.Stage) tools.ToolMap {
	if len(stage.Tools) == 0 || e.pctx.ResolveTools == nil {
		return nil
	}
	return e.pctx.ResolveTools(stage.Tools)
}

func (e *Engine) settleStage(ctx context.Context, stage *skill.Stage, model string, outcome stageOutcome, state *runState, snapshot map[string]string, fatalCancel context.CancelFunc) {
	if outcome.err != nil {
		state.markFailed(stage.Name)
		e.events.Emit(EventStageError, StageErrorEvent{
			StageName: stage.Name,
			Error:     outcome.err.Error(),
			Fatal:     outcome.fatal,
		})
		if outcome.fatal {
			fatalCancel()
		}
		return
	}

	state.mu.Lock()
	state.outputs[stage.Name] = outcome.content
	state.completed++
	state.usage = state.usage.Add(outcome.usage)
	state.mu.Unlock()

	e.events.Emit(EventStageComplete, StageCompleteEvent{
		StageName:    stage.Name,
		Model:        model,
		Content:      outcome.content,
		InputTokens:  outcome.usage.InputTokens,
		OutputTokens: outcome.usage.OutputTokens,
		CostUSD:      outcome.costUSD,
		DurationMs:   outcome.durationMs,
	})

	if stage.ResolveAgentType() == skill.AgentTypeVerify {
		e.runVerification(ctx, stage, model, state, snapshot)
	}

	e.pctx.Hooks.FireAndForget(HookPostStage, stage.Name)
}

// runVerification extracts and links claims over the verify stage's
// predecessor outputs. Failures are swallowed: the pipeline proceeds
// without a report.
func (e *Engine) runVerification(ctx context.Context, stage *skill.Stage, model string, state *runState, snapshot map[string]string) {
	caller, err := e.pctx.Callers.CallerFor(model)
	if err != nil {
		return
	}

	var parts []string
	for _, dep := range stage.InputFrom {
		if out := snapshot[dep]; out != "" {
			parts = append(parts, out)
		}
	}
	analysisText := strings.Join(parts, "\n\n")
	if analysisText == "" {
		return
	}

	verifier := &verify.Verifier{Caller: caller, Model: model}
	report, err := verifier.Run(ctx, analysisText, snapshot)
	if err != nil {
		logger.GetLogger().Warn("Verification failed", "stage", stage.Name, "error", err)
		return
	}

	state.mu.Lock()
	state.verifications[stage.Name] = report
	state.mu.Unlock()

	e.events.Emit(EventVerificationComplete, VerificationCompleteEvent{
		StageName: stage.Name,
		Report:    report,
	})
}
