// Package runner is the guardrail layer between a caller (CLI or agent
// tool surface) and the pipeline engine: session budget accounting,
// approval thresholds, read-only filtering, and permission wrapping all
// happen here, before the engine ever starts.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/maestro-cli/maestro/pkg/budget"
	"github.com/maestro-cli/maestro/pkg/config"
	"github.com/maestro-cli/maestro/pkg/llms"
	"github.com/maestro-cli/maestro/pkg/logger"
	"github.com/maestro-cli/maestro/pkg/pipeline"
	"github.com/maestro-cli/maestro/pkg/skill"
	"github.com/maestro-cli/maestro/pkg/tools"
)

// controlTools are the orchestration entry points exposed to an agent
// session. They are never available in read-only mode, regardless of the
// allow-list.
var controlTools = map[string]struct{}{
	"run_pipeline":   {},
	"activate_skill": {},
}

// Session accumulates spend across pipeline runs within one process.
type Session struct {
	mu       sync.Mutex
	spentUSD float64
}

func (s *Session) SpentUSD() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spentUSD
}

func (s *Session) Record(amountUSD float64) {
	if amountUSD <= 0 {
		return
	}
	s.mu.Lock()
	s.spentUSD += amountUSD
	s.mu.Unlock()
}

// Runner drives the engine for one configured session.
type Runner struct {
	Config    *config.Config
	Callers   *llms.Registry
	Catalog   tools.ToolMap
	LoadSkill skill.LoadFunc

	// OnApprovalRequired is consulted when a run's estimate passes the
	// approval threshold. Nil means non-interactive: runs are approved.
	OnApprovalRequired func(skillName string, estimateUSD float64) bool

	// OnPermissionRequired confirms individual confirm-level tool calls.
	OnPermissionRequired tools.OnPermissionRequired

	// Events, when set, receives every engine event.
	Events pipeline.Handler

	session Session
}

func (r *Runner) SessionSpentUSD() float64 {
	return r.session.SpentUSD()
}

// RecordSessionSpend adds prior spend to the session ledger, e.g. when
// resuming a session whose spend was persisted by the caller.
func (r *Runner) RecordSessionSpend(amountUSD float64) {
	r.session.Record(amountUSD)
}

// Request describes one pipeline run.
type Request struct {
	Skill          *skill.Skill
	Inputs         map[string]any
	ModelOverride  string
	MaxBudgetUSD   float64
	MaxConcurrency int
}

// Outcome is the structured, non-exceptional result of a run request.
// Budget refusals and user declines land here rather than in the error
// return; Run only errors on load and configuration problems.
type Outcome struct {
	Cancelled bool             `json:"cancelled,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Error     string           `json:"error,omitempty"`
	Result    *pipeline.Result `json:"result,omitempty"`
}

// Run applies the session guardrails and, when they pass, executes the
// skill.
func (r *Runner) Run(ctx context.Context, req *Request) (*Outcome, error) {
	sk := req.Skill
	if sk == nil {
		return nil, fmt.Errorf("no skill to run")
	}

	inputs, err := resolveInputs(sk, req.Inputs)
	if err != nil {
		return nil, err
	}

	estimate := r.estimateCost(sk, inputs, req.ModelOverride)

	if refusal := r.checkSessionBudget(estimate); refusal != "" {
		logger.GetLogger().Info("Run refused by session budget",
			"skill", sk.Name, "estimate_usd", estimate)
		return &Outcome{Error: refusal}, nil
	}

	threshold := r.Config.Session.ApprovalThresholdUSD
	if threshold > 0 && estimate > threshold && r.OnApprovalRequired != nil {
		if !r.OnApprovalRequired(sk.Name, estimate) {
			return &Outcome{Cancelled: true, Reason: "User declined"}, nil
		}
	}

	toolReg := r.buildToolRegistry()

	maxBudget := req.MaxBudgetUSD
	if maxBudget == 0 {
		maxBudget = r.Config.Session.MaxBudgetUSD
	}
	maxConc := req.MaxConcurrency
	if maxConc == 0 {
		maxConc = r.Config.Session.MaxConcurrency
	}

	agentCfg := make(map[string]config.AgentConfig, len(r.Config.Agents))
	for name, cfg := range r.Config.Agents {
		agentCfg[name] = cfg
	}

	engine := pipeline.NewEngine(&pipeline.Context{
		Skill:           sk,
		Inputs:          inputs,
		ModelOverride:   req.ModelOverride,
		MaxBudgetUSD:    maxBudget,
		Providers:       r.Config.Providers,
		Callers:         r.Callers,
		ResolveTools:    toolReg.ResolveGroups,
		IsToolAvailable: toolReg.IsAvailable,
		MaxConcurrency:  maxConc,
		AgentConfig:     agentCfg,
		LoadSkill:       r.LoadSkill,
	})
	if r.Events != nil {
		engine.Events().SubscribeAll(r.Events)
	}

	result, err := engine.Run(ctx)
	if err != nil {
		return nil, err
	}

	r.session.Record(result.TotalCostUSD)
	return &Outcome{Result: result}, nil
}

// checkSessionBudget refuses a run whose estimate does not fit in the
// remaining session budget. Returns the refusal message, or "".
func (r *Runner) checkSessionBudget(estimateUSD float64) string {
	budgetUSD := r.Config.Session.BudgetUSD
	if budgetUSD <= 0 {
		return ""
	}
	spent := r.session.SpentUSD()
	if spent+estimateUSD <= budgetUSD {
		return ""
	}
	return fmt.Sprintf(
		"Estimated cost $%.4f exceeds remaining session budget. Session spent: $%.4f of $%.2f",
		estimateUSD, spent, budgetUSD)
}

func (r *Runner) estimateCost(sk *skill.Skill, inputs map[string]any, modelOverride string) float64 {
	return budget.EstimateSkillCost(sk, inputs, func(stage *skill.Stage) string {
		agentType := string(stage.ResolveAgentType())
		agent := r.Config.AgentFor(agentType)
		resolved, _ := r.Config.Providers.ResolveModel(modelOverride, stage.Model, agent.Model, agentType)
		return resolved
	})
}

// buildToolRegistry assembles the effective catalog for this run:
// read-only filtering first, then permission wrapping, then group
// definitions from the config.
func (r *Runner) buildToolRegistry() *tools.ToolRegistry {
	catalog := r.GuardedCatalog()

	reg := tools.NewToolRegistry()
	for _, tool := range catalog {
		if err := reg.RegisterTool(tool); err != nil {
			logger.GetLogger().Warn("Failed to register tool", "tool", tool.GetName(), "error", err)
		}
	}
	for name, members := range r.Config.ToolGroups {
		reg.DefineGroup(name, members)
	}
	return reg
}

// GuardedCatalog returns the tool catalog after session-level guardrails.
func (r *Runner) GuardedCatalog() tools.ToolMap {
	catalog := r.Catalog

	if r.Config.Session.ReadOnly {
		base := make(tools.ToolMap, len(catalog))
		for name, tool := range catalog {
			if _, control := controlTools[name]; control {
				continue
			}
			base[name] = tool
		}
		catalog = tools.FilterReadOnly(base, r.Config.Session.ReadOnlyAllowedTools)
	}

	return tools.ApplyPolicy(catalog, r.Config.Permissions, r.OnPermissionRequired)
}

// resolveInputs merges provided values over declared defaults and rejects
// missing required inputs. Undeclared extras pass through for prompt
// substitution.
func resolveInputs(sk *skill.Skill, provided map[string]any) (map[string]any, error) {
	resolved := make(map[string]any, len(sk.Inputs)+len(provided))
	for _, input := range sk.Inputs {
		if value, ok := provided[input.Name]; ok {
			resolved[input.Name] = value
			continue
		}
		if input.Default != nil {
			resolved[input.Name] = input.Default
			continue
		}
		if input.Required {
			return nil, fmt.Errorf("missing required input '%s' for skill '%s'", input.Name, sk.Name)
		}
	}
	for name, value := range provided {
		if _, ok := resolved[name]; !ok {
			resolved[name] = value
		}
	}
	return resolved, nil
}

// ExitCode maps an outcome to a process exit code: 0 full success, 1 for
// errors and refusals, 2 for a user decline, 3 for partial completion.
func ExitCode(outcome *Outcome) int {
	switch {
	case outcome == nil:
		return 1
	case outcome.Cancelled:
		return 2
	case outcome.Error != "":
		return 1
	case outcome.Result != nil && outcome.Result.Partial:
		return 3
	default:
		return 0
	}
}
