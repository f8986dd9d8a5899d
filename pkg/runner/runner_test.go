package runner

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-cli/maestro/pkg/config"
	"github.com/maestro-cli/maestro/pkg/llms"
	"github.com/maestro-cli/maestro/pkg/pipeline"
	"github.com/maestro-cli/maestro/pkg/schema"
	"github.com/maestro-cli/maestro/pkg/skill"
	"github.com/maestro-cli/maestro/pkg/tools"
)

type stubCaller struct{}

func (stubCaller) Generate(ctx context.Context, req *llms.Request) (*llms.Result, error) {
	return &llms.Result{Text: "Hello from stage", Usage: llms.Usage{InputTokens: 100, OutputTokens: 10}}, nil
}

func (stubCaller) GenerateStreaming(ctx context.Context, req *llms.Request) (<-chan llms.StreamChunk, error) {
	ch := make(chan llms.StreamChunk, 2)
	ch <- llms.StreamChunk{Type: llms.ChunkTypeText, Text: "Hello from stage"}
	ch <- llms.StreamChunk{Type: llms.ChunkTypeDone, Usage: llms.Usage{InputTokens: 100, OutputTokens: 10}}
	close(ch)
	return ch, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []pipeline.Event
}

func (l *eventLog) record(ev pipeline.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func newTestRunner(t *testing.T, session config.SessionConfig) (*Runner, *eventLog) {
	t.Helper()
	t.Setenv("RUNNER_TEST_KEY", "sk-test")

	cfg := &config.Config{
		Providers: llms.Providers{
			"anthropic": {DefaultModel: "claude-sonnet-4-20250514", APIKeyEnv: "RUNNER_TEST_KEY"},
		},
		Session: session,
	}
	cfg.SetDefaults()

	reg := llms.NewRegistry()
	require.NoError(t, reg.RegisterCaller("anthropic", stubCaller{}))

	log := &eventLog{}
	return &Runner{
		Config:  cfg,
		Callers: reg,
		Events:  log.record,
	}, log
}

// expensiveSkill has a large output ceiling so its estimate clears both
// the approval threshold and a small session budget.
func expensiveSkill() *skill.Skill {
	return &skill.Skill{
		Name: "deep-dive",
		Stages: []skill.Stage{
			{Name: "gather", Prompt: "Research {ticker} thoroughly", MaxTokens: 200_000},
		},
		Output: skill.Output{Primary: "gather"},
	}
}

func TestRun_SessionBudgetRefusal(t *testing.T) {
	r, log := newTestRunner(t, config.SessionConfig{BudgetUSD: 10})
	r.RecordSessionSpend(8)

	outcome, err := r.Run(context.Background(), &Request{
		Skill:  expensiveSkill(),
		Inputs: map[string]any{"ticker": "NVDA"},
	})
	require.NoError(t, err)

	assert.Contains(t, outcome.Error, "exceeds remaining session budget")
	assert.Contains(t, outcome.Error, "Session spent: $8.0000 of $10.00")
	assert.Nil(t, outcome.Result)
	assert.Equal(t, 0, log.len(), "engine must not start")
	assert.InDelta(t, 8.0, r.SessionSpentUSD(), 1e-9, "refused runs record no spend")
}

func TestRun_SessionBudgetAllowsAffordableRun(t *testing.T) {
	r, _ := newTestRunner(t, config.SessionConfig{BudgetUSD: 10})
	r.RecordSessionSpend(8)

	sk := &skill.Skill{
		Name:   "cheap",
		Stages: []skill.Stage{{Name: "gather", Prompt: "one line", MaxTokens: 100}},
		Output: skill.Output{Primary: "gather"},
	}

	outcome, err := r.Run(context.Background(), &Request{Skill: sk})
	require.NoError(t, err)
	assert.Empty(t, outcome.Error)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, 1, outcome.Result.StagesCompleted)
	assert.Greater(t, r.SessionSpentUSD(), 8.0, "run spend accrues on the session")
}

func TestRun_ApprovalDeclined(t *testing.T) {
	r, log := newTestRunner(t, config.SessionConfig{ApprovalThresholdUSD: 1.00})
	var askedSkill string
	r.OnApprovalRequired = func(skillName string, estimateUSD float64) bool {
		askedSkill = skillName
		return false
	}

	outcome, err := r.Run(context.Background(), &Request{
		Skill:  expensiveSkill(),
		Inputs: map[string]any{"ticker": "NVDA"},
	})
	require.NoError(t, err)

	assert.True(t, outcome.Cancelled)
	assert.Equal(t, "User declined", outcome.Reason)
	assert.Nil(t, outcome.Result)
	assert.Equal(t, "deep-dive", askedSkill)
	assert.Equal(t, 0, log.len(), "no stage events on decline")
}

func TestRun_ApprovalGranted(t *testing.T) {
	r, log := newTestRunner(t, config.SessionConfig{ApprovalThresholdUSD: 1.00})
	r.OnApprovalRequired = func(skillName string, estimateUSD float64) bool {
		assert.Greater(t, estimateUSD, 1.00)
		return true
	}

	outcome, err := r.Run(context.Background(), &Request{
		Skill:  expensiveSkill(),
		Inputs: map[string]any{"ticker": "NVDA"},
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, "Hello from stage", outcome.Result.PrimaryOutput)
	assert.Greater(t, log.len(), 0)
}

func TestRun_BelowThresholdSkipsApproval(t *testing.T) {
	r, _ := newTestRunner(t, config.SessionConfig{ApprovalThresholdUSD: 1.00})
	r.OnApprovalRequired = func(string, float64) bool {
		t.Fatal("approval must not be requested below the threshold")
		return false
	}

	sk := &skill.Skill{
		Name:   "cheap",
		Stages: []skill.Stage{{Name: "gather", Prompt: "one line", MaxTokens: 100}},
		Output: skill.Output{Primary: "gather"},
	}
	outcome, err := r.Run(context.Background(), &Request{Skill: sk})
	require.NoError(t, err)
	assert.NotNil(t, outcome.Result)
}

func TestRun_InputDefaultsAndRequired(t *testing.T) {
	sk := &skill.Skill{
		Name: "quoted",
		Inputs: []skill.Input{
			{Name: "ticker", Type: skill.InputTypeString, Required: true},
			{Name: "period", Type: skill.InputTypeString, Default: "1y"},
		},
		Stages: []skill.Stage{{Name: "gather", Prompt: "{ticker} over {period}"}},
		Output: skill.Output{Primary: "gather"},
	}

	resolved, err := resolveInputs(sk, map[string]any{"ticker": "NVDA", "extra": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ticker": "NVDA", "period": "1y", "extra": true}, resolved)

	_, err = resolveInputs(sk, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ticker")
}

type fixedTool struct {
	name    string
	content string
}

func (f *fixedTool) GetName() string           { return f.name }
func (f *fixedTool) GetDescription() string    { return "fixed" }
func (f *fixedTool) GetSchema() *schema.Schema { return &schema.Schema{Kind: schema.KindUnknown} }

func (f *fixedTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	return tools.ToolResult{Success: true, Content: f.content, ToolName: f.name}, nil
}

func TestGuardedCatalog_ReadOnly(t *testing.T) {
	r, _ := newTestRunner(t, config.SessionConfig{
		ReadOnly:             true,
		ReadOnlyAllowedTools: []string{"market/get_quote", "manage_config", "run_pipeline"},
	})
	r.Catalog = tools.ToolMap{
		"market/get_quote": &fixedTool{name: "market/get_quote", content: "$900"},
		"manage_config":    &fixedTool{name: "manage_config", content: "ok"},
		"run_pipeline":     &fixedTool{name: "run_pipeline", content: "ran"},
		"activate_skill":   &fixedTool{name: "activate_skill", content: "activated"},
		"fs/write":         &fixedTool{name: "fs/write", content: "written"},
	}

	catalog := r.GuardedCatalog()

	assert.Contains(t, catalog, "market/get_quote")
	assert.Contains(t, catalog, "manage_config")
	assert.NotContains(t, catalog, "run_pipeline", "control tools are excluded even when allow-listed")
	assert.NotContains(t, catalog, "activate_skill")
	assert.NotContains(t, catalog, "fs/write")

	// Reads still work; the mutating action is blocked.
	result, err := catalog["manage_config"].Execute(context.Background(), map[string]any{"action": "get"})
	require.NoError(t, err)
	assert.True(t, result.Success)

	result, err = catalog["manage_config"].Execute(context.Background(), map[string]any{"action": "set"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "read-only mode")
}

func TestGuardedCatalog_PermissionWrapping(t *testing.T) {
	r, _ := newTestRunner(t, config.SessionConfig{})
	r.Config.Permissions = tools.PermissionPolicy{"fs.*": tools.PermissionDeny}
	r.Catalog = tools.ToolMap{
		"fs/write":         &fixedTool{name: "fs/write", content: "written"},
		"market/get_quote": &fixedTool{name: "market/get_quote", content: "$900"},
	}

	catalog := r.GuardedCatalog()

	result, err := catalog["fs/write"].Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "denied by the permission policy")

	result, err = catalog["market/get_quote"].Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name    string
		outcome *Outcome
		want    int
	}{
		{"nil outcome", nil, 1},
		{"success", &Outcome{Result: &pipeline.Result{}}, 0},
		{"refusal", &Outcome{Error: "exceeds remaining session budget"}, 1},
		{"decline", &Outcome{Cancelled: true, Reason: "User declined"}, 2},
		{"partial", &Outcome{Result: &pipeline.Result{Partial: true}}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.outcome))
		})
	}
}
