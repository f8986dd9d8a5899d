// Package observability exposes the tracer used around pipeline stages and
// tool executions. Without an installed trace provider all spans are no-ops.
package observability

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrSkillName       = "skill.name"
	AttrStageName       = "stage.name"
	AttrAgentType       = "stage.agent_type"
	AttrToolName        = "tool.name"
	AttrModel           = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrCostUSD         = "llm.cost_usd"

	SpanPipelineRun   = "pipeline.run"
	SpanStageRun      = "pipeline.stage"
	SpanToolExecution = "pipeline.tool_execution"
	SpanVerification  = "pipeline.verification"

	DefaultServiceName = "maestro"
)

func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
