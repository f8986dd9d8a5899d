package budget

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/maestro-cli/maestro/pkg/skill"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens counts tokens with the cl100k_base encoding. When the encoding
// cannot be loaded (offline without a cached BPE file) it falls back to the
// usual four-characters-per-token approximation.
func CountTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})

	if encoding != nil {
		return len(encoding.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

const (
	// promptOverheadTokens covers the system message and per-stage context
	// framing that is not part of the authored prompt.
	promptOverheadTokens = 400

	// defaultMaxOutputTokens bounds a stage's output estimate when neither
	// the stage nor the agent defaults specify max_tokens.
	defaultMaxOutputTokens = 4096

	// subPipelineFlatEstimateUSD is the per-stage placeholder for a nested
	// skill whose own stages are estimated when it actually runs.
	subPipelineFlatEstimateUSD = 0.50
)

// EstimateStageCost returns the expected upper-bound cost of one model
// stage: substituted prompt tokens plus the output token ceiling.
func EstimateStageCost(model, prompt string, maxOutputTokens int) float64 {
	if maxOutputTokens <= 0 {
		maxOutputTokens = defaultMaxOutputTokens
	}
	inputTokens := CountTokens(prompt) + promptOverheadTokens
	return Cost(model, inputTokens, maxOutputTokens)
}

// EstimateSkillCost estimates a whole skill run before it starts. Stage
// prompts are substituted against the resolved inputs so input size is
// reflected; dependency outputs are unknowable up front and covered by the
// overhead constant.
func EstimateSkillCost(sk *skill.Skill, inputs map[string]any, resolveModel func(*skill.Stage) string) float64 {
	total := 0.0
	for i := range sk.Stages {
		stage := &sk.Stages[i]
		if stage.IsSubPipeline() {
			total += subPipelineFlatEstimateUSD
			continue
		}
		prompt := skill.SubstituteVariables(stage.Prompt, inputs)
		total += EstimateStageCost(resolveModel(stage), prompt, stage.MaxTokens)
	}
	return total
}
