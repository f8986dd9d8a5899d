package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/maestro-cli/maestro/pkg/skill"
)

// MaxSubPipelineDepth bounds skill nesting. The root engine runs at depth
// zero, so a chain of five sub-pipelines succeeds and the sixth fails.
const MaxSubPipelineDepth = 5

// runSubPipeline executes a stage whose body is another skill. The child
// engine shares the parent's cost tracker and receives the combined abort
// signal; its events bubble up with stage names prefixed
// "<outer>/<inner>". Usage is reported as zero at this granularity since
// costs already accrued on the shared tracker.
func (e *Engine) runSubPipeline(ctx context.Context, stage *skill.Stage, snapshot map[string]string) stageOutcome {
	started := time.Now()

	if e.pctx.depth >= MaxSubPipelineDepth {
		return stageOutcome{
			err: fmt.Errorf("stage '%s': sub-pipeline depth limit (%d) exceeded",
				stage.Name, MaxSubPipelineDepth),
			fatal: true,
		}
	}
	if e.pctx.LoadSkill == nil {
		return stageOutcome{
			err: fmt.Errorf("stage '%s' references sub-pipeline '%s' but no skill loader is configured",
				stage.Name, stage.SubPipeline),
		}
	}

	child, ok := e.pctx.LoadSkill(stage.SubPipeline)
	if !ok {
		return stageOutcome{
			err: fmt.Errorf("sub-pipeline skill '%s' not found", stage.SubPipeline),
		}
	}

	vars := make(map[string]any, len(e.pctx.Inputs)+len(snapshot))
	for k, v := range e.pctx.Inputs {
		vars[k] = v
	}
	for name, out := range snapshot {
		vars[name] = out
	}

	subInputs := make(map[string]any)
	for _, input := range child.Inputs {
		if input.Default != nil {
			subInputs[input.Name] = input.Default
		}
	}
	for name, template := range stage.SubInputs {
		subInputs[name] = skill.SubstituteVariables(template, vars)
	}

	childCtx := *e.pctx
	childCtx.Skill = child
	childCtx.Inputs = subInputs
	childCtx.Tracker = e.tracker
	childCtx.depth = e.pctx.depth + 1

	childEngine := NewEngine(&childCtx)

	var errMu sync.Mutex
	var childErrors []string
	childFatal := false
	childEngine.Events().SubscribeAll(func(ev Event) {
		if p, ok := ev.Payload.(StageErrorEvent); ok {
			errMu.Lock()
			childErrors = append(childErrors, p.Error)
			childFatal = childFatal || p.Fatal
			errMu.Unlock()
		}
		// Pipeline-scoped events stay with their own engine; only
		// stage-scoped events bubble.
		if ev.Name == EventPipelineComplete || ev.Name == EventPipelineError {
			return
		}
		bubbled := prefixStage(stage.Name, ev)
		e.events.Emit(bubbled.Name, bubbled.Payload)
	})

	result, err := childEngine.Run(ctx)
	if err != nil {
		return stageOutcome{
			err:        fmt.Errorf("sub-pipeline '%s' failed: %w", stage.SubPipeline, err),
			fatal:      classifyFatal(ctx, err),
			durationMs: time.Since(started).Milliseconds(),
		}
	}

	if result.Partial {
		errMu.Lock()
		detail := strings.Join(childErrors, "; ")
		fatal := childFatal
		errMu.Unlock()
		if detail == "" {
			detail = fmt.Sprintf("failed stages: %s", strings.Join(result.FailedStages, ", "))
		}
		return stageOutcome{
			err:        fmt.Errorf("sub-pipeline '%s' failed: %s", stage.SubPipeline, detail),
			fatal:      fatal,
			durationMs: time.Since(started).Milliseconds(),
		}
	}

	return stageOutcome{
		content:    result.PrimaryOutput,
		durationMs: time.Since(started).Milliseconds(),
	}
}
