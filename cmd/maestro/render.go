package main

import (
	"fmt"
	"io"

	"github.com/maestro-cli/maestro/pkg/pipeline"
)

// progressRenderer prints pipeline progress to the terminal. It is a
// pipeline event handler; the emitter serializes publishes so no extra
// locking is needed here.
type progressRenderer struct {
	out   io.Writer
	quiet bool
}

func (r *progressRenderer) handle(ev pipeline.Event) {
	if r.quiet {
		return
	}

	switch p := ev.Payload.(type) {
	case pipeline.StageStartEvent:
		fmt.Fprintf(r.out, "▶ %s (%s)\n", p.StageName, p.Model)
	case pipeline.StageCompleteEvent:
		fmt.Fprintf(r.out, "✅ %s  $%.4f  %d→%d tokens  %.1fs\n",
			p.StageName, p.CostUSD, p.InputTokens, p.OutputTokens,
			float64(p.DurationMs)/1000)
	case pipeline.StageErrorEvent:
		icon := "❌"
		if p.Fatal {
			icon = "🛑"
		}
		fmt.Fprintf(r.out, "%s %s: %s\n", icon, p.StageName, p.Error)
	case pipeline.StageToolStartEvent:
		fmt.Fprintf(r.out, "  🔧 %s → %s\n", p.StageName, p.ToolName)
	case pipeline.StageToolEndEvent:
		if !p.Success {
			fmt.Fprintf(r.out, "  ⚠️  %s failed: %s\n", p.ToolName, p.Error)
		}
	case pipeline.ToolUnavailableEvent:
		if p.Required {
			fmt.Fprintf(r.out, "❌ Required tool unavailable: %s\n", p.ToolName)
		} else {
			fmt.Fprintf(r.out, "⚠️  Tool unavailable, continuing without it: %s\n", p.ToolName)
		}
	case pipeline.VerificationCompleteEvent:
		s := p.Report.Summary
		fmt.Fprintf(r.out, "  🔎 %s: %d verified, %d disputed, %d unverified (confidence %.2f)\n",
			p.StageName, s.Verified, s.Disputed, s.Unverified, p.Report.OverallConfidence)
	}
}
