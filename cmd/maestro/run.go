package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/maestro-cli/maestro/pkg/config"
	"github.com/maestro-cli/maestro/pkg/llms"
	"github.com/maestro-cli/maestro/pkg/mcp"
	"github.com/maestro-cli/maestro/pkg/runner"
	"github.com/maestro-cli/maestro/pkg/skill"
)

// RunCmd runs a skill pipeline.
type RunCmd struct {
	Skill       string            `arg:"" help:"Skill name or path to a skill file."`
	Input       map[string]string `short:"i" help:"Skill inputs as name=value pairs." mapsep:","`
	Model       string            `help:"Override the model for every stage."`
	Budget      float64           `help:"Pipeline budget ceiling in USD (0 = config default)."`
	Concurrency int               `help:"Maximum concurrent stages (0 = config default)."`
	Yes         bool              `short:"y" help:"Approve estimates above the threshold without prompting."`
	Quiet       bool              `short:"q" help:"Suppress progress output; print only the primary output."`
	JSON        bool              `name:"json" help:"Print the full run result as JSON."`
}

func (c *RunCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Aborting...")
		cancel()
	}()

	cfg, err := config.LoadFile(cli.Config)
	if err != nil {
		return err
	}

	library, err := newSkillLibrary(cfg.Skills)
	if err != nil {
		return err
	}
	sk, err := library.Resolve(c.Skill)
	if err != nil {
		return err
	}
	if err := skill.ValidateSubPipelineRefs(sk, library.Load); err != nil {
		return err
	}

	callers, err := llms.NewRegistryFromProviders(cfg.Providers)
	if err != nil {
		return err
	}

	manager := mcp.NewManager()
	defer manager.Disconnect()
	manager.Initialize(ctx, cfg.ToolServers, func(server string, err error) {
		slog.Warn("Tool server connection failed", "server", server, "error", err)
	})

	render := &progressRenderer{out: os.Stderr, quiet: c.Quiet || c.JSON}

	r := &runner.Runner{
		Config:               cfg,
		Callers:              callers,
		Catalog:              manager.Catalog(sk.ToolsConfig),
		LoadSkill:            library.Load,
		OnApprovalRequired:   c.approvalPrompt(),
		OnPermissionRequired: permissionPrompt,
		Events:               render.handle,
	}

	outcome, err := r.Run(ctx, &runner.Request{
		Skill:          sk,
		Inputs:         coerceInputs(sk, c.Input),
		ModelOverride:  c.Model,
		MaxBudgetUSD:   c.Budget,
		MaxConcurrency: c.Concurrency,
	})
	if err != nil {
		return err
	}

	return c.report(outcome)
}

func (c *RunCmd) report(outcome *runner.Outcome) error {
	if c.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(outcome); err != nil {
			return err
		}
		if code := runner.ExitCode(outcome); code != 0 {
			return &exitError{code: code}
		}
		return nil
	}

	switch {
	case outcome.Cancelled:
		return &exitError{code: runner.ExitCode(outcome), message: "Run cancelled: " + outcome.Reason}
	case outcome.Error != "":
		return &exitError{code: runner.ExitCode(outcome), message: outcome.Error}
	}

	result := outcome.Result
	if result.PrimaryOutput != "" {
		fmt.Println(result.PrimaryOutput)
	}

	if !c.Quiet {
		fmt.Fprintf(os.Stderr, "\n%d stage(s) completed, $%.4f spent, %.1fs\n",
			result.StagesCompleted, result.TotalCostUSD, float64(result.DurationMs)/1000)
		if result.Partial {
			fmt.Fprintf(os.Stderr, "Failed: %s\n", strings.Join(result.FailedStages, ", "))
			if len(result.SkippedStages) > 0 {
				fmt.Fprintf(os.Stderr, "Skipped: %s\n", strings.Join(result.SkippedStages, ", "))
			}
		}
	}

	if code := runner.ExitCode(outcome); code != 0 {
		return &exitError{code: code}
	}
	return nil
}

// approvalPrompt asks on the terminal unless --yes was given.
func (c *RunCmd) approvalPrompt() func(skillName string, estimateUSD float64) bool {
	if c.Yes {
		return func(string, float64) bool { return true }
	}
	return func(skillName string, estimateUSD float64) bool {
		fmt.Fprintf(os.Stderr, "Skill '%s' is estimated at $%.2f, above the approval threshold. Continue? [y/N] ",
			skillName, estimateUSD)
		return readYes()
	}
}

func permissionPrompt(toolName string, args map[string]any) bool {
	fmt.Fprintf(os.Stderr, "Allow tool call '%s'? [y/N] ", toolName)
	return readYes()
}

func readYes() bool {
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
