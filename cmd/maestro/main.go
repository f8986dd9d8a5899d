// Command maestro runs declarative analysis skills as multi-stage LLM
// pipelines.
//
// Usage:
//
//	maestro run deep-dive --input ticker=NVDA
//	maestro validate skills/deep-dive.yaml
//	maestro list
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Run      RunCmd      `cmd:"" help:"Run a skill pipeline."`
	Validate ValidateCmd `cmd:"" help:"Validate skill files."`
	List     ListCmd     `cmd:"" help:"List available skills."`
	Schema   SchemaCmd   `cmd:"" help:"Generate JSON Schema for the skill format."`

	Config    string `short:"c" help:"Path to config file." default:"maestro.yaml" type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("maestro version %s\n", version)
	return nil
}

// exitError carries a specific process exit code out of a subcommand.
type exitError struct {
	code    int
	message string
}

func (e *exitError) Error() string {
	return e.message
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("maestro"),
		kong.Description("maestro - declarative multi-stage analysis pipelines"),
		kong.UsageOnError(),
	)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	err = ctx.Run(&cli)

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.message != "" {
			fmt.Fprintln(os.Stderr, exitErr.message)
		}
		if cleanup != nil {
			cleanup()
		}
		os.Exit(exitErr.code)
	}

	if cleanup != nil {
		defer cleanup()
	}
	ctx.FatalIfErrorf(err)
}
