package main

import (
	"fmt"

	"github.com/maestro-cli/maestro/pkg/config"
	"github.com/maestro-cli/maestro/pkg/skill"
)

// ListCmd lists the skills discovered in the configured directories.
type ListCmd struct{}

func (c *ListCmd) Run(cli *CLI) error {
	cfg, err := config.LoadFile(cli.Config)
	if err != nil {
		return err
	}

	builtin := cfg.Skills.BuiltinDir
	if builtin == "" {
		builtin = defaultSkillDir
	}
	summaries, err := skill.ScanSkillSummaries(builtin, cfg.Skills.UserDir)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No skills found.")
		return nil
	}

	fmt.Printf("\n📋 Available skills:\n\n")
	for _, s := range summaries {
		fmt.Printf("  🧩 %s\n", s.Name)
		if s.Description != "" {
			fmt.Printf("     %s\n", s.Description)
		}
		fmt.Printf("     File: %s\n", s.Path)
	}
	return nil
}
