package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/maestro-cli/maestro/pkg/skill"
)

// ValidateCmd validates skill files without running them.
type ValidateCmd struct {
	Paths  []string `arg:"" name:"path" help:"Skill file paths." placeholder:"PATH"`
	Format string   `short:"f" help:"Output format: compact, json." default:"compact" enum:"compact,json"`
}

type validationResult struct {
	File  string `json:"file"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	results := make([]validationResult, 0, len(c.Paths))
	failed := 0

	for _, path := range c.Paths {
		sk, err := skill.ParseFile(path)
		if err == nil {
			err = skill.ValidateSubPipelineRefs(sk, referencedFileLoader(path))
		}
		if err != nil {
			failed++
			results = append(results, validationResult{File: path, Error: err.Error()})
			continue
		}
		results = append(results, validationResult{File: path, Valid: true})
	}

	if c.Format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Printf("%s: valid\n", r.File)
			} else {
				fmt.Fprintf(os.Stderr, "%s: %s\n", r.File, r.Error)
			}
		}
	}

	if failed > 0 {
		return &exitError{code: 1}
	}
	return nil
}

// referencedFileLoader resolves sub-pipeline references against skills
// living next to the file under validation.
func referencedFileLoader(path string) skill.LoadFunc {
	dir := filepath.Dir(path)
	return func(name string) (*skill.Skill, bool) {
		for _, ext := range []string{".yaml", ".yml"} {
			sk, err := skill.ParseFile(filepath.Join(dir, name+ext))
			if err == nil {
				return sk, true
			}
		}
		return nil, false
	}
}
