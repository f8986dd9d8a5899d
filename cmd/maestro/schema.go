package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/maestro-cli/maestro/pkg/skill"
)

// SchemaCmd generates JSON Schema for the skill file format. Useful for
// editor validation of skill YAML; output goes to stdout so it can be
// redirected.
type SchemaCmd struct {
	Compact bool `short:"c" help:"Compact JSON output (no indentation)."`
}

func (c *SchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		// Inline all definitions (no $ref) so single-file validators work.
		DoNotReference: true,
	}

	schema := reflector.Reflect(&skill.Skill{})
	schema.ID = "https://maestro-cli.dev/schemas/skill.json"
	schema.Title = "Maestro Skill Schema"
	schema.Description = "Schema for maestro skill definition files"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
