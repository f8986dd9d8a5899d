package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Parse parses and validates a skill document. Unknown fields are rejected;
// type mismatches surface as SkillValidationError carrying the failing path.
func Parse(data []byte) (*Skill, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &SkillLoadError{Err: fmt.Errorf("failed to parse YAML: %w", err)}
	}
	if raw == nil {
		return nil, &SkillLoadError{Err: fmt.Errorf("empty skill document")}
	}

	name, _ := raw["name"].(string)

	sk := &Skill{}
	if err := decodeSkill(raw, sk); err != nil {
		return nil, &SkillValidationError{Skill: name, Path: decodePath(err), Message: err.Error()}
	}

	if err := sk.Validate(); err != nil {
		return nil, err
	}
	return sk, nil
}

// ParseFile reads and parses a skill document from disk.
func ParseFile(path string) (*Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SkillLoadError{Name: stem(path), Path: path, Err: err}
	}
	sk, err := Parse(data)
	if err != nil {
		if loadErr, ok := err.(*SkillLoadError); ok {
			loadErr.Name = stem(path)
			loadErr.Path = path
		}
		return nil, err
	}
	return sk, nil
}

// decodeSkill strictly decodes a parsed YAML map into a Skill.
func decodeSkill(input map[string]any, output *Skill) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      output,
		TagName:     "yaml",
		ErrorUnused: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(input)
}

// decodePath extracts the failing field path from a mapstructure error.
func decodePath(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, "'"); idx >= 0 {
		rest := msg[idx+1:]
		if end := strings.Index(rest, "'"); end >= 0 {
			return rest[:end]
		}
	}
	return ""
}

// Validate checks structural invariants: required fields, unique stage
// names, resolvable references, a valid output.primary, and an acyclic
// stage graph.
func (s *Skill) Validate() error {
	if s.Name == "" {
		return &SkillValidationError{Skill: s.Name, Path: "name", Message: "name is required"}
	}
	if s.Description == "" {
		return &SkillValidationError{Skill: s.Name, Path: "description", Message: "description is required"}
	}
	if len(s.Stages) == 0 {
		return &SkillValidationError{Skill: s.Name, Path: "stages", Message: "at least one stage is required"}
	}

	for i, input := range s.Inputs {
		path := fmt.Sprintf("inputs[%d]", i)
		if input.Name == "" {
			return &SkillValidationError{Skill: s.Name, Path: path + ".name", Message: "input name is required"}
		}
		if !ValidInputType(input.Type) {
			return &SkillValidationError{
				Skill: s.Name, Path: path + ".type",
				Message: fmt.Sprintf("unsupported input type '%s' (supported: string, string[], number, boolean)", input.Type),
			}
		}
	}

	inputNames := make(map[string]bool, len(s.Inputs))
	for _, input := range s.Inputs {
		inputNames[input.Name] = true
	}

	stageNames := make(map[string]bool, len(s.Stages))
	for i, stage := range s.Stages {
		path := fmt.Sprintf("stages[%d]", i)
		if stage.Name == "" {
			return &SkillValidationError{Skill: s.Name, Path: path + ".name", Message: "stage name is required"}
		}
		if stageNames[stage.Name] {
			return &SkillValidationError{
				Skill: s.Name, Path: path + ".name",
				Message: fmt.Sprintf("duplicate stage name '%s'", stage.Name),
			}
		}
		stageNames[stage.Name] = true

		if stage.IsSubPipeline() && stage.Prompt != "" {
			return &SkillValidationError{
				Skill: s.Name, Path: path,
				Message: fmt.Sprintf("stage '%s' cannot declare both prompt and sub_pipeline", stage.Name),
			}
		}
		if !stage.IsSubPipeline() && stage.Prompt == "" {
			return &SkillValidationError{
				Skill: s.Name, Path: path + ".prompt",
				Message: fmt.Sprintf("stage '%s' needs a prompt or a sub_pipeline", stage.Name),
			}
		}
		if stage.Temperature != nil && (*stage.Temperature < 0 || *stage.Temperature > 2) {
			return &SkillValidationError{
				Skill: s.Name, Path: path + ".temperature",
				Message: "temperature must be within [0, 2]",
			}
		}
	}

	// input_from may name a declared input or any stage; self-edges are
	// caught by cycle detection below.
	for i, stage := range s.Stages {
		for _, dep := range stage.InputFrom {
			if !inputNames[dep] && !stageNames[dep] {
				return &SkillValidationError{
					Skill: s.Name, Path: fmt.Sprintf("stages[%d].input_from", i),
					Message: fmt.Sprintf("stage '%s' references unknown name '%s'", stage.Name, dep),
				}
			}
		}
	}

	if s.Output.Primary == "" {
		return &SkillValidationError{Skill: s.Name, Path: "output.primary", Message: "output.primary is required"}
	}
	if !stageNames[s.Output.Primary] {
		return &SkillValidationError{
			Skill: s.Name, Path: "output.primary",
			Message: fmt.Sprintf("output.primary names unknown stage '%s'", s.Output.Primary),
		}
	}

	return s.ValidateDAG()
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
