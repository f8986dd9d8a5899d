// Package skill defines the declarative skill format and its loader: YAML
// parsing, schema validation, DAG validation, topological ordering,
// execution-level computation, and variable substitution.
package skill

// AgentType selects a preset of model, decoding, and tool-loop defaults for
// a stage that does not specify them.
type AgentType string

const (
	AgentTypeResearch AgentType = "research"
	AgentTypeExplore  AgentType = "explore"
	AgentTypeVerify   AgentType = "verify"
	AgentTypeDefault  AgentType = "default"
)

// InputType is the declared type of a skill input.
type InputType string

const (
	InputTypeString      InputType = "string"
	InputTypeStringArray InputType = "string[]"
	InputTypeNumber      InputType = "number"
	InputTypeBoolean     InputType = "boolean"
)

// Skill is a named, versioned declarative specification of a multi-stage
// analysis. Stage order is the authoring order and acts as the tie-breaker
// within a concurrency level.
type Skill struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`

	Inputs []Input `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	ToolsRequired []string                  `yaml:"tools_required,omitempty" json:"tools_required,omitempty"`
	ToolsOptional []string                  `yaml:"tools_optional,omitempty" json:"tools_optional,omitempty"`
	ToolsConfig   map[string]map[string]any `yaml:"tools_config,omitempty" json:"tools_config,omitempty"`

	Stages []Stage `yaml:"stages" json:"stages"`

	Output Output `yaml:"output" json:"output"`
}

// Input is a typed named parameter of a skill.
type Input struct {
	Name        string    `yaml:"name" json:"name"`
	Type        InputType `yaml:"type" json:"type"`
	Required    bool      `yaml:"required,omitempty" json:"required,omitempty"`
	Default     any       `yaml:"default,omitempty" json:"default,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// Stage is one node in a skill's DAG. It is either a model stage (Prompt set)
// or a sub-pipeline stage (SubPipeline set).
type Stage struct {
	Name string `yaml:"name" json:"name"`

	// Model stage fields.
	Prompt       string    `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Model        string    `yaml:"model,omitempty" json:"model,omitempty"`
	MaxTokens    int       `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature  *float64  `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	OutputFormat string    `yaml:"output_format,omitempty" json:"output_format,omitempty"`
	Tools        []string  `yaml:"tools,omitempty" json:"tools,omitempty"`
	AgentType    AgentType `yaml:"agent_type,omitempty" json:"agent_type,omitempty"`

	InputFrom []string `yaml:"input_from,omitempty" json:"input_from,omitempty"`

	// Sub-pipeline stage fields.
	SubPipeline string            `yaml:"sub_pipeline,omitempty" json:"sub_pipeline,omitempty"`
	SubInputs   map[string]string `yaml:"sub_inputs,omitempty" json:"sub_inputs,omitempty"`
}

// IsSubPipeline reports whether the stage delegates to another skill.
func (s *Stage) IsSubPipeline() bool {
	return s.SubPipeline != ""
}

// Output declares which stage produces the skill's primary output and how
// the caller should persist it.
type Output struct {
	Primary          string `yaml:"primary" json:"primary"`
	Format           string `yaml:"format,omitempty" json:"format,omitempty"`
	FilenameTemplate string `yaml:"filename_template,omitempty" json:"filename_template,omitempty"`
	SaveIntermediate bool   `yaml:"save_intermediate,omitempty" json:"save_intermediate,omitempty"`
}

// StageByName returns the named stage, or nil.
func (s *Skill) StageByName(name string) *Stage {
	for i := range s.Stages {
		if s.Stages[i].Name == name {
			return &s.Stages[i]
		}
	}
	return nil
}

// InputByName returns the named input declaration, or nil.
func (s *Skill) InputByName(name string) *Input {
	for i := range s.Inputs {
		if s.Inputs[i].Name == name {
			return &s.Inputs[i]
		}
	}
	return nil
}

// ResolveAgentType returns the stage's agent type, defaulting to "default".
func (s *Stage) ResolveAgentType() AgentType {
	switch s.AgentType {
	case AgentTypeResearch, AgentTypeExplore, AgentTypeVerify:
		return s.AgentType
	default:
		return AgentTypeDefault
	}
}

// ValidInputType reports whether t is one of the supported input types.
func ValidInputType(t InputType) bool {
	switch t {
	case InputTypeString, InputTypeStringArray, InputTypeNumber, InputTypeBoolean:
		return true
	}
	return false
}
