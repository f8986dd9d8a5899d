package skill

import "fmt"

// SkillLoadError reports a skill document that could not be read or parsed,
// or a sub-pipeline reference that does not resolve.
type SkillLoadError struct {
	Name string
	Path string
	Err  error
}

func (e *SkillLoadError) Error() string {
	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("failed to load skill '%s' from %s: %v", e.Name, e.Path, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("failed to load skill '%s': %v", e.Name, e.Err)
	default:
		return fmt.Sprintf("skill '%s' not found", e.Name)
	}
}

func (e *SkillLoadError) Unwrap() error { return e.Err }

// SkillValidationError reports a document that parsed but violates the skill
// schema. Path points at the offending field when known.
type SkillValidationError struct {
	Skill   string
	Path    string
	Message string
}

func (e *SkillValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid skill '%s' at %s: %s", e.Skill, e.Path, e.Message)
	}
	return fmt.Sprintf("invalid skill '%s': %s", e.Skill, e.Message)
}

// SkillCycleError reports a dependency cycle, either among a skill's stages
// or across sub-pipeline references between skills.
type SkillCycleError struct {
	Skill string
	Stage string
}

func (e *SkillCycleError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("skill '%s' has a dependency cycle involving stage '%s'", e.Skill, e.Stage)
	}
	return fmt.Sprintf("sub-pipeline cycle involving skill '%s'", e.Skill)
}
