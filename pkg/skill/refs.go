package skill

// LoadFunc resolves a skill by name. It returns false when no skill of that
// name exists.
type LoadFunc func(name string) (*Skill, bool)

// ValidateSubPipelineRefs walks sub_pipeline edges across skills, resolving
// targets through load. A missing target yields SkillLoadError naming the
// missing skill; a revisited ancestor (including self-reference) yields
// SkillCycleError.
func ValidateSubPipelineRefs(root *Skill, load LoadFunc) error {
	onPath := map[string]bool{}
	done := map[string]bool{}

	var visit func(sk *Skill) error
	visit = func(sk *Skill) error {
		onPath[sk.Name] = true
		defer delete(onPath, sk.Name)

		for i := range sk.Stages {
			stage := &sk.Stages[i]
			if !stage.IsSubPipeline() {
				continue
			}
			target := stage.SubPipeline
			if onPath[target] {
				return &SkillCycleError{Skill: target}
			}
			if done[target] {
				continue
			}
			sub, ok := load(target)
			if !ok {
				return &SkillLoadError{Name: target}
			}
			if err := visit(sub); err != nil {
				return err
			}
			done[target] = true
		}
		return nil
	}

	return visit(root)
}
