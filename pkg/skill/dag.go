package skill

// stageDeps returns the names in input_from that refer to stages (declared
// inputs are substitution variables, not graph edges).
func (s *Skill) stageDeps(stage *Stage) []string {
	var deps []string
	for _, dep := range stage.InputFrom {
		if s.StageByName(dep) != nil {
			deps = append(deps, dep)
		}
	}
	return deps
}

const (
	colorWhite = iota // unvisited
	colorGray         // on the current DFS path
	colorBlack        // fully explored
)

// ValidateDAG detects cycles in the stage graph via three-color DFS.
// Self-edges count as cycles.
func (s *Skill) ValidateDAG() error {
	colors := make(map[string]int, len(s.Stages))

	var visit func(name string) *SkillCycleError
	visit = func(name string) *SkillCycleError {
		colors[name] = colorGray
		stage := s.StageByName(name)
		for _, dep := range s.stageDeps(stage) {
			switch colors[dep] {
			case colorGray:
				return &SkillCycleError{Skill: s.Name, Stage: dep}
			case colorWhite:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		colors[name] = colorBlack
		return nil
	}

	for i := range s.Stages {
		if colors[s.Stages[i].Name] == colorWhite {
			if err := visit(s.Stages[i].Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// TopologicalSort orders stage names so that every dependency precedes its
// dependents (Kahn's algorithm). Ties are broken by authoring order: each
// round scans the stages in authoring order and emits all that are ready.
func (s *Skill) TopologicalSort() ([]string, error) {
	levels, err := s.ComputeExecutionLevels()
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, len(s.Stages))
	for _, level := range levels {
		order = append(order, level...)
	}
	return order, nil
}

// ComputeExecutionLevels partitions stages into minimal layers such that
// every stage in layer L depends only on stages in layers < L. Within each
// layer the authoring order of stages is preserved. Stages with no
// dependencies form level 0.
func (s *Skill) ComputeExecutionLevels() ([][]string, error) {
	placed := make(map[string]bool, len(s.Stages))
	var levels [][]string

	for len(placed) < len(s.Stages) {
		var level []string
		for i := range s.Stages {
			stage := &s.Stages[i]
			if placed[stage.Name] {
				continue
			}
			ready := true
			for _, dep := range s.stageDeps(stage) {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, stage.Name)
			}
		}

		if len(level) == 0 {
			// No progress means a cycle; name one participant.
			for i := range s.Stages {
				if !placed[s.Stages[i].Name] {
					return nil, &SkillCycleError{Skill: s.Name, Stage: s.Stages[i].Name}
				}
			}
		}

		for _, name := range level {
			placed[name] = true
		}
		levels = append(levels, level)
	}

	return levels, nil
}
