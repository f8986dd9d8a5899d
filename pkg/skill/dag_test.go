package skill

import (
	"errors"
	"testing"
)

func mkSkill(stages ...Stage) *Skill {
	s := &Skill{
		Name:        "test",
		Description: "test skill",
		Stages:      stages,
	}
	if len(stages) > 0 {
		s.Output.Primary = stages[len(stages)-1].Name
	}
	return s
}

func st(name string, deps ...string) Stage {
	return Stage{Name: name, Prompt: "p", InputFrom: deps}
}

func TestTopologicalSort_EdgeOrdering(t *testing.T) {
	tests := []struct {
		name   string
		stages []Stage
		edges  [][2]string // a must come before b
	}{
		{
			name:   "linear chain",
			stages: []Stage{st("gather"), st("analyze", "gather"), st("format", "analyze")},
			edges:  [][2]string{{"gather", "analyze"}, {"analyze", "format"}},
		},
		{
			name:   "diamond",
			stages: []Stage{st("root"), st("left", "root"), st("right", "root"), st("merge", "left", "right")},
			edges:  [][2]string{{"root", "left"}, {"root", "right"}, {"left", "merge"}, {"right", "merge"}},
		},
		{
			name:   "declared later but depended on",
			stages: []Stage{st("consumer", "producer"), st("producer")},
			edges:  [][2]string{{"producer", "consumer"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := mkSkill(tt.stages...).TopologicalSort()
			if err != nil {
				t.Fatalf("TopologicalSort() error = %v", err)
			}
			pos := make(map[string]int, len(order))
			for i, name := range order {
				pos[name] = i
			}
			for _, edge := range tt.edges {
				if pos[edge[0]] >= pos[edge[1]] {
					t.Errorf("edge %s -> %s violated: order %v", edge[0], edge[1], order)
				}
			}
		})
	}
}

func TestComputeExecutionLevels_AuthoringOrderTieBreak(t *testing.T) {
	s := mkSkill(st("z"), st("a"), st("m"))

	levels, err := s.ComputeExecutionLevels()
	if err != nil {
		t.Fatalf("ComputeExecutionLevels() error = %v", err)
	}
	if len(levels) != 1 {
		t.Fatalf("levels = %v, want a single level", levels)
	}
	want := []string{"z", "a", "m"}
	for i, name := range levels[0] {
		if name != want[i] {
			t.Errorf("level[0][%d] = %s, want %s", i, name, want[i])
		}
	}
}

func TestComputeExecutionLevels_DependenciesInEarlierLevels(t *testing.T) {
	s := mkSkill(
		st("gather_a"),
		st("gather_b"),
		st("merge", "gather_a", "gather_b"),
		st("format", "merge"),
	)

	levels, err := s.ComputeExecutionLevels()
	if err != nil {
		t.Fatalf("ComputeExecutionLevels() error = %v", err)
	}

	levelOf := make(map[string]int)
	for l, level := range levels {
		for _, name := range level {
			levelOf[name] = l
		}
	}

	for i := range s.Stages {
		stage := &s.Stages[i]
		for _, dep := range stage.InputFrom {
			if levelOf[dep] >= levelOf[stage.Name] {
				t.Errorf("stage %s (level %d) depends on %s (level %d)",
					stage.Name, levelOf[stage.Name], dep, levelOf[dep])
			}
		}
		if len(stage.InputFrom) == 0 && levelOf[stage.Name] != 0 {
			t.Errorf("independent stage %s placed in level %d", stage.Name, levelOf[stage.Name])
		}
	}
}

func TestValidateDAG_Cycles(t *testing.T) {
	tests := []struct {
		name      string
		stages    []Stage
		wantCycle bool
	}{
		{
			name:      "self edge",
			stages:    []Stage{st("loop", "loop")},
			wantCycle: true,
		},
		{
			name:      "two stage cycle",
			stages:    []Stage{st("a", "b"), st("b", "a")},
			wantCycle: true,
		},
		{
			name:      "three stage cycle",
			stages:    []Stage{st("a", "c"), st("b", "a"), st("c", "b")},
			wantCycle: true,
		},
		{
			name:      "cycle behind a valid prefix",
			stages:    []Stage{st("root"), st("x", "root", "y"), st("y", "x")},
			wantCycle: true,
		},
		{
			name:      "acyclic diamond",
			stages:    []Stage{st("root"), st("l", "root"), st("r", "root"), st("m", "l", "r")},
			wantCycle: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mkSkill(tt.stages...).ValidateDAG()
			if tt.wantCycle {
				var cycleErr *SkillCycleError
				if !errors.As(err, &cycleErr) {
					t.Fatalf("ValidateDAG() error = %v, want SkillCycleError", err)
				}
				if cycleErr.Stage == "" {
					t.Error("SkillCycleError should name a participating stage")
				}
			} else if err != nil {
				t.Errorf("ValidateDAG() error = %v, want nil", err)
			}
		})
	}
}

func TestComputeExecutionLevels_CycleSurfaces(t *testing.T) {
	s := mkSkill(st("a", "b"), st("b", "a"))

	_, err := s.ComputeExecutionLevels()
	var cycleErr *SkillCycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("ComputeExecutionLevels() error = %v, want SkillCycleError", err)
	}
}
