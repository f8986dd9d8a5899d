package skill

import (
	"errors"
	"fmt"
	"testing"
)

func subSkill(name string, targets ...string) *Skill {
	s := &Skill{Name: name, Description: "d"}
	if len(targets) == 0 {
		s.Stages = []Stage{{Name: "work", Prompt: "p"}}
	}
	for i, target := range targets {
		s.Stages = append(s.Stages, Stage{
			Name:        fmt.Sprintf("call_%d", i),
			SubPipeline: target,
		})
	}
	s.Output.Primary = s.Stages[0].Name
	return s
}

func loaderFor(skills ...*Skill) LoadFunc {
	byName := make(map[string]*Skill, len(skills))
	for _, s := range skills {
		byName[s.Name] = s
	}
	return func(name string) (*Skill, bool) {
		s, ok := byName[name]
		return s, ok
	}
}

func TestValidateSubPipelineRefs(t *testing.T) {
	tests := []struct {
		name      string
		root      *Skill
		load      LoadFunc
		wantCycle bool
		wantLoad  bool
	}{
		{
			name:      "self reference is a cycle",
			root:      subSkill("a", "a"),
			load:      loaderFor(subSkill("a", "a")),
			wantCycle: true,
		},
		{
			name:      "two skill cycle",
			root:      subSkill("a", "b"),
			load:      loaderFor(subSkill("a", "b"), subSkill("b", "a")),
			wantCycle: true,
		},
		{
			name:      "three skill cycle",
			root:      subSkill("a", "b"),
			load:      loaderFor(subSkill("a", "b"), subSkill("b", "c"), subSkill("c", "a")),
			wantCycle: true,
		},
		{
			name: "linear chain of five",
			root: subSkill("a", "b"),
			load: loaderFor(
				subSkill("a", "b"), subSkill("b", "c"), subSkill("c", "d"),
				subSkill("d", "e"), subSkill("e"),
			),
		},
		{
			name:     "missing target",
			root:     subSkill("a", "ghost"),
			load:     loaderFor(subSkill("a", "ghost")),
			wantLoad: true,
		},
		{
			name: "diamond is not a cycle",
			root: subSkill("a", "b", "c"),
			load: loaderFor(
				subSkill("a", "b", "c"), subSkill("b", "d"),
				subSkill("c", "d"), subSkill("d"),
			),
		},
		{
			name: "no sub pipelines",
			root: subSkill("a"),
			load: loaderFor(subSkill("a")),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSubPipelineRefs(tt.root, tt.load)

			switch {
			case tt.wantCycle:
				var cycleErr *SkillCycleError
				if !errors.As(err, &cycleErr) {
					t.Fatalf("error = %v, want SkillCycleError", err)
				}
			case tt.wantLoad:
				var loadErr *SkillLoadError
				if !errors.As(err, &loadErr) {
					t.Fatalf("error = %v, want SkillLoadError", err)
				}
				if loadErr.Name != "ghost" {
					t.Errorf("SkillLoadError.Name = %q, want ghost", loadErr.Name)
				}
			default:
				if err != nil {
					t.Fatalf("error = %v, want nil", err)
				}
			}
		})
	}
}
