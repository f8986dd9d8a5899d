package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/maestro-cli/maestro/pkg/config"
	"github.com/maestro-cli/maestro/pkg/skill"
)

const defaultSkillDir = "skills"

// skillLibrary lazily loads skills discovered in the configured
// directories. User skills shadow built-ins of the same stem.
type skillLibrary struct {
	files map[string]string
	cache map[string]*skill.Skill
}

func newSkillLibrary(dirs config.SkillDirs) (*skillLibrary, error) {
	builtin := dirs.BuiltinDir
	if builtin == "" {
		builtin = defaultSkillDir
	}
	files, err := skill.ScanSkillFiles(builtin, dirs.UserDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan skill directories: %w", err)
	}
	return &skillLibrary{files: files, cache: make(map[string]*skill.Skill)}, nil
}

// Load resolves a skill by name; parse failures log and count as absent.
func (l *skillLibrary) Load(name string) (*skill.Skill, bool) {
	if sk, ok := l.cache[name]; ok {
		return sk, true
	}
	path, ok := l.files[name]
	if !ok {
		return nil, false
	}
	sk, err := skill.ParseFile(path)
	if err != nil {
		slog.Warn("Failed to load skill", "skill", name, "path", path, "error", err)
		return nil, false
	}
	l.cache[name] = sk
	return sk, true
}

// Resolve accepts a library name or a direct path to a skill file.
func (l *skillLibrary) Resolve(ref string) (*skill.Skill, error) {
	ext := strings.ToLower(ref)
	if strings.HasSuffix(ext, ".yaml") || strings.HasSuffix(ext, ".yml") {
		return skill.ParseFile(ref)
	}
	if sk, ok := l.Load(ref); ok {
		return sk, nil
	}
	return nil, fmt.Errorf("skill '%s' not found (%d skill files discovered)", ref, len(l.files))
}

// coerceInputs converts CLI name=value strings into the declared input
// types. Undeclared inputs pass through as strings.
func coerceInputs(sk *skill.Skill, raw map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for name, value := range raw {
		decl := sk.InputByName(name)
		if decl == nil {
			out[name] = value
			continue
		}
		switch decl.Type {
		case skill.InputTypeNumber:
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				out[name] = f
			} else {
				out[name] = value
			}
		case skill.InputTypeBoolean:
			if b, err := strconv.ParseBool(value); err == nil {
				out[name] = b
			} else {
				out[name] = value
			}
		case skill.InputTypeStringArray:
			parts := strings.Split(value, ",")
			items := make([]string, 0, len(parts))
			for _, part := range parts {
				items = append(items, strings.TrimSpace(part))
			}
			out[name] = items
		default:
			out[name] = value
		}
	}
	return out
}
