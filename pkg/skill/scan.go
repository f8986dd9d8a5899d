package skill

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Summary is a lightweight view of a skill document used for listings.
type Summary struct {
	Name        string
	Description string
	Path        string
}

// ScanSkillFiles enumerates *.yaml / *.yml files at the top level of the
// built-in directory and, when set, the user directory. Same-named user
// skills shadow built-ins. Keys are filename stems.
func ScanSkillFiles(builtinDir, userDir string) (map[string]string, error) {
	files := make(map[string]string)

	if err := scanDir(builtinDir, files); err != nil {
		return nil, err
	}
	if userDir != "" {
		// User files overwrite built-ins of the same stem.
		if err := scanDir(userDir, files); err != nil {
			return nil, err
		}
	}

	return files, nil
}

func scanDir(dir string, files map[string]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		files[strings.TrimSuffix(name, filepath.Ext(name))] = filepath.Join(dir, name)
	}
	return nil
}

// ScanSkillSummaries reads only {name, description} of every discovered
// skill. Parse failures are tolerated and reported as "Failed to load" with
// the filename stem, so one broken file does not hide the rest.
func ScanSkillSummaries(builtinDir, userDir string) ([]Summary, error) {
	files, err := ScanSkillFiles(builtinDir, userDir)
	if err != nil {
		return nil, err
	}

	stems := make([]string, 0, len(files))
	for s := range files {
		stems = append(stems, s)
	}
	sort.Strings(stems)

	summaries := make([]Summary, 0, len(files))
	for _, st := range stems {
		path := files[st]
		summaries = append(summaries, readSummary(st, path))
	}
	return summaries, nil
}

func readSummary(stem, path string) Summary {
	failed := Summary{Name: stem, Description: "Failed to load", Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return failed
	}

	var head struct {
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil || head.Name == "" {
		return failed
	}

	return Summary{Name: head.Name, Description: head.Description, Path: path}
}

// Watch watches skill directories for changes and invokes onChange after a
// short debounce. Blocks until ctx is cancelled.
func Watch(ctx context.Context, dirs []string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			slog.Warn("Failed to watch skill directory", "dir", dir, "error", err)
		}
	}

	const debounce = 250 * time.Millisecond
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(event.Name))
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Skill watcher error", "error", err)
		case <-timerC:
			timer = nil
			timerC = nil
			slog.Debug("Skill directory changed, reloading")
			onChange()
		}
	}
}
