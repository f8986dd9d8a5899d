package skill

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestScanSkillFiles_UserShadowsBuiltin(t *testing.T) {
	builtin := t.TempDir()
	user := t.TempDir()

	writeFile(t, builtin, "alpha.yaml", "name: alpha\ndescription: builtin alpha")
	writeFile(t, builtin, "beta.yml", "name: beta\ndescription: builtin beta")
	userAlpha := writeFile(t, user, "alpha.yaml", "name: alpha\ndescription: user alpha")
	writeFile(t, user, "notes.txt", "not a skill")

	sub := filepath.Join(builtin, "nested")
	require.NoError(t, os.Mkdir(sub, 0755))
	writeFile(t, sub, "hidden.yaml", "name: hidden\ndescription: nested, not scanned")

	files, err := ScanSkillFiles(builtin, user)
	require.NoError(t, err)

	assert.Len(t, files, 2)
	assert.Equal(t, userAlpha, files["alpha"])
	assert.Contains(t, files, "beta")
	assert.NotContains(t, files, "hidden")
	assert.NotContains(t, files, "notes")
}

func TestScanSkillFiles_MissingDirsTolerated(t *testing.T) {
	files, err := ScanSkillFiles(filepath.Join(t.TempDir(), "absent"), "")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestScanSkillSummaries(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", "name: good_skill\ndescription: does things")
	writeFile(t, dir, "broken.yaml", "name: [unterminated")

	summaries, err := ScanSkillSummaries(dir, "")
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byName := map[string]Summary{}
	for _, s := range summaries {
		byName[s.Name] = s
	}

	assert.Equal(t, "does things", byName["good_skill"].Description)
	assert.Equal(t, "Failed to load", byName["broken"].Description)
}

func TestWatch_FiresOnSkillFileChange(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changed := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, []string{dir, ""}, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "fresh.yaml", "name: fresh\ndescription: new skill")
	writeFile(t, dir, "ignored.txt", "not a skill")

	select {
	case <-changed:
	case <-ctx.Done():
		t.Fatal("watcher did not report the change")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestParseFile_MissingFile(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}
