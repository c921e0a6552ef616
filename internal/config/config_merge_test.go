package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeConfigs_ExclusionsMerge(t *testing.T) {
	base := Default("/home")
	base.Exclude = []string{"**/node_modules/**", "**/vendor/**"}

	project := Default("/project")
	project.Exclude = []string{"**/dist/**"}

	merged := mergeConfigs(base, project)

	assert.Equal(t, []string{"**/node_modules/**", "**/vendor/**", "**/dist/**"}, merged.Exclude)
	assert.Equal(t, "/project", merged.Project.Root)
}

func TestMergeConfigs_ExclusionsDeduplication(t *testing.T) {
	base := Default("/home")
	base.Exclude = []string{"**/vendor/**", "**/out/**"}

	project := Default("/project")
	project.Exclude = []string{"**/out/**", "**/vendor/**", "**/gen/**"}

	merged := mergeConfigs(base, project)
	assert.Equal(t, []string{"**/vendor/**", "**/out/**", "**/gen/**"}, merged.Exclude)
}

func TestMergeConfigs_ProjectSettingsTakePrecedence(t *testing.T) {
	base := Default("/home")
	base.Performance.ScanWorkers = 2
	base.Watch.Enabled = true

	project := Default("/project")
	project.Performance.ScanWorkers = 6

	merged := mergeConfigs(base, project)
	assert.Equal(t, 6, merged.Performance.ScanWorkers)
	assert.False(t, merged.Watch.Enabled)
}

func TestMergeConfigs_EmptyBaseExclusions(t *testing.T) {
	base := Default("/home")
	project := Default("/project")
	project.Exclude = []string{"**/a/**"}

	merged := mergeConfigs(base, project)
	assert.Equal(t, []string{"**/a/**"}, merged.Exclude)
}

func TestLoadWithRoot_MergesGlobalAndProjectConfigs(t *testing.T) {
	tmpHome := t.TempDir()
	tmpProject := t.TempDir()

	globalConfig := `
exclude {
    "**/node_modules/**"
}

performance {
    scan_workers 2
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpHome, KDLFileName), []byte(globalConfig), 0644))

	projectConfig := `
project {
    root "."
}

exclude {
    "**/generated/**"
}

performance {
    scan_workers 5
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpProject, KDLFileName), []byte(projectConfig), 0644))

	t.Setenv("HOME", tmpHome)

	cfg, err := LoadWithRoot("", tmpProject)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Contains(t, cfg.Exclude, "**/node_modules/**", "Should include global exclusion")
	assert.Contains(t, cfg.Exclude, "**/generated/**", "Should include project exclusion")
	assert.Equal(t, 5, cfg.Performance.ScanWorkers, "Project workers should override global")

	absProject, err := filepath.Abs(tmpProject)
	require.NoError(t, err)
	assert.Equal(t, absProject, cfg.Project.Root)
}

func TestLoadWithRoot_ProjectTOMLOnly(t *testing.T) {
	tmpHome := t.TempDir()
	tmpProject := t.TempDir()
	t.Setenv("HOME", tmpHome)

	require.NoError(t, os.WriteFile(filepath.Join(tmpProject, TOMLFileName),
		[]byte("[database]\nfile_name = \"other.db\"\n"), 0644))

	cfg, err := LoadWithRoot("", tmpProject)
	require.NoError(t, err)
	assert.Equal(t, "other.db", cfg.Database.FileName)
}

func TestLoadWithRoot_KDLWinsOverTOML(t *testing.T) {
	tmpHome := t.TempDir()
	tmpProject := t.TempDir()
	t.Setenv("HOME", tmpHome)

	require.NoError(t, os.WriteFile(filepath.Join(tmpProject, KDLFileName),
		[]byte(`database { file_name "kdl.db" }`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpProject, TOMLFileName),
		[]byte("[database]\nfile_name = \"toml.db\"\n"), 0644))

	cfg, err := LoadWithRoot("", tmpProject)
	require.NoError(t, err)
	assert.Equal(t, "kdl.db", cfg.Database.FileName)
}

func TestLoadWithRoot_GlobalConfigOnly(t *testing.T) {
	tmpHome := t.TempDir()
	tmpProject := t.TempDir()
	t.Setenv("HOME", tmpHome)

	require.NoError(t, os.WriteFile(filepath.Join(tmpHome, KDLFileName),
		[]byte(`exclude { "**/global/**" }`), 0644))

	cfg, err := LoadWithRoot("", tmpProject)
	require.NoError(t, err)

	absProject, err := filepath.Abs(tmpProject)
	require.NoError(t, err)
	assert.Equal(t, absProject, cfg.Project.Root)
	assert.Equal(t, []string{"**/global/**"}, cfg.Exclude)
}

func TestLoadWithRoot_DefaultConfigFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tmpProject := t.TempDir()

	cfg, err := LoadWithRoot("", tmpProject)
	require.NoError(t, err)

	absProject, err := filepath.Abs(tmpProject)
	require.NoError(t, err)
	assert.Equal(t, absProject, cfg.Project.Root)
	assert.Equal(t, []string{DefaultArchiveSuffix}, cfg.Archive.Suffixes)
}

func TestLoadWithRoot_InvalidProjectConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tmpProject := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpProject, KDLFileName),
		[]byte(`database { compression_level 42 }`), 0644))

	_, err := LoadWithRoot("", tmpProject)
	assert.Error(t, err)
}
