package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mdgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
project:
  name: sample
tree: doc/tree.json
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	require.Equal(t, "sample", cfg.Project.Name)
	require.Equal(t, DefaultOutput, cfg.Output)
	require.Equal(t, DefaultLinkerMode, cfg.Linker.Mode)
	require.Equal(t, DefaultEventsSubject, cfg.Events.Subject)
	require.Equal(t, DefaultWatchDebounce, cfg.Watch.Debounce)
	require.Equal(t, DefaultWatchListen, cfg.Watch.Listen)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
	require.True(t, cfg.APIReferenceEnabled())
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("MDGEN_TEST_OUTPUT", "rendered/md")
	path := writeConfig(t, `
project:
  name: sample
tree: doc/tree.json
output: ${MDGEN_TEST_OUTPUT}
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	require.Equal(t, "rendered/md", cfg.Output)
}

func TestLoad_ReadsDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("MDGEN_TEST_PROJECT_FROM_DOTENV=enviro\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mdgen.yaml"), []byte(`
project:
  name: ${MDGEN_TEST_PROJECT_FROM_DOTENV}
tree: doc/tree.json
`), 0o644))
	t.Chdir(dir)

	cfg, err := Load("mdgen.yaml")

	require.NoError(t, err)
	require.Equal(t, "enviro", cfg.Project.Name)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.ErrorContains(t, err, "read config")
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := writeConfig(t, "project: [broken\n")

	_, err := Load(path)

	require.ErrorContains(t, err, "parse config")
}

func TestValidate_RequiredFields(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	require.ErrorContains(t, cfg.Validate(), "project.name")

	cfg.Project.Name = "sample"
	require.ErrorContains(t, cfg.Validate(), "tree")

	cfg.Tree = "doc/tree.json"
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	base := func() *Config {
		cfg := &Config{Project: ProjectConfig{Name: "sample"}, Tree: "t.json"}
		cfg.applyDefaults()
		return cfg
	}

	cfg := base()
	cfg.Extras = []ExtraConfig{{}}
	require.ErrorContains(t, cfg.Validate(), "extras[0]")

	cfg = base()
	cfg.Groups = []GroupConfig{{Name: "A"}, {Name: "A"}}
	require.ErrorContains(t, cfg.Validate(), "duplicate group name")

	cfg = base()
	cfg.Groups = []GroupConfig{{}}
	require.ErrorContains(t, cfg.Validate(), "groups[0]")

	cfg = base()
	cfg.Linker.Mode = "eager"
	require.ErrorContains(t, cfg.Validate(), "unknown linker mode")

	cfg = base()
	cfg.Render.Concurrency = -1
	require.ErrorContains(t, cfg.Validate(), "render.concurrency")

	cfg = base()
	cfg.Watch.Debounce = "soon"
	require.ErrorContains(t, cfg.Validate(), "watch.debounce")

	cfg = base()
	cfg.Logging.Level = "loud"
	require.Error(t, cfg.Validate())

	cfg = base()
	cfg.Logging.Format = "xml"
	require.ErrorContains(t, cfg.Validate(), "logging.format")
}

func TestAPIReferenceEnabled_ExplicitToggle(t *testing.T) {
	off, on := false, true

	cfg := &Config{}
	require.True(t, cfg.APIReferenceEnabled())

	cfg.APIReference = &off
	require.False(t, cfg.APIReferenceEnabled())

	cfg.APIReference = &on
	require.True(t, cfg.APIReferenceEnabled())
}

func TestGroupAccessors_PreserveOrder(t *testing.T) {
	cfg := &Config{Groups: []GroupConfig{
		{Name: "Intro", Patterns: []string{"README.md"}},
		{Name: "Guides", Patterns: []string{"guides/*"}},
	}}

	require.Equal(t, []string{"Intro", "Guides"}, cfg.GroupOrdering())

	rules := cfg.GroupRules()
	require.Len(t, rules, 2)
	require.Equal(t, "Intro", rules[0].Name)
	require.Equal(t, []string{"guides/*"}, rules[1].Patterns)
}

func TestWatchDurations(t *testing.T) {
	w := WatchConfig{Debounce: "500ms", Interval: "1m"}
	require.Equal(t, 500*time.Millisecond, w.DebounceDuration())

	interval, ok := w.IntervalDuration()
	require.True(t, ok)
	require.Equal(t, time.Minute, interval)

	w = WatchConfig{}
	require.Equal(t, 2*time.Second, w.DebounceDuration())
	_, ok = w.IntervalDuration()
	require.False(t, ok)
}

func TestInit_WritesLoadableExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mdgen.yaml")

	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sample", cfg.Project.Name)
	require.NotEmpty(t, cfg.Extras)
	require.NotEmpty(t, cfg.Groups)

	require.ErrorContains(t, Init(path, false), "already exists")
	require.NoError(t, Init(path, true))
}
