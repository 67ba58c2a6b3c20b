package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdgen/internal/config"
	"git.home.luguber.info/inful/mdgen/internal/doctree"
	"git.home.luguber.info/inful/mdgen/internal/reconcile"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleTree() *doctree.Tree {
	return &doctree.Tree{
		Project: "sample",
		Version: "1.0.0",
		Nodes: []*doctree.Node{
			{
				Kind: doctree.KindModule, ID: "store", Title: "Store",
				Doc:        "Key-value store.",
				SourcePath: "lib/store.ex", SourceLine: 10,
				Children: []*doctree.Node{
					{Kind: doctree.KindFunction, ID: "store.put", Title: "put",
						Signature: "put(key, value)", Doc: "Inserts a value."},
					{Kind: doctree.KindType, ID: "entry", Title: "entry",
						Signature: "entry()", Doc: "Stored pair."},
				},
			},
			{Kind: doctree.KindException, ID: "store-error", Title: "StoreError",
				Doc: "Raised on storage failures."},
			{Kind: doctree.KindTask, ID: "sample.gen", Title: "sample.gen",
				Doc: "Generates sample data."},
			{Kind: doctree.KindImpl, ID: "enumerable-store", Title: "Enumerable.Store"},
		},
	}
}

// setupProject lays out a project directory with tree, prose sources and a
// ready-to-run config, then chdirs into it.
func setupProject(t *testing.T, tree *doctree.Tree) *config.Config {
	t.Helper()
	dir := t.TempDir()

	data, err := json.Marshal(tree)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tree.json"), data, 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"),
		[]byte("# Sample\n\nSee `store` for the main interface.\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "guides"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guides", "Getting Started.md"),
		[]byte("# Getting Started\n\nInstall it.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CHANGELOG.md"),
		[]byte("changes without heading\n"), 0o644))

	t.Chdir(dir)

	return &config.Config{
		Project: config.ProjectConfig{Name: "sample", Version: "1.0.0"},
		Tree:    "tree.json",
		Output:  "out",
		Extras: []config.ExtraConfig{
			{Path: "README.md"},
			{Path: "guides/Getting Started.md"},
			{Path: "CHANGELOG.md"},
		},
		Groups: []config.GroupConfig{
			{Name: "Introduction", Patterns: []string{"README.md"}},
			{Name: "Guides", Patterns: []string{"guides/*"}},
		},
		Canonical:  "https://docs.example.com/sample",
		SourceLink: config.SourceLinkConfig{Pattern: "https://src.example/%path%#L%line%"},
	}
}

func runPipeline(t *testing.T, cfg *config.Config, opts ...Option) (string, *RunReport, error) {
	t.Helper()
	p, err := New(cfg, append([]Option{WithLogger(quietLogger())}, opts...)...)
	require.NoError(t, err)
	return p.Run(context.Background())
}

func listOutput(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	files := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		files[e.Name()] = string(data)
	}
	return files
}

func TestRun_FullGeneration(t *testing.T) {
	cfg := setupProject(t, sampleTree())

	rel, report, err := runPipeline(t, cfg)

	require.NoError(t, err)
	require.Equal(t, "out", rel)
	require.Equal(t, OutcomeSuccess, report.Outcome)
	require.Equal(t, 4, report.ProsePages)
	require.Equal(t, 3, report.EntityPages)
	require.Len(t, report.Pages, 7)

	files := listOutput(t, "out")
	require.Len(t, files, 8) // 7 pages + manifest

	// Manifest records production order: index, sorted prose, then entities
	// in bucket order. The impl node renders nowhere.
	require.Equal(t,
		"api-reference.md\nreadme.md\ngetting-started.md\nchangelog.md\nstore.md\nstore-error.md\nsample.gen.md\n",
		files[reconcile.ManifestName])

	require.Contains(t, files["readme.md"], "[`store`](store.md)")
	require.Contains(t, files["store.md"], "# Store")
	require.Contains(t, files["store.md"], "### `put(key, value)`")
	require.Contains(t, files["store.md"], "[View source](https://src.example/lib/store.ex#L10)")
	require.Contains(t, files["store-error.md"], "# StoreError (exception)")
	require.Contains(t, files["api-reference.md"], "- [`Store`](store.md): Key-value store.")

	for _, rec := range report.Pages {
		require.NotEmpty(t, rec.Fingerprint, rec.Filename)
		require.Equal(t, "https://docs.example.com/sample/"+rec.Filename, rec.CanonicalURL)
	}
	require.Equal(t, "index", report.Pages[0].Kind)
	require.Equal(t, "prose", report.Pages[1].Kind)
	require.Equal(t, "module", report.Pages[4].Kind)
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	cfg := setupProject(t, sampleTree())

	_, _, err := runPipeline(t, cfg)
	require.NoError(t, err)
	first := listOutput(t, "out")

	_, report, err := runPipeline(t, cfg)
	require.NoError(t, err)
	second := listOutput(t, "out")

	require.Equal(t, OutcomeSuccess, report.Outcome)
	require.Equal(t, first, second)
}

func TestRun_StaleFilesFromPreviousRunAreDeleted(t *testing.T) {
	cfg := setupProject(t, sampleTree())

	_, _, err := runPipeline(t, cfg)
	require.NoError(t, err)
	require.Contains(t, listOutput(t, "out"), "changelog.md")

	// Drop the changelog from the configuration; its page must disappear.
	cfg.Extras = cfg.Extras[:2]
	_, _, err = runPipeline(t, cfg)
	require.NoError(t, err)

	files := listOutput(t, "out")
	require.NotContains(t, files, "changelog.md")
	require.Contains(t, files, "readme.md")
}

func TestRun_OutputWithoutManifestIsWiped(t *testing.T) {
	cfg := setupProject(t, sampleTree())
	require.NoError(t, os.MkdirAll(filepath.Join("out", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("out", "junk.md"), []byte("junk"), 0o644))

	_, _, err := runPipeline(t, cfg)

	require.NoError(t, err)
	files := listOutput(t, "out")
	require.NotContains(t, files, "junk.md")
	require.NotContains(t, files, "nested")
}

func TestRun_ForeignFilesSurviveWhenManifestPresent(t *testing.T) {
	cfg := setupProject(t, sampleTree())
	require.NoError(t, os.MkdirAll("out", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("out", "stale.md"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join("out", "notes.txt"), []byte("keep"), 0o644))
	require.NoError(t, reconcile.WriteManifest(filepath.Join("out", reconcile.ManifestName), []string{"stale.md"}))

	_, _, err := runPipeline(t, cfg)

	require.NoError(t, err)
	files := listOutput(t, "out")
	require.NotContains(t, files, "stale.md")
	require.Equal(t, "keep", files["notes.txt"])
}

func TestRun_UnsupportedSourceAbortsBeforeOutputIsTouched(t *testing.T) {
	cfg := setupProject(t, sampleTree())
	require.NoError(t, os.MkdirAll("out", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("out", "previous.md"), []byte("previous run"), 0o644))
	require.NoError(t, reconcile.WriteManifest(filepath.Join("out", reconcile.ManifestName), []string{"previous.md"}))

	cfg.Extras = append(cfg.Extras, config.ExtraConfig{Path: "notes.txt"})
	_, report, err := runPipeline(t, cfg)

	require.Error(t, err)
	require.Equal(t, OutcomeFailed, report.Outcome)
	require.Equal(t, "fatal", report.StageErrorKinds["validate"])

	// The previous run's output survives untouched.
	files := listOutput(t, "out")
	require.Equal(t, "previous run", files["previous.md"])
	require.Contains(t, files, reconcile.ManifestName)
}

func TestRun_DuplicatePageIDWarnsAndOverwrites(t *testing.T) {
	cfg := setupProject(t, sampleTree())
	require.NoError(t, os.MkdirAll("docs", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join("docs", "README.md"),
		[]byte("# Second Readme\n"), 0o644))
	cfg.Extras = append(cfg.Extras, config.ExtraConfig{Path: "docs/README.md"})

	_, report, err := runPipeline(t, cfg)

	require.NoError(t, err)
	require.Equal(t, OutcomeWarning, report.Outcome)
	require.Len(t, report.Warnings, 1)
	require.ErrorContains(t, report.Warnings[0], "already exists")
}

func TestRun_MissingProseSourceIsFatal(t *testing.T) {
	cfg := setupProject(t, sampleTree())
	cfg.Extras = append(cfg.Extras, config.ExtraConfig{Path: "absent.md"})

	_, report, err := runPipeline(t, cfg)

	require.Error(t, err)
	require.Equal(t, OutcomeFailed, report.Outcome)
	require.Equal(t, "fatal", report.StageErrorKinds["build_extras"])
}

func TestRun_CanceledContext(t *testing.T) {
	cfg := setupProject(t, sampleTree())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := New(cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	_, report, err := p.Run(ctx)

	require.Error(t, err)
	require.Equal(t, OutcomeCanceled, report.Outcome)
}

func TestRun_APIReferenceCanBeDisabled(t *testing.T) {
	cfg := setupProject(t, sampleTree())
	off := false
	cfg.APIReference = &off

	_, report, err := runPipeline(t, cfg)

	require.NoError(t, err)
	require.Equal(t, 3, report.ProsePages)
	files := listOutput(t, "out")
	require.NotContains(t, files, "api-reference.md")
}

func TestRun_EntityFilenamesUseNodeIDVerbatim(t *testing.T) {
	tree := sampleTree()
	tree.Nodes[0].ID = "Sample.Store"
	cfg := setupProject(t, tree)

	_, _, err := runPipeline(t, cfg)

	require.NoError(t, err)
	require.Contains(t, listOutput(t, "out"), "Sample.Store.md")
}

func TestRun_HooksSeeFinalReportAndCannotFailTheRun(t *testing.T) {
	cfg := setupProject(t, sampleTree())

	var seen *RunReport
	hook := func(_ context.Context, r *RunReport) error {
		seen = r
		return os.ErrClosed
	}

	_, report, err := runPipeline(t, cfg, WithRunHook(hook))

	require.NoError(t, err)
	require.Same(t, report, seen)
	require.NotEmpty(t, seen.RunID)
	require.Equal(t, OutcomeSuccess, seen.Outcome)
	require.False(t, seen.End.IsZero())
}

func TestRun_PersistsReportWhenConfigured(t *testing.T) {
	cfg := setupProject(t, sampleTree())
	cfg.Report = "run-report.json"

	_, report, err := runPipeline(t, cfg)
	require.NoError(t, err)

	data, err := os.ReadFile("run-report.json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, report.RunID, got["run_id"])
	require.Equal(t, "success", got["outcome"])
	require.Len(t, got["pages"], 7)
}
