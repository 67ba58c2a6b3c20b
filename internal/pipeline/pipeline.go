// Package pipeline orchestrates a generation run: validate sources, clear
// stale output, resolve cross-references, build prose and entity pages, and
// commit the output manifest.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/mdgen/internal/config"
	"git.home.luguber.info/inful/mdgen/internal/doctree"
	"git.home.luguber.info/inful/mdgen/internal/grouping"
	"git.home.luguber.info/inful/mdgen/internal/linker"
	"git.home.luguber.info/inful/mdgen/internal/logfields"
	"git.home.luguber.info/inful/mdgen/internal/metrics"
	"git.home.luguber.info/inful/mdgen/internal/observability"
	"git.home.luguber.info/inful/mdgen/internal/page"
	"git.home.luguber.info/inful/mdgen/internal/reconcile"
	"git.home.luguber.info/inful/mdgen/internal/render"
)

// RunHook runs after a generation run finished and the report is final.
// Hook failures are logged, never escalated: history and event sinks must
// not change a run's outcome.
type RunHook func(ctx context.Context, report *RunReport) error

// Pipeline executes generation runs for one configuration.
type Pipeline struct {
	cfg      *config.Config
	log      *slog.Logger
	linker   linker.Linker
	renderer render.Renderer
	recorder metrics.Recorder
	matcher  *grouping.Matcher
	hooks    []RunHook
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.log = l } }

func WithLinker(l linker.Linker) Option { return func(p *Pipeline) { p.linker = l } }

func WithRenderer(r render.Renderer) Option { return func(p *Pipeline) { p.renderer = r } }

func WithRecorder(r metrics.Recorder) Option { return func(p *Pipeline) { p.recorder = r } }
func WithRunHook(h RunHook) Option {
	return func(p *Pipeline) { p.hooks = append(p.hooks, h) }
}

// New builds a pipeline from a validated configuration. The built-in linker
// and Markdown renderer are used unless options replace them.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	p := &Pipeline{
		cfg:      cfg,
		log:      slog.Default(),
		renderer: render.NewMarkdown(),
		recorder: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.linker == nil {
		l, err := linker.ForMode(cfg.Linker.Mode)
		if err != nil {
			return nil, err
		}
		p.linker = l
	}
	matcher, err := grouping.NewMatcher(cfg.GroupRules())
	if err != nil {
		return nil, fmt.Errorf("group rules: %w", err)
	}
	p.matcher = matcher
	return p, nil
}

// runState carries mutable state across the stages of one run.
type runState struct {
	pipeline   *Pipeline
	log        *slog.Logger
	report     *RunReport
	reconciler *reconcile.Reconciler
	outputDir  string
	tree       *doctree.Tree
	linked     *doctree.Tree
	nodes      *doctree.NodesMap
	prose      []builtPage
	produced   []string
}

// builtPage pairs a prose page with its record kind label.
type builtPage struct {
	page.Page
	kind string
}

// Run executes one full generation run. It returns the output directory
// relative to the current working directory, the run report, and the first
// fatal error if the run aborted. Run hooks and report persistence happen
// regardless of outcome.
func (p *Pipeline) Run(ctx context.Context) (string, *RunReport, error) {
	report := newRunReport(uuid.NewString(), p.cfg.Project.Name, p.cfg.Project.Version)
	ctx = observability.WithRunID(ctx, report.RunID)
	log := p.log.With(logfields.RunID(report.RunID))
	st := &runState{pipeline: p, log: log, report: report}

	log.Info("starting generation run", logfields.Output(p.cfg.Output))
	p.recorder.SetRenderConcurrency(p.effectiveConcurrency())

	runErr := p.runStages(ctx, st, []stageDef{
		{"validate", stageValidate},
		{"load_tree", stageLoadTree},
		{"prepare_output", stagePrepareOutput},
		{"resolve_links", stageResolveLinks},
		{"partition", stagePartition},
		{"build_extras", stageBuildExtras},
		{"write_extras", stageWriteExtras},
		{"render_entities", stageRenderEntities},
		{"commit_manifest", stageCommitManifest},
	})

	report.finish()
	report.deriveOutcome()
	report.OutputDir = relativeTo(st.outputDir)
	p.recorder.ObserveRunDuration(report.Duration())
	p.recorder.IncRunOutcome(string(report.Outcome))

	if runErr == nil {
		log.Info("generation run finished",
			logfields.Outcome(string(report.Outcome)),
			logfields.Count(len(st.produced)),
			logfields.DurationMS(report.Duration()))
	}

	for _, hook := range p.hooks {
		if err := hook(ctx, report); err != nil {
			log.Warn("run hook failed", logfields.Error(err))
		}
	}
	if p.cfg.Report != "" {
		if err := report.Persist(p.cfg.Report); err != nil {
			log.Warn("could not persist run report", logfields.Error(err))
		} else {
			log.Debug("persisted run report", logfields.Path(p.cfg.Report))
		}
	}

	return report.OutputDir, report, runErr
}

func (p *Pipeline) effectiveConcurrency() int {
	if n := p.cfg.Render.Concurrency; n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}

func (p *Pipeline) renderConfig() render.Config {
	return render.Config{
		ProjectName:    p.cfg.Project.Name,
		ProjectVersion: p.cfg.Project.Version,
		Canonical:      p.cfg.Canonical,
	}
}

// stampCanonical fills the page's published URL under the canonical base.
func (p *Pipeline) stampCanonical(pg *page.Page) {
	if p.cfg.Canonical == "" {
		return
	}
	pg.CanonicalURL = strings.TrimSuffix(p.cfg.Canonical, "/") + "/" + pg.Filename()
}

// writePage writes one page into the output directory and returns its
// record. A destination that already exists at write time is overwritten
// with a warning; this surfaces both id collisions within a run and foreign
// files sharing a page name.
func (p *Pipeline) writePage(st *runState, pg page.Page, kind string) (PageRecord, error) {
	filename := pg.Filename()
	target := filepath.Join(st.outputDir, filename)

	if _, err := os.Stat(target); err == nil {
		warn := fmt.Errorf("file `%s` already exists", target)
		st.report.addWarning(warn)
		p.recorder.IncCollisionWarning()
		st.log.Warn(warn.Error(), logfields.Page(pg.ID), logfields.Kind(kind))
	}

	if err := os.WriteFile(target, []byte(pg.Content), 0o644); err != nil {
		return PageRecord{}, fmt.Errorf("write page %s: %w", filename, err)
	}

	return PageRecord{
		Filename:     filename,
		ID:           pg.ID,
		Title:        pg.Title,
		Group:        pg.Group,
		Kind:         kind,
		Fingerprint:  mdfp.CalculateFingerprintFromParts(pg.Title, pg.Content),
		CanonicalURL: pg.CanonicalURL,
	}, nil
}

// relativeTo expresses an absolute output dir relative to the working
// directory, matching how callers passed it in. Falls back to the absolute
// form when no relative expression exists.
func relativeTo(abs string) string {
	if abs == "" {
		return ""
	}
	cwd, err := os.Getwd()
	if err != nil {
		return abs
	}
	rel, err := filepath.Rel(cwd, abs)
	if err != nil {
		return abs
	}
	return rel
}
