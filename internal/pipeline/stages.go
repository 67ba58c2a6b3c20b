package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/mdgen/internal/config"
	"git.home.luguber.info/inful/mdgen/internal/dispatch"
	"git.home.luguber.info/inful/mdgen/internal/doctree"
	"git.home.luguber.info/inful/mdgen/internal/extras"
	"git.home.luguber.info/inful/mdgen/internal/gitinfo"
	"git.home.luguber.info/inful/mdgen/internal/grouping"
	"git.home.luguber.info/inful/mdgen/internal/logfields"
	"git.home.luguber.info/inful/mdgen/internal/metrics"
	"git.home.luguber.info/inful/mdgen/internal/observability"
	"git.home.luguber.info/inful/mdgen/internal/page"
	"git.home.luguber.info/inful/mdgen/internal/reconcile"
	"git.home.luguber.info/inful/mdgen/internal/render"
)

// Stage is a discrete unit of work in a generation run.
type Stage func(ctx context.Context, st *runState) error

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Run must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func newFatalStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}
func newWarnStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}
func newCanceledStageError(stage string, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

type stageDef struct {
	name string
	fn   Stage
}

// runStages executes stages in order, recording timing and classification,
// stopping on the first fatal or canceled error. Warnings are recorded and
// the run continues.
func (p *Pipeline) runStages(ctx context.Context, st *runState, stages []stageDef) error {
	for _, sd := range stages {
		select {
		case <-ctx.Done():
			se := newCanceledStageError(sd.name, ctx.Err())
			st.report.addError(se)
			st.report.StageErrorKinds[sd.name] = string(se.Kind)
			st.report.countStage(sd.name, StageErrorCanceled)
			p.recorder.IncStageResult(sd.name, metrics.ResultCanceled)
			return se
		default:
		}

		t0 := time.Now()
		err := sd.fn(observability.WithStage(ctx, sd.name), st)
		dur := time.Since(t0)
		st.report.StageDurations[sd.name] = dur
		p.recorder.ObserveStageDuration(sd.name, dur)
		log := st.log.With(logfields.Stage(sd.name))

		if err == nil {
			st.report.countStage(sd.name, "")
			p.recorder.IncStageResult(sd.name, metrics.ResultSuccess)
			log.Debug("stage finished", logfields.DurationMS(dur))
			continue
		}

		var se *StageError
		if !errors.As(err, &se) {
			se = newFatalStageError(sd.name, err)
		}
		st.report.StageErrorKinds[sd.name] = string(se.Kind)
		st.report.countStage(sd.name, se.Kind)
		p.recorder.IncStageResult(sd.name, resultLabelFor(se.Kind))

		if se.Kind == StageErrorWarning {
			st.report.addWarning(se)
			log.Warn("stage finished with warning", logfields.Error(se))
			continue
		}
		st.report.addError(se)
		log.Error("stage failed", logfields.Error(se))
		return se
	}
	return nil
}

func resultLabelFor(k StageErrorKind) metrics.ResultLabel {
	switch k {
	case StageErrorWarning:
		return metrics.ResultWarning
	case StageErrorCanceled:
		return metrics.ResultCanceled
	default:
		return metrics.ResultFatal
	}
}

// Page kind labels used in records and metrics. Entity pages use the node
// kind name instead.
const (
	kindProse = "prose"
	kindIndex = "index"
)

func sourceFromConfig(e config.ExtraConfig) extras.Source {
	return extras.Source{Path: e.Path, Filename: e.Filename, Title: e.Title}
}

// stageValidate rejects misconfigured prose sources before any destructive
// output work happens.
func stageValidate(_ context.Context, st *runState) error {
	cfg := st.pipeline.cfg
	for _, e := range cfg.Extras {
		if err := extras.CheckSource(sourceFromConfig(e)); err != nil {
			return newFatalStageError("validate", err)
		}
	}
	if _, err := os.Stat(cfg.Tree); err != nil {
		return newFatalStageError("validate", fmt.Errorf("documentation tree: %w", err))
	}
	return nil
}

// stageLoadTree parses the documentation tree and enriches nodes with source
// links. A missing git HEAD only degrades source links, never the run.
func stageLoadTree(_ context.Context, st *runState) error {
	cfg := st.pipeline.cfg

	tree, err := doctree.Load(cfg.Tree)
	if err != nil {
		return newFatalStageError("load_tree", err)
	}
	st.tree = tree

	if cfg.SourceLink.Pattern == "" {
		return nil
	}
	ref := cfg.SourceLink.Ref
	if ref == "" && strings.Contains(cfg.SourceLink.Pattern, "%ref%") {
		head, herr := gitinfo.HeadCommit(".")
		if herr != nil {
			return newWarnStageError("load_tree", fmt.Errorf("source links skipped, cannot resolve git HEAD: %w", herr))
		}
		ref = head
	}
	doctree.ApplySourceLinks(tree, doctree.SourceLink{Pattern: cfg.SourceLink.Pattern, Ref: ref})
	return nil
}

func stagePrepareOutput(_ context.Context, st *runState) error {
	abs, err := filepath.Abs(st.pipeline.cfg.Output)
	if err != nil {
		return newFatalStageError("prepare_output", fmt.Errorf("resolve output dir: %w", err))
	}
	st.outputDir = abs
	st.reconciler = reconcile.New(abs)

	prev, hadManifest, err := st.reconciler.Prepare(nil)
	if err != nil {
		return newFatalStageError("prepare_output", err)
	}
	if hadManifest {
		st.pipeline.recorder.AddStaleRemoved(len(prev.Files))
		st.log.Debug("cleared previous run output", logfields.Count(len(prev.Files)), logfields.Output(abs))
	} else {
		st.log.Debug("no manifest found, reset output directory", logfields.Output(abs))
	}
	return nil
}

// stageResolveLinks compiles the linker once against the whole tree and
// produces the link-resolved copy every later stage reads.
func stageResolveLinks(_ context.Context, st *runState) error {
	p := st.pipeline
	if err := p.linker.Compile(st.tree, page.Extension, p.cfg.Linker.Deps); err != nil {
		return newFatalStageError("resolve_links", fmt.Errorf("compile linker: %w", err))
	}
	linked, err := p.linker.ResolveAll(st.tree)
	if err != nil {
		return newFatalStageError("resolve_links", err)
	}
	st.linked = linked
	return nil
}

func stagePartition(_ context.Context, st *runState) error {
	st.nodes = doctree.Partition(st.linked)
	st.log.Debug("partitioned documentation tree",
		slog.Int("modules", len(st.nodes.Modules)),
		slog.Int("exceptions", len(st.nodes.Exceptions)),
		slog.Int("tasks", len(st.nodes.Tasks)))
	return nil
}

// stageBuildExtras builds every prose page concurrently, sorts the collection
// by group rank, and prepends the API reference landing page.
func stageBuildExtras(ctx context.Context, st *runState) error {
	p := st.pipeline
	cfg := p.cfg

	builder := &extras.Builder{Linker: p.linker, Matcher: p.matcher}
	sources := make([]extras.Source, len(cfg.Extras))
	for i, e := range cfg.Extras {
		sources[i] = sourceFromConfig(e)
	}

	results := dispatch.Run(ctx, sources, cfg.Render.Concurrency,
		func(_ context.Context, src extras.Source) (page.Page, error) {
			t0 := time.Now()
			pg, err := builder.Build(src)
			p.recorder.ObservePageRender(kindProse, time.Since(t0), err == nil)
			return pg, err
		})
	pages, err := dispatch.Collect(results)
	if err != nil {
		return newFatalStageError("build_extras", err)
	}

	grouping.SortPages(pages, cfg.GroupOrdering())

	built := make([]builtPage, 0, len(pages)+1)
	if cfg.APIReferenceEnabled() {
		ref, err := render.APIReference(st.nodes, p.renderConfig())
		if err != nil {
			return newFatalStageError("build_extras", err)
		}
		built = append(built, builtPage{Page: ref, kind: kindIndex})
	}
	for _, pg := range pages {
		built = append(built, builtPage{Page: pg, kind: kindProse})
	}
	for i := range built {
		p.stampCanonical(&built[i].Page)
	}

	st.prose = built
	st.report.ProsePages = len(built)
	return nil
}

// stageWriteExtras writes the sorted prose pages sequentially so manifest
// order matches page order.
func stageWriteExtras(_ context.Context, st *runState) error {
	for _, bp := range st.prose {
		rec, err := st.pipeline.writePage(st, bp.Page, bp.kind)
		if err != nil {
			return newFatalStageError("write_extras", err)
		}
		st.produced = append(st.produced, rec.Filename)
		st.report.Pages = append(st.report.Pages, rec)
	}
	return nil
}

// stageRenderEntities renders and writes every entity page concurrently. Each
// render sees the full NodesMap as shared read-only context. One failing page
// never stops the others; the stage fails after all of them finished.
func stageRenderEntities(ctx context.Context, st *runState) error {
	p := st.pipeline
	items := st.nodes.All()
	if len(items) == 0 {
		return nil
	}

	results := dispatch.Run(ctx, items, p.cfg.Render.Concurrency,
		func(_ context.Context, n *doctree.Node) (PageRecord, error) {
			t0 := time.Now()
			content, err := p.renderer.RenderEntityPage(n, st.nodes, p.renderConfig())
			if err != nil {
				p.recorder.ObservePageRender(n.Kind.String(), time.Since(t0), false)
				return PageRecord{}, err
			}
			pg := page.Page{ID: n.ID, Title: n.Title, Group: n.Group, Content: content}
			p.stampCanonical(&pg)
			rec, werr := p.writePage(st, pg, n.Kind.String())
			p.recorder.ObservePageRender(n.Kind.String(), time.Since(t0), werr == nil)
			return rec, werr
		})

	records, err := dispatch.Collect(results)
	if err != nil {
		return newFatalStageError("render_entities", err)
	}
	for _, rec := range records {
		st.produced = append(st.produced, rec.Filename)
		st.report.Pages = append(st.report.Pages, rec)
	}
	st.report.EntityPages = len(records)
	return nil
}

// stageCommitManifest persists the manifest as the run's last filesystem
// step. A run that failed earlier never reaches this point, leaving no
// manifest for a partial output set.
func stageCommitManifest(_ context.Context, st *runState) error {
	if err := st.reconciler.Commit(st.produced); err != nil {
		return newFatalStageError("commit_manifest", err)
	}
	st.pipeline.recorder.SetPagesProduced(len(st.produced))
	st.log.Info("wrote output manifest", logfields.Count(len(st.produced)), logfields.Output(st.outputDir))
	return nil
}
