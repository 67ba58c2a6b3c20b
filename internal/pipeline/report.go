package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunOutcome is the typed enumeration of final run result states.
type RunOutcome string

const (
	OutcomeSuccess  RunOutcome = "success"
	OutcomeWarning  RunOutcome = "warning"
	OutcomeFailed   RunOutcome = "failed"
	OutcomeCanceled RunOutcome = "canceled"
)

// StageCount aggregates result classifications for one stage.
type StageCount struct {
	Success  int `json:"success"`
	Warning  int `json:"warning"`
	Fatal    int `json:"fatal"`
	Canceled int `json:"canceled"`
}

// PageRecord describes one produced page.
type PageRecord struct {
	Filename     string `json:"filename"`
	ID           string `json:"id"`
	Title        string `json:"title"`
	Group        string `json:"group,omitempty"`
	Kind         string `json:"kind"`
	Fingerprint  string `json:"fingerprint,omitempty"`
	CanonicalURL string `json:"canonical_url,omitempty"`
}

// RunReport captures metrics and results for one generation run. Warnings may
// be appended from concurrent page writers; those paths go through the
// mutex-guarded add methods.
type RunReport struct {
	SchemaVersion   int
	RunID           string
	Project         string
	Version         string
	Start           time.Time
	End             time.Time
	Errors          []error
	Warnings        []error
	StageDurations  map[string]time.Duration
	StageErrorKinds map[string]string
	StageCounts     map[string]StageCount
	ProsePages      int
	EntityPages     int
	Pages           []PageRecord
	OutputDir       string
	Outcome         RunOutcome

	mu sync.Mutex
}

func newRunReport(runID, project, version string) *RunReport {
	return &RunReport{
		SchemaVersion:   1,
		RunID:           runID,
		Project:         project,
		Version:         version,
		Start:           time.Now(),
		StageDurations:  make(map[string]time.Duration),
		StageErrorKinds: make(map[string]string),
		StageCounts:     make(map[string]StageCount),
	}
}

func (r *RunReport) addWarning(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, err)
}

func (r *RunReport) addError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, err)
}

func (r *RunReport) countStage(stage string, kind StageErrorKind) {
	sc := r.StageCounts[stage]
	switch kind {
	case StageErrorWarning:
		sc.Warning++
	case StageErrorCanceled:
		sc.Canceled++
	case StageErrorFatal:
		sc.Fatal++
	default:
		sc.Success++
	}
	r.StageCounts[stage] = sc
}

func (r *RunReport) finish() {
	if r.End.IsZero() {
		r.End = time.Now()
	}
}

// deriveOutcome sets Outcome from recorded errors and warnings.
func (r *RunReport) deriveOutcome() {
	for _, e := range r.Errors {
		if se, ok := e.(*StageError); ok && se.Kind == StageErrorCanceled {
			r.Outcome = OutcomeCanceled
			return
		}
	}
	if len(r.Errors) > 0 {
		r.Outcome = OutcomeFailed
		return
	}
	if len(r.Warnings) > 0 {
		r.Outcome = OutcomeWarning
		return
	}
	r.Outcome = OutcomeSuccess
}

// Duration returns the wall-clock run time.
func (r *RunReport) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// Summary returns a human-readable single-line summary.
func (r *RunReport) Summary() string {
	return fmt.Sprintf("run=%s pages=%d prose=%d entities=%d duration=%s errors=%d warnings=%d outcome=%s",
		r.RunID, len(r.Pages), r.ProsePages, r.EntityPages,
		r.Duration().Truncate(time.Millisecond), len(r.Errors), len(r.Warnings), r.Outcome)
}

// Persist writes the report as JSON to path, atomically via temp file and
// rename. Best effort; callers log the error and keep the run outcome.
func (r *RunReport) Persist(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure report dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(r.serializable(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename report: %w", err)
	}
	return nil
}

// runReportSerializable mirrors RunReport with string errors for JSON output.
type runReportSerializable struct {
	SchemaVersion   int                      `json:"schema_version"`
	RunID           string                   `json:"run_id"`
	Project         string                   `json:"project"`
	Version         string                   `json:"version,omitempty"`
	Start           time.Time                `json:"start"`
	End             time.Time                `json:"end"`
	Errors          []string                 `json:"errors"`
	Warnings        []string                 `json:"warnings"`
	StageDurations  map[string]time.Duration `json:"stage_durations"`
	StageErrorKinds map[string]string        `json:"stage_error_kinds"`
	StageCounts     map[string]StageCount    `json:"stage_counts"`
	ProsePages      int                      `json:"prose_pages"`
	EntityPages     int                      `json:"entity_pages"`
	Pages           []PageRecord             `json:"pages"`
	OutputDir       string                   `json:"output_dir"`
	Outcome         RunOutcome               `json:"outcome"`
}

func (r *RunReport) serializable() *runReportSerializable {
	s := &runReportSerializable{
		SchemaVersion:   r.SchemaVersion,
		RunID:           r.RunID,
		Project:         r.Project,
		Version:         r.Version,
		Start:           r.Start,
		End:             r.End,
		Errors:          make([]string, len(r.Errors)),
		Warnings:        make([]string, len(r.Warnings)),
		StageDurations:  r.StageDurations,
		StageErrorKinds: r.StageErrorKinds,
		StageCounts:     r.StageCounts,
		ProsePages:      r.ProsePages,
		EntityPages:     r.EntityPages,
		Pages:           r.Pages,
		OutputDir:       r.OutputDir,
		Outcome:         r.Outcome,
	}
	for i, e := range r.Errors {
		s.Errors[i] = e.Error()
	}
	for i, w := range r.Warnings {
		s.Warnings[i] = w.Error()
	}
	return s
}
