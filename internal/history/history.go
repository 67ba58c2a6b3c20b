// Package history persists generation run summaries in SQLite so past runs
// can be listed and compared after the process exits.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/mdgen/internal/pipeline"
)

// Run is one recorded generation run.
type Run struct {
	RunID     string
	Project   string
	Version   string
	Outcome   string
	Started   time.Time
	Finished  time.Time
	Duration  time.Duration
	Pages     int
	Warnings  int
	Errors    int
	OutputDir string
}

// PageEntry is one produced page of a recorded run.
type PageEntry struct {
	Filename    string
	PageID      string
	Title       string
	Group       string
	Kind        string
	Fingerprint string
}

// Change describes how a page differs from the previous run of the same
// project.
type Change struct {
	Filename string
	Kind     ChangeKind
}

type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
)

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens or creates a run history database. Use ":memory:" for an
// in-memory database, or a file path for persistent storage.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		project TEXT NOT NULL,
		version TEXT,
		outcome TEXT NOT NULL,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		pages INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		output_dir TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);

	CREATE TABLE IF NOT EXISTS run_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		page_id TEXT NOT NULL,
		title TEXT,
		page_group TEXT,
		kind TEXT NOT NULL,
		fingerprint TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_run_pages_run_id ON run_pages(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordRun stores a finished run and its page inventory in one transaction.
func (s *Store) RecordRun(ctx context.Context, report *pipeline.RunReport) error {
	if report == nil {
		return fmt.Errorf("record run: nil report")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, project, version, outcome, started, finished, duration_ms, pages, warnings, errors, output_dir)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.Project, report.Version, string(report.Outcome),
		report.Start.Unix(), report.End.Unix(), report.Duration().Milliseconds(),
		len(report.Pages), len(report.Warnings), len(report.Errors), report.OutputDir,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, pg := range report.Pages {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_pages (run_id, filename, page_id, title, page_group, kind, fingerprint)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, pg.Filename, pg.ID, pg.Title, pg.Group, pg.Kind, pg.Fingerprint,
		)
		if err != nil {
			return fmt.Errorf("insert run page %s: %w", pg.Filename, err)
		}
	}

	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, project, version, outcome, started, finished, duration_ms, pages, warnings, errors, output_dir
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Run returns one recorded run by its id.
func (s *Store) Run(ctx context.Context, runID string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, project, version, outcome, started, finished, duration_ms, pages, warnings, errors, output_dir
		 FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return Run{}, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, fmt.Errorf("run %s not found", runID)
	}
	return runs[0], nil
}

// RunPages returns the page inventory of one run in production order.
func (s *Store) RunPages(ctx context.Context, runID string) ([]PageEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, page_id, title, page_group, kind, fingerprint
		 FROM run_pages WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run pages: %w", err)
	}
	defer rows.Close()

	var pages []PageEntry
	for rows.Next() {
		var p PageEntry
		if err := rows.Scan(&p.Filename, &p.PageID, &p.Title, &p.Group, &p.Kind, &p.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan run page: %w", err)
		}
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return pages, nil
}

// Changes compares a run's page fingerprints against the previous run of the
// same project. The first recorded run reports every page as added.
func (s *Store) Changes(ctx context.Context, runID string) ([]Change, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	var prevID string
	err = s.db.QueryRowContext(ctx,
		`SELECT run_id FROM runs WHERE project = ? AND id < (SELECT id FROM runs WHERE run_id = ?)
		 ORDER BY id DESC LIMIT 1`,
		run.Project, runID).Scan(&prevID)
	s.mu.RUnlock()
	if err == sql.ErrNoRows {
		prevID = ""
	} else if err != nil {
		return nil, fmt.Errorf("query previous run: %w", err)
	}

	current, err := s.RunPages(ctx, runID)
	if err != nil {
		return nil, err
	}
	previous := map[string]string{}
	if prevID != "" {
		prevPages, err := s.RunPages(ctx, prevID)
		if err != nil {
			return nil, err
		}
		for _, p := range prevPages {
			previous[p.Filename] = p.Fingerprint
		}
	}

	var changes []Change
	for _, p := range current {
		prev, ok := previous[p.Filename]
		switch {
		case !ok:
			changes = append(changes, Change{Filename: p.Filename, Kind: ChangeAdded})
		case prev != p.Fingerprint:
			changes = append(changes, Change{Filename: p.Filename, Kind: ChangeUpdated})
		}
		delete(previous, p.Filename)
	}
	for name := range previous {
		changes = append(changes, Change{Filename: name, Kind: ChangeRemoved})
	}
	return changes, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished, durationMS int64
		err := rows.Scan(&r.RunID, &r.Project, &r.Version, &r.Outcome,
			&started, &finished, &durationMS, &r.Pages, &r.Warnings, &r.Errors, &r.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.Unix(started, 0)
		r.Finished = time.Unix(finished, 0)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Hook adapts the store into a pipeline run hook.
func (s *Store) Hook() pipeline.RunHook {
	return func(ctx context.Context, report *pipeline.RunReport) error {
		return s.RecordRun(ctx, report)
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
