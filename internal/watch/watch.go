// Package watch keeps the generated output current: it rebuilds on source
// changes, on a fixed interval, or both, and serves health, status and
// metrics endpoints while running.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/mdgen/internal/config"
	"git.home.luguber.info/inful/mdgen/internal/extras"
	"git.home.luguber.info/inful/mdgen/internal/logfields"
	"git.home.luguber.info/inful/mdgen/internal/metrics"
	"git.home.luguber.info/inful/mdgen/internal/pipeline"
	"git.home.luguber.info/inful/mdgen/internal/util/sets"
	"git.home.luguber.info/inful/mdgen/internal/version"
)

// BuildFunc runs one generation and returns its report. The service
// serializes calls; a build never overlaps the previous one.
type BuildFunc func(ctx context.Context) (*pipeline.RunReport, error)

// Service watches documentation sources and rebuilds on change.
type Service struct {
	cfg   *config.Config
	log   *slog.Logger
	build BuildFunc

	registry   *prometheus.Registry
	configFile string
	debounce   time.Duration

	watcher   *fsnotify.Watcher
	scheduler gocron.Scheduler
	server    *http.Server
	workers   workerGroup

	trigger chan struct{}
	builds  chan struct{}

	mu         sync.Mutex
	started    time.Time
	buildCount int
	lastReport *pipeline.RunReport
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithRegistry provides the metric registry exposed on the listen address.
func WithRegistry(r *prometheus.Registry) Option { return func(s *Service) { s.registry = r } }

// WithConfigFile also watches the configuration file, so edits to it
// trigger a rebuild. The build function decides whether to re-read it.
func WithConfigFile(path string) Option { return func(s *Service) { s.configFile = path } }

// New creates a watch service around a build function.
func New(cfg *config.Config, build BuildFunc, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("watch: nil config")
	}
	if build == nil {
		return nil, fmt.Errorf("watch: nil build function")
	}
	s := &Service{
		cfg:      cfg,
		log:      slog.Default(),
		build:    build,
		debounce: cfg.Watch.DebounceDuration(),
		trigger:  make(chan struct{}, 1),
		builds:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// watchDirs returns the directories worth watching: the tree file's
// directory, every prose source directory, and the config file's directory
// when one is set, deduplicated.
func (s *Service) watchDirs() ([]string, error) {
	dirs := sets.New[string]()
	var ordered []string
	add := func(p string) error {
		abs, err := filepath.Abs(filepath.Dir(p))
		if err != nil {
			return fmt.Errorf("resolve watch dir for %s: %w", p, err)
		}
		if !dirs.Has(abs) {
			dirs.Add(abs)
			ordered = append(ordered, abs)
		}
		return nil
	}
	if err := add(s.cfg.Tree); err != nil {
		return nil, err
	}
	for _, e := range s.cfg.Extras {
		if err := add(e.Path); err != nil {
			return nil, err
		}
	}
	if s.configFile != "" {
		if err := add(s.configFile); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// Run performs an initial build and then blocks, rebuilding on source
// changes until ctx is canceled. Build failures are logged, not fatal;
// the next change gets a fresh attempt.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = time.Now()
	s.mu.Unlock()

	s.runBuild(ctx)

	dirs, err := s.watchDirs()
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	s.watcher = watcher
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	s.log.Info("watching for changes",
		logfields.Count(len(dirs)),
		slog.String("debounce", s.debounce.String()))

	if err := s.startScheduler(); err != nil {
		_ = watcher.Close()
		return err
	}
	if err := s.startServer(); err != nil {
		s.stopScheduler()
		_ = watcher.Close()
		return err
	}

	s.workers.Go(func() { s.watchLoop(ctx) })
	s.workers.Go(func() { s.debounceLoop(ctx) })
	s.workers.Go(func() { s.buildLoop(ctx) })

	<-ctx.Done()
	return s.shutdown()
}

func (s *Service) startScheduler() error {
	interval, ok := s.cfg.Watch.IntervalDuration()
	if !ok {
		return nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.requestBuild),
		gocron.WithName("interval-rebuild"),
	)
	if err != nil {
		return fmt.Errorf("schedule interval rebuild: %w", err)
	}
	sched.Start()
	s.scheduler = sched
	s.log.Info("scheduled interval rebuilds", slog.String("interval", interval.String()))
	return nil
}

func (s *Service) stopScheduler() {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Shutdown(); err != nil {
		s.log.Error("could not stop scheduler", logfields.Error(err))
	}
}

func (s *Service) startServer() error {
	addr := s.cfg.Watch.Listen
	if addr == "" {
		return nil
	}
	reg := s.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("watch http server failed", logfields.Error(err))
		}
	}()
	s.log.Info("serving watch endpoints", slog.String("addr", addr))
	return nil
}

func (s *Service) shutdown() error {
	s.stopScheduler()
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.log.Error("could not close file watcher", logfields.Error(err))
		}
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.server != nil {
		if err := s.server.Shutdown(stopCtx); err != nil {
			s.log.Error("could not stop watch http server", logfields.Error(err))
		}
	}
	if err := s.workers.StopAndWait(stopCtx); err != nil {
		return fmt.Errorf("stop watch workers: %w", err)
	}
	s.log.Info("watch service stopped")
	return nil
}

// watchLoop turns relevant file events into rebuild requests.
func (s *Service) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !s.relevant(event) {
				continue
			}
			s.log.Debug("source change detected",
				logfields.Path(event.Name), slog.String("op", event.Op.String()))
			s.requestBuild()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Error("file watcher error", logfields.Error(err))
		}
	}
}

// relevant filters events down to the tree file, prose sources and the
// config file, and ignores anything under the output directory so a run
// never retriggers itself.
func (s *Service) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	if out, err := filepath.Abs(s.cfg.Output); err == nil {
		if abs, err := filepath.Abs(event.Name); err == nil {
			if abs == out || strings.HasPrefix(abs, out+string(filepath.Separator)) {
				return false
			}
		}
	}
	if filepath.Base(event.Name) == filepath.Base(s.cfg.Tree) {
		return true
	}
	if s.configFile != "" && filepath.Base(event.Name) == filepath.Base(s.configFile) {
		return true
	}
	return filepath.Ext(event.Name) == extras.SourceExtension
}

// requestBuild triggers a debounced rebuild. Safe from any goroutine.
func (s *Service) requestBuild() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// debounceLoop coalesces bursts of triggers into one build request.
func (s *Service) debounceLoop(ctx context.Context) {
	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.trigger:
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, func() {
				select {
				case s.builds <- struct{}{}:
				default:
				}
			})
		}
	}
}

// buildLoop serializes builds so one never overlaps the previous.
func (s *Service) buildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.builds:
			s.runBuild(ctx)
		}
	}
}

func (s *Service) runBuild(ctx context.Context) {
	report, err := s.build(ctx)

	s.mu.Lock()
	s.buildCount++
	if report != nil {
		s.lastReport = report
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("rebuild failed", logfields.Error(err))
		return
	}
	if report != nil {
		s.log.Info("rebuild finished",
			logfields.RunID(report.RunID),
			logfields.Outcome(string(report.Outcome)),
			logfields.DurationMS(report.Duration()))
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// statusResponse is the JSON shape served on /status.
type statusResponse struct {
	Project        string    `json:"project"`
	Version        string    `json:"version"`
	Uptime         string    `json:"uptime"`
	Builds         int       `json:"builds"`
	LastRunID      string    `json:"last_run_id,omitempty"`
	LastOutcome    string    `json:"last_outcome,omitempty"`
	LastDurationMS int64     `json:"last_duration_ms,omitempty"`
	LastFinished   time.Time `json:"last_finished"`
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	resp := statusResponse{
		Project: s.cfg.Project.Name,
		Version: version.Version,
		Uptime:  time.Since(s.started).Truncate(time.Second).String(),
		Builds:  s.buildCount,
	}
	if s.lastReport != nil {
		resp.LastRunID = s.lastReport.RunID
		resp.LastOutcome = string(s.lastReport.Outcome)
		resp.LastDurationMS = s.lastReport.Duration().Milliseconds()
		resp.LastFinished = s.lastReport.End
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("could not encode status", logfields.Error(err))
	}
}
