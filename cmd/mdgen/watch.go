package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/mdgen/internal/config"
	"git.home.luguber.info/inful/mdgen/internal/metrics"
	"git.home.luguber.info/inful/mdgen/internal/pipeline"
	"git.home.luguber.info/inful/mdgen/internal/watch"
)

// WatchCmd implements the 'watch' command: continuous regeneration with
// health, status and metrics endpoints.
type WatchCmd struct {
	Listen string `help:"Address for health, status and metrics endpoints"`
}

func (w *WatchCmd) Run(root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if w.Listen != "" {
		cfg.Watch.Listen = w.Listen
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	opts, cleanup, err := runHooks(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	opts = append(opts, pipeline.WithRecorder(recorder))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The configuration is re-read for every build; hooks, metrics, the
	// listen address and the debounce window are fixed until restart.
	build := func(ctx context.Context) (*pipeline.RunReport, error) {
		fresh, err := config.Load(root.Config)
		if err != nil {
			return nil, fmt.Errorf("reload configuration: %w", err)
		}
		p, err := pipeline.New(fresh, opts...)
		if err != nil {
			return nil, err
		}
		_, report, err := p.Run(ctx)
		return report, err
	}

	svc, err := watch.New(cfg, build,
		watch.WithRegistry(registry),
		watch.WithConfigFile(root.Config))
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}
