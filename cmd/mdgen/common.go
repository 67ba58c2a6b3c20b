package main

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/mdgen/internal/config"
	"git.home.luguber.info/inful/mdgen/internal/events"
	"git.home.luguber.info/inful/mdgen/internal/history"
	"git.home.luguber.info/inful/mdgen/internal/observability"
	"git.home.luguber.info/inful/mdgen/internal/pipeline"
)

// loadConfig loads the configuration and applies its logging section unless
// --verbose already forced debug logging.
func loadConfig(root *CLI) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	if !root.Verbose {
		logger, err := observability.Setup(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return nil, err
		}
		slog.SetDefault(logger)
	}
	return cfg, nil
}

// runHooks wires the optional run history store and event publisher into
// pipeline options. The returned cleanup closes whatever was opened.
func runHooks(cfg *config.Config) ([]pipeline.Option, func(), error) {
	var opts []pipeline.Option
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.History.Path != "" {
		store, err := history.New(cfg.History.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open run history: %w", err)
		}
		opts = append(opts, pipeline.WithRunHook(store.Hook()))
		closers = append(closers, func() { _ = store.Close() })
	}

	if cfg.Events.URL != "" {
		pub, err := events.NewPublisher(cfg.Events.URL, cfg.Events.Subject, slog.Default())
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect event publisher: %w", err)
		}
		opts = append(opts, pipeline.WithRunHook(pub.Hook()))
		closers = append(closers, func() { _ = pub.Close() })
	}

	return opts, cleanup, nil
}
