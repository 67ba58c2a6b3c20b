package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/mdgen/internal/logfields"
	"git.home.luguber.info/inful/mdgen/internal/pipeline"
)

// BuildCmd implements the 'build' command: one generation run.
type BuildCmd struct {
	Output      string `short:"o" help:"Output directory override"`
	Report      string `help:"Write a JSON run report to this path"`
	Concurrency int    `help:"Concurrent page renders (0 = all CPUs)"`
}

func (b *BuildCmd) Run(root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if b.Output != "" {
		cfg.Output = b.Output
	}
	if b.Report != "" {
		cfg.Report = b.Report
	}
	if b.Concurrency > 0 {
		cfg.Render.Concurrency = b.Concurrency
	}

	opts, cleanup, err := runHooks(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dir, report, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	slog.Info("documentation generated",
		logfields.Output(dir),
		logfields.Count(len(report.Pages)),
		logfields.Outcome(string(report.Outcome)))
	return nil
}
