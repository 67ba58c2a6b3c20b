package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/mdgen/internal/config"
	"git.home.luguber.info/inful/mdgen/internal/history"
)

// HistoryCmd groups the run history subcommands.
type HistoryCmd struct {
	List    HistoryListCmd    `cmd:"" default:"1" help:"List recent runs"`
	Changes HistoryChangesCmd `cmd:"" help:"Show page changes of a run against its predecessor"`
}

func openHistory(cfg *config.Config) (*history.Store, error) {
	if cfg.History.Path == "" {
		return nil, fmt.Errorf("run history is not configured: set history.path in the configuration")
	}
	return history.New(cfg.History.Path)
}

// HistoryListCmd prints recent runs, newest first.
type HistoryListCmd struct {
	Limit int `short:"n" default:"10" help:"Number of runs to show"`
}

func (h *HistoryListCmd) Run(root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.RecentRuns(context.Background(), h.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tFINISHED\tOUTCOME\tPAGES\tWARNINGS\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.RunID, r.Finished.Format("2006-01-02 15:04:05"), r.Outcome,
			r.Pages, r.Warnings, r.Duration)
	}
	return w.Flush()
}

// HistoryChangesCmd diffs a run's page fingerprints against the previous run.
type HistoryChangesCmd struct {
	RunID string `arg:"" optional:"" help:"Run id (defaults to the most recent run)"`
}

func (h *HistoryChangesCmd) Run(root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	runID := h.RunID
	if runID == "" {
		runs, err := store.RecentRuns(ctx, 1)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no recorded runs")
		}
		runID = runs[0].RunID
	}

	changes, err := store.Changes(ctx, runID)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		fmt.Printf("run %s: no page changes\n", runID)
		return nil
	}
	for _, c := range changes {
		fmt.Printf("%-8s %s\n", c.Kind, c.Filename)
	}
	return nil
}
