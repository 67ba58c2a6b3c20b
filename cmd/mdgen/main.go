package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/mdgen/internal/version"
)

// CLI is the root command grammar and global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"mdgen.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build      BuildCmd   `cmd:"" help:"Generate the documentation output directory"`
	Watch      WatchCmd   `cmd:"" help:"Watch sources and regenerate on change"`
	Init       InitCmd    `cmd:"" help:"Write a starter configuration file"`
	History    HistoryCmd `cmd:"" help:"Inspect recorded generation runs"`
	VersionCmd VersionCmd `cmd:"" name:"version" help:"Show version and build metadata"`
}

// AfterApply runs after flag parsing; sets up default logging once. Commands
// that load a configuration replace it with the configured handler.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("mdgen"),
		kong.Description("Generates a Markdown documentation site from a documentation tree and prose sources."),
		kong.Vars{"version": version.Version},
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli))
}
