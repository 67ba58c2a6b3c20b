package main

import (
	"log/slog"

	"git.home.luguber.info/inful/mdgen/internal/config"
	"git.home.luguber.info/inful/mdgen/internal/logfields"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(root *CLI) error {
	if err := config.Init(root.Config, i.Force); err != nil {
		return err
	}
	slog.Info("wrote configuration file", logfields.Path(root.Config))
	return nil
}
