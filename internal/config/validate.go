package config

import (
	"errors"
	"fmt"
	"time"

	"git.home.luguber.info/inful/mdgen/internal/linker"
	"git.home.luguber.info/inful/mdgen/internal/observability"
)

// Validate checks structural consistency. Source files are not touched here;
// the pipeline validates them against the filesystem at run time.
func (c *Config) Validate() error {
	if c.Project.Name == "" {
		return errors.New("project.name must be set")
	}
	if c.Tree == "" {
		return errors.New("tree must point to a documentation tree file")
	}

	for i, extra := range c.Extras {
		if extra.Path == "" {
			return fmt.Errorf("extras[%d]: path must be set", i)
		}
	}

	seen := make(map[string]bool)
	for i, g := range c.Groups {
		if g.Name == "" {
			return fmt.Errorf("groups[%d]: name must be set", i)
		}
		if seen[g.Name] {
			return fmt.Errorf("duplicate group name: %s", g.Name)
		}
		seen[g.Name] = true
	}

	if _, err := linker.ForMode(c.Linker.Mode); err != nil {
		return err
	}

	if c.Render.Concurrency < 0 {
		return fmt.Errorf("render.concurrency must not be negative, got %d", c.Render.Concurrency)
	}

	if c.Watch.Debounce != "" {
		if _, err := time.ParseDuration(c.Watch.Debounce); err != nil {
			return fmt.Errorf("watch.debounce: %w", err)
		}
	}
	if c.Watch.Interval != "" {
		if _, err := time.ParseDuration(c.Watch.Interval); err != nil {
			return fmt.Errorf("watch.interval: %w", err)
		}
	}

	if _, err := observability.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}
