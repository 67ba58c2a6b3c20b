package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Init writes an example configuration to path. An existing file is only
// replaced when force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	example := Config{
		Project: ProjectConfig{Name: "sample", Version: "0.1.0"},
		Tree:    "doc/tree.json",
		Output:  "doc/md",
		Extras: []ExtraConfig{
			{Path: "README.md", Filename: "readme", Title: "Overview"},
			{Path: "guides/getting-started.md"},
		},
		Groups: []GroupConfig{
			{Name: "Introduction", Patterns: []string{"README.md"}},
			{Name: "Guides", Patterns: []string{"guides/*"}},
		},
		Linker:     LinkerConfig{Mode: DefaultLinkerMode},
		SourceLink: SourceLinkConfig{Pattern: "https://git.example.com/sample/blob/%ref%/%path%#L%line%"},
		Watch: WatchConfig{
			Debounce: DefaultWatchDebounce,
			Listen:   DefaultWatchListen,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("marshal example config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
