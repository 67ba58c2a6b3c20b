// Package config loads and validates the mdgen configuration file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/mdgen/internal/grouping"
)

// Config is the full configuration for a generation run.
type Config struct {
	Project      ProjectConfig    `yaml:"project"`
	Tree         string           `yaml:"tree"`
	Output       string           `yaml:"output,omitempty"`
	Canonical    string           `yaml:"canonical,omitempty"`
	Extras       []ExtraConfig    `yaml:"extras,omitempty"`
	Groups       []GroupConfig    `yaml:"groups,omitempty"`
	APIReference *bool            `yaml:"api_reference,omitempty"`
	Linker       LinkerConfig     `yaml:"linker,omitempty"`
	SourceLink   SourceLinkConfig `yaml:"source_link,omitempty"`
	Render       RenderConfig     `yaml:"render,omitempty"`
	Report       string           `yaml:"report,omitempty"`
	History      HistoryConfig    `yaml:"history,omitempty"`
	Events       EventsConfig     `yaml:"events,omitempty"`
	Watch        WatchConfig      `yaml:"watch,omitempty"`
	Logging      LoggingConfig    `yaml:"logging,omitempty"`
}

// ProjectConfig names the documented project.
type ProjectConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version,omitempty"`
}

// ExtraConfig is one prose source entry. Filename and Title override the
// derived page id and extracted title.
type ExtraConfig struct {
	Path     string `yaml:"path"`
	Filename string `yaml:"filename,omitempty"`
	Title    string `yaml:"title,omitempty"`
}

// GroupConfig declares a page group. List position doubles as sort rank:
// pages in earlier groups come first, ungrouped pages last.
type GroupConfig struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns,omitempty"`
}

// LinkerConfig selects the cross-reference linker. Deps names external
// projects; it is handed to the linker's Compile untouched.
type LinkerConfig struct {
	Mode string   `yaml:"mode,omitempty"` // auto|off
	Deps []string `yaml:"deps,omitempty"`
}

// SourceLinkConfig builds [View source] URLs. Pattern may reference %ref%,
// %path% and %line%; an empty Ref is filled from the git HEAD commit when the
// pattern needs one.
type SourceLinkConfig struct {
	Pattern string `yaml:"pattern,omitempty"`
	Ref     string `yaml:"ref,omitempty"`
}

// RenderConfig tunes the concurrent build phases.
type RenderConfig struct {
	Concurrency int `yaml:"concurrency,omitempty"` // 0 = GOMAXPROCS
}

// HistoryConfig enables the run history store when Path is set.
type HistoryConfig struct {
	Path string `yaml:"path,omitempty"`
}

// EventsConfig enables run-completed events when URL is set.
type EventsConfig struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// WatchConfig tunes watch mode. Durations are strings in time.ParseDuration
// syntax so they read naturally in YAML.
type WatchConfig struct {
	Debounce string `yaml:"debounce,omitempty"`
	Interval string `yaml:"interval,omitempty"`
	Listen   string `yaml:"listen,omitempty"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // text|json
}

const (
	DefaultOutput        = "doc"
	DefaultLinkerMode    = "auto"
	DefaultEventsSubject = "mdgen.runs"
	DefaultWatchDebounce = "2s"
	DefaultWatchListen   = ":9313"
)

// Load reads the configuration, expanding ${VAR} references from the
// environment. A .env or .env.local file next to the working directory is
// loaded first without overriding variables already set.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func loadEnvFiles() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("could not load env file", "path", envPath, "error", err)
			continue
		}
		slog.Debug("loaded env file", "path", envPath)
	}
}

func (c *Config) applyDefaults() {
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Linker.Mode == "" {
		c.Linker.Mode = DefaultLinkerMode
	}
	if c.Events.Subject == "" {
		c.Events.Subject = DefaultEventsSubject
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = DefaultWatchDebounce
	}
	if c.Watch.Listen == "" {
		c.Watch.Listen = DefaultWatchListen
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// APIReferenceEnabled reports whether the generated API Reference landing
// page is wanted. Enabled unless explicitly switched off.
func (c *Config) APIReferenceEnabled() bool {
	return c.APIReference == nil || *c.APIReference
}

// GroupRules converts the configured groups into matcher rules.
func (c *Config) GroupRules() []grouping.Rule {
	rules := make([]grouping.Rule, 0, len(c.Groups))
	for _, g := range c.Groups {
		rules = append(rules, grouping.Rule{Name: g.Name, Patterns: g.Patterns})
	}
	return rules
}

// GroupOrdering returns the group names in configured order.
func (c *Config) GroupOrdering() []string {
	names := make([]string, 0, len(c.Groups))
	for _, g := range c.Groups {
		names = append(names, g.Name)
	}
	return names
}

// DebounceDuration returns the parsed watch debounce window.
func (w WatchConfig) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultWatchDebounce)
	}
	return d
}

// IntervalDuration returns the scheduled rebuild interval, if configured.
func (w WatchConfig) IntervalDuration() (time.Duration, bool) {
	if w.Interval == "" {
		return 0, false
	}
	d, err := time.ParseDuration(w.Interval)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}
