// Package events publishes run completion notifications over NATS so other
// systems (site deployers, chat notifiers) can react to finished runs.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/mdgen/internal/logfields"
	"git.home.luguber.info/inful/mdgen/internal/observability"
	"git.home.luguber.info/inful/mdgen/internal/pipeline"
)

// RunCompleted is the payload published after every generation run,
// regardless of outcome.
type RunCompleted struct {
	RunID      string    `json:"run_id"`
	Project    string    `json:"project"`
	Version    string    `json:"version,omitempty"`
	Outcome    string    `json:"outcome"`
	DurationMS int64     `json:"duration_ms"`
	Pages      int       `json:"pages"`
	Warnings   int       `json:"warnings"`
	Errors     int       `json:"errors"`
	OutputDir  string    `json:"output_dir"`
	Timestamp  time.Time `json:"timestamp"`
}

func newRunCompleted(report *pipeline.RunReport) RunCompleted {
	return RunCompleted{
		RunID:      report.RunID,
		Project:    report.Project,
		Version:    report.Version,
		Outcome:    string(report.Outcome),
		DurationMS: report.Duration().Milliseconds(),
		Pages:      len(report.Pages),
		Warnings:   len(report.Warnings),
		Errors:     len(report.Errors),
		OutputDir:  report.OutputDir,
		Timestamp:  time.Now(),
	}
}

// Publisher publishes run events to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
	log     *slog.Logger
}

// NewPublisher connects to NATS. The connection reconnects automatically;
// a broker that is down at publish time only costs the notification.
func NewPublisher(url, subject string, log *slog.Logger) (*Publisher, error) {
	if url == "" {
		return nil, fmt.Errorf("events: NATS URL is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("events: subject is required")
	}
	if log == nil {
		log = slog.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("mdgen"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	log.Debug("connected to NATS", slog.String("url", url), slog.String("subject", subject))
	return &Publisher{conn: conn, subject: subject, log: log}, nil
}

// PublishRunCompleted publishes one run completion event and flushes.
func (p *Publisher) PublishRunCompleted(ctx context.Context, report *pipeline.RunReport) error {
	if report == nil {
		return fmt.Errorf("events: nil report")
	}

	data, err := json.Marshal(newRunCompleted(report))
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish run event: %w", err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush run event: %w", err)
	}

	observability.DebugContext(ctx, "published run event",
		logfields.Outcome(string(report.Outcome)),
		slog.String("subject", p.subject))
	return nil
}

// Hook adapts the publisher into a pipeline run hook.
func (p *Publisher) Hook() pipeline.RunHook {
	return func(ctx context.Context, report *pipeline.RunReport) error {
		return p.PublishRunCompleted(ctx, report)
	}
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
