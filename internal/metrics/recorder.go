// Package metrics defines the observability hooks for generation runs. The
// default NoopRecorder keeps every call site unconditional; the Prometheus
// recorder is injected when watch mode serves a metrics endpoint.
package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultWarning  ResultLabel = "warning"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines the hooks the pipeline calls while generating. All
// implementations must tolerate nil receivers so injection stays optional.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncRunOutcome(outcome string) // outcome: success|warning|failed|canceled
	ObservePageRender(kind string, d time.Duration, success bool)
	SetPagesProduced(n int)
	SetRenderConcurrency(n int)
	AddStaleRemoved(n int)
	IncCollisionWarning()
}

// NoopRecorder is the default Recorder when no metrics sink is configured.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}

func (NoopRecorder) ObserveRunDuration(time.Duration) {}

func (NoopRecorder) IncStageResult(string, ResultLabel) {}

func (NoopRecorder) IncRunOutcome(string) {}

func (NoopRecorder) ObservePageRender(string, time.Duration, bool) {}

func (NoopRecorder) SetPagesProduced(int) {}

func (NoopRecorder) SetRenderConcurrency(int) {}

func (NoopRecorder) AddStaleRemoved(int) {}

func (NoopRecorder) IncCollisionWarning() {}
