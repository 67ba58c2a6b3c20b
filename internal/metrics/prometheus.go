package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration     *prom.HistogramVec
	runDuration       prom.Histogram
	stageResults      *prom.CounterVec
	runOutcomes       *prom.CounterVec
	pageRenderDur     *prom.HistogramVec
	pagesProduced     prom.Gauge
	renderConcurrency prom.Gauge
	staleRemoved      prom.Counter
	collisionWarnings prom.Counter
}

// NewPrometheusRecorder constructs and registers the mdgen metric family on
// the given registry. A nil registry gets a private one, which keeps tests
// isolated from the default registerer.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "mdgen",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual run stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "mdgen",
			Name:      "run_duration_seconds",
			Help:      "Total generation run duration",
			Buckets:   prom.DefBuckets,
		}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "mdgen",
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "mdgen",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"}),
		pageRenderDur: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "mdgen",
			Name:      "page_render_duration_seconds",
			Help:      "Duration of individual page builds and renders",
			Buckets:   prom.DefBuckets,
		}, []string{"kind", "result"}),
		pagesProduced: prom.NewGauge(prom.GaugeOpts{
			Namespace: "mdgen",
			Name:      "pages_produced",
			Help:      "Pages written by the most recent run",
		}),
		renderConcurrency: prom.NewGauge(prom.GaugeOpts{
			Namespace: "mdgen",
			Name:      "render_concurrency",
			Help:      "Worker limit used for the concurrent render phases",
		}),
		staleRemoved: prom.NewCounter(prom.CounterOpts{
			Namespace: "mdgen",
			Name:      "stale_files_removed_total",
			Help:      "Previously generated files deleted during output preparation",
		}),
		collisionWarnings: prom.NewCounter(prom.CounterOpts{
			Namespace: "mdgen",
			Name:      "collision_warnings_total",
			Help:      "Pages whose destination file already existed at write time",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.runDuration, pr.stageResults,
		pr.runOutcomes, pr.pageRenderDur, pr.pagesProduced, pr.renderConcurrency,
		pr.staleRemoved, pr.collisionWarnings)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) ObservePageRender(kind string, d time.Duration, success bool) {
	if p == nil || p.pageRenderDur == nil {
		return
	}
	result := "failed"
	if success {
		result = "success"
	}
	p.pageRenderDur.WithLabelValues(kind, result).Observe(d.Seconds())
}

func (p *PrometheusRecorder) SetPagesProduced(n int) {
	if p == nil || p.pagesProduced == nil {
		return
	}
	p.pagesProduced.Set(float64(n))
}

func (p *PrometheusRecorder) SetRenderConcurrency(n int) {
	if p == nil || p.renderConcurrency == nil {
		return
	}
	p.renderConcurrency.Set(float64(n))
}

func (p *PrometheusRecorder) AddStaleRemoved(n int) {
	if p == nil || p.staleRemoved == nil || n <= 0 {
		return
	}
	p.staleRemoved.Add(float64(n))
}

func (p *PrometheusRecorder) IncCollisionWarning() {
	if p == nil || p.collisionWarnings == nil {
		return
	}
	p.collisionWarnings.Inc()
}

// HTTPHandler serves the registry in Prometheus exposition format. Watch mode
// mounts it at /metrics.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
