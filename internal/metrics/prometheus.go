package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration   *prom.HistogramVec
	runDuration     prom.Histogram
	documentResults *prom.CounterVec
	runOutcomes     *prom.CounterVec
	diagnostics     *prom.CounterVec
	documents       prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "refdoc",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "refdoc",
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   prom.DefBuckets,
		}),
		documentResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "refdoc",
			Name:      "document_results_total",
			Help:      "Per-document stage results by outcome",
		}, []string{"stage", "result"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "refdoc",
			Name:      "run_outcomes_total",
			Help:      "Runs by final outcome",
		}, []string{"outcome"}),
		diagnostics: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "refdoc",
			Name:      "diagnostics_total",
			Help:      "Diagnostics reported, by kind",
		}, []string{"kind"}),
		documents: prom.NewGauge(prom.GaugeOpts{
			Namespace: "refdoc",
			Name:      "documents",
			Help:      "Documents discovered by the last run",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.runDuration, pr.documentResults, pr.runOutcomes, pr.diagnostics, pr.documents)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncDocumentResult(stage string, result ResultLabel) {
	if p == nil {
		return
	}
	p.documentResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	if p == nil {
		return
	}
	p.runOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) AddDiagnostics(kind string, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.diagnostics.WithLabelValues(kind).Add(float64(n))
}

func (p *PrometheusRecorder) SetDocuments(n int) {
	if p == nil {
		return
	}
	p.documents.Set(float64(n))
}

// HTTPHandler serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
