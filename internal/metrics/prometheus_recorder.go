package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics. Watch mode
// exposes the registry over HTTP; one-shot builds may use it with a private
// registry for tests.
type PrometheusRecorder struct {
	runDuration     prom.Histogram
	fileResults     *prom.CounterVec
	runOutcomes     *prom.CounterVec
	diagramWarnings prom.Counter
}

// NewPrometheusRecorder constructs and registers the metrics on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "pydocgen",
			Name:      "run_duration_seconds",
			Help:      "Total documentation run duration",
			Buckets:   prom.DefBuckets,
		}),
		fileResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pydocgen",
			Name:      "file_results_total",
			Help:      "Per-file generation results by outcome",
		}, []string{"result"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pydocgen",
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"}),
		diagramWarnings: prom.NewCounter(prom.CounterOpts{
			Namespace: "pydocgen",
			Name:      "diagram_warnings_total",
			Help:      "Diagram generation failures recorded as warnings",
		}),
	}
	reg.MustRegister(pr.runDuration, pr.fileResults, pr.runOutcomes, pr.diagramWarnings)
	return pr
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncFileResult(result FileResult) {
	if p == nil || p.fileResults == nil {
		return
	}
	p.fileResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(outcome RunOutcome) {
	if p == nil || p.runOutcomes == nil {
		return
	}
	p.runOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncDiagramWarning() {
	if p == nil || p.diagramWarnings == nil {
		return
	}
	p.diagramWarnings.Inc()
}
