package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "docmeld"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	registry       *prom.Registry
	stageDuration  *prom.HistogramVec
	buildDuration  *prom.HistogramVec
	buildOutcome   *prom.CounterVec
	meldWarnings   *prom.CounterVec
	loopIterations *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual build stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.buildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: Namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration per target",
			Buckets:   prom.DefBuckets,
		}, []string{"target"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by target and final status",
		}, []string{"target", "outcome"})
		pr.meldWarnings = prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "meld_warnings_total",
			Help:      "Data sources that degraded to empty values",
		}, []string{"target"})
		pr.loopIterations = prom.NewCounterVec(prom.CounterOpts{
			Namespace: Namespace,
			Name:      "loop_iterations_total",
			Help:      "Loop iterations built per target",
		}, []string{"target"})
		reg.MustRegister(pr.stageDuration, pr.buildDuration, pr.buildOutcome, pr.meldWarnings, pr.loopIterations)
	})
	return pr
}

// Registry returns the registry the metrics are registered with.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveBuildDuration(target string, d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.WithLabelValues(target).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(target string, outcome OutcomeLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(target, string(outcome)).Inc()
}

func (p *PrometheusRecorder) AddMeldWarnings(target string, n int) {
	if p == nil || p.meldWarnings == nil || n <= 0 {
		return
	}
	p.meldWarnings.WithLabelValues(target).Add(float64(n))
}

func (p *PrometheusRecorder) AddLoopIterations(target string, n int) {
	if p == nil || p.loopIterations == nil || n <= 0 {
		return
	}
	p.loopIterations.WithLabelValues(target).Add(float64(n))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.registry)
}
