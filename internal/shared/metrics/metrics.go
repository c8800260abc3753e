// Package metrics exposes Prometheus instrumentation for the optimizer.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registry = prometheus.NewRegistry()

var (
	stepsTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_steps_total",
		Help: "Pipeline step executions by stage and outcome.",
	}, []string{"stage", "status"})

	stepDuration = promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pipeline_step_duration_seconds",
		Help:    "Wall-clock duration of pipeline step executions.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"stage"})

	stepRetries = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_step_retries_total",
		Help: "Automatic retries spent within step executions.",
	}, []string{"stage"})

	rewriteVerdicts = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "rewrite_verdicts_total",
		Help: "Rewrite validation verdicts.",
	}, []string{"verdict"})

	generationCalls = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "llm_generation_calls_total",
		Help: "Content generation calls by provider.",
	}, []string{"provider"})

	optimizationsTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "optimizations_total",
		Help: "Background optimization runs by terminal status.",
	}, []string{"status"})

	queueJobs = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_total",
		Help: "Queue jobs seen by the worker, by outcome.",
	}, []string{"outcome"})

	activeSessions = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Name: "active_sessions",
		Help: "Optimization sessions currently held in memory.",
	})
)

func init() {
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// IncStep records a step execution outcome for a stage.
func IncStep(stage, status string) {
	stepsTotal.WithLabelValues(stage, status).Inc()
}

// ObserveStepDuration records how long a step execution took.
func ObserveStepDuration(stage string, seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	stepDuration.WithLabelValues(stage).Observe(seconds)
}

// AddStepRetries records how many automatic retries a step execution used.
func AddStepRetries(stage string, n int) {
	if n <= 0 {
		return
	}
	stepRetries.WithLabelValues(stage).Add(float64(n))
}

// IncRewriteVerdict records a rewrite validation verdict.
func IncRewriteVerdict(verdict string) {
	rewriteVerdicts.WithLabelValues(verdict).Inc()
}

// IncGenerationCall records one generation request against a provider.
func IncGenerationCall(provider string) {
	generationCalls.WithLabelValues(provider).Inc()
}

// IncOptimization records a background optimization reaching a terminal status.
func IncOptimization(status string) {
	optimizationsTotal.WithLabelValues(status).Inc()
}

// IncJobReceived counts a job taken off the queue.
func IncJobReceived() { queueJobs.WithLabelValues("received").Inc() }

// IncJobCompleted counts a job processed and acknowledged.
func IncJobCompleted() { queueJobs.WithLabelValues("completed").Inc() }

// IncJobFailed counts a job whose processing failed.
func IncJobFailed() { queueJobs.WithLabelValues("failed").Inc() }

// IncJobDiscarded counts a job dropped as unprocessable.
func IncJobDiscarded() { queueJobs.WithLabelValues("discarded").Inc() }

// IncActiveSessions bumps the live session gauge.
func IncActiveSessions() { activeSessions.Inc() }

// DecActiveSessions lowers the live session gauge.
func DecActiveSessions() { activeSessions.Dec() }

// SetActiveSessions sets the live session gauge to an absolute value.
func SetActiveSessions(n int) { activeSessions.Set(float64(n)) }

// Registry returns the registry backing all package metrics.
func Registry() *prometheus.Registry {
	return registry
}

// Handler exposes the registry in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
