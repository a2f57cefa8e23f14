package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// GenerationMetrics records provider call outcomes and pipeline timings.
type GenerationMetrics struct {
	duration     *prometheus.HistogramVec
	success      *prometheus.CounterVec
	failure      *prometheus.CounterVec
	pollAttempts *prometheus.HistogramVec
	creditsSpent *prometheus.CounterVec
}

// NewGenerationMetrics registers the generation metrics on the provided registerer.
func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	if reg == nil {
		return &GenerationMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_duration_seconds",
		Help:    "Duration of provider generation calls in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"kind", "provider"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_success",
		Help: "Successful generation calls.",
	}, []string{"kind", "provider"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "generation_failure",
		Help: "Failed generation calls.",
	}, []string{"kind", "provider"})
	pollAttempts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "generation_poll_attempts",
		Help:    "Status poll attempts before an asynchronous task settled.",
		Buckets: prometheus.LinearBuckets(1, 2, 10),
	}, []string{"provider"})
	creditsSpent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_debited_total",
		Help: "Credits debited for generation actions.",
	}, []string{"kind"})
	reg.MustRegister(duration, success, failure, pollAttempts, creditsSpent)
	return &GenerationMetrics{
		duration:     duration,
		success:      success,
		failure:      failure,
		pollAttempts: pollAttempts,
		creditsSpent: creditsSpent,
	}
}

// ObserveDuration records how long the provider call took.
func (g *GenerationMetrics) ObserveDuration(kind, provider string, duration time.Duration) {
	if g == nil || g.duration == nil {
		return
	}
	g.duration.WithLabelValues(normalizeLabel(kind), normalizeLabel(provider)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the kind/provider pair.
func (g *GenerationMetrics) IncSuccess(kind, provider string) {
	if g == nil || g.success == nil {
		return
	}
	g.success.WithLabelValues(normalizeLabel(kind), normalizeLabel(provider)).Inc()
}

// IncFailure increments the failure counter for the kind/provider pair.
func (g *GenerationMetrics) IncFailure(kind, provider string) {
	if g == nil || g.failure == nil {
		return
	}
	g.failure.WithLabelValues(normalizeLabel(kind), normalizeLabel(provider)).Inc()
}

// ObservePollAttempts records how many status checks an async task needed.
func (g *GenerationMetrics) ObservePollAttempts(provider string, attempts int) {
	if g == nil || g.pollAttempts == nil {
		return
	}
	g.pollAttempts.WithLabelValues(normalizeLabel(provider)).Observe(float64(attempts))
}

// AddCreditsDebited accumulates credits charged for the given kind.
func (g *GenerationMetrics) AddCreditsDebited(kind string, credits int) {
	if g == nil || g.creditsSpent == nil {
		return
	}
	g.creditsSpent.WithLabelValues(normalizeLabel(kind)).Add(float64(credits))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
