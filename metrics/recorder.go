package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exposes generation metrics to Prometheus. A nil Recorder is a
// no-op so callers never need to check.
type Recorder struct {
	generations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	steps       *prometheus.CounterVec
	chunks      *prometheus.HistogramVec
	corrections prometheus.Counter
	dropped     prometheus.Counter
}

// NewRecorder registers the tripgen collectors on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripgen",
			Name:      "generations_total",
			Help:      "Itinerary generations by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tripgen",
			Name:      "phase_duration_seconds",
			Help:      "Generation phase durations.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"phase"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tripgen",
			Name:      "strategy_steps_total",
			Help:      "Strategy steps by strategy, step and provider.",
		}, []string{"strategy", "step", "provider"}),
		chunks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tripgen",
			Name:      "chunk_duration_seconds",
			Help:      "Day-details chunk durations.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 9),
		}, []string{"outcome"}),
		corrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tripgen",
			Name:      "corrections_total",
			Help:      "Activities replaced by self-correction.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tripgen",
			Name:      "metrics_dropped_total",
			Help:      "Metrics records dropped because the flush queue was full.",
		}),
	}
	reg.MustRegister(r.generations, r.duration, r.steps, r.chunks, r.corrections, r.dropped)
	return r
}

// ObserveGeneration records a finalized generation.
func (r *Recorder) ObserveGeneration(m GenerationMetrics) {
	if r == nil {
		return
	}
	outcome := "failure"
	if m.Success {
		outcome = "success"
	}
	r.generations.WithLabelValues(labelOr(m.Strategy, "unknown"), outcome).Inc()
	r.duration.WithLabelValues("total").Observe(m.Total.Seconds())
	if m.Outline > 0 {
		r.duration.WithLabelValues("outline").Observe(m.Outline.Seconds())
	}
	if m.Details > 0 {
		r.duration.WithLabelValues("details").Observe(m.Details.Seconds())
	}
	r.corrections.Add(float64(m.CorrectionCount))
}

// ObserveStep counts one strategy step.
func (r *Recorder) ObserveStep(strategy, step, provider string) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(strategy, step, labelOr(provider, "none")).Inc()
}

// ObserveChunk records one chunk's duration.
func (r *Recorder) ObserveChunk(d time.Duration, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	r.chunks.WithLabelValues(outcome).Observe(d.Seconds())
}

func (r *Recorder) droppedRecord() {
	if r == nil {
		return
	}
	r.dropped.Inc()
}

func labelOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
