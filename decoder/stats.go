package decoder

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "transcript"
	searchSubsystem  = "search"
)

// Statistics holds the Prometheus collectors of all searches. One instance
// may be shared by searches running in parallel; series are labeled by the
// search kind ("greedy" or "beam").
type Statistics struct {
	Initialization    *prometheus.HistogramVec
	FeatureProcessing *prometheus.HistogramVec
	Scoring           *prometheus.HistogramVec
	ContextExtension  *prometheus.HistogramVec

	HypsAfterScorePruning  *prometheus.HistogramVec
	HypsAfterRecombination *prometheus.HistogramVec
	HypsAfterBeamPruning   *prometheus.HistogramVec
	ActiveHyps             *prometheus.HistogramVec

	DecodeSteps    *prometheus.CounterVec
	ScorerNotReady *prometheus.CounterVec
}

func durationHistogram(name, help string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: searchSubsystem,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
	}, []string{"search"})
}

func sizeHistogram(name, help string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: searchSubsystem,
		Name:      name,
		Help:      help,
		Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
	}, []string{"search"})
}

// NewStatistics creates the collectors and registers them with reg unless
// reg is nil.
func NewStatistics(reg prometheus.Registerer) *Statistics {
	s := &Statistics{
		Initialization:    durationHistogram("initialization_seconds", "Time spent resetting the search."),
		FeatureProcessing: durationHistogram("feature_processing_seconds", "Time spent passing input to the label scorer."),
		Scoring:           durationHistogram("scoring_seconds", "Time spent in label scorer requests per step."),
		ContextExtension:  durationHistogram("context_extension_seconds", "Time spent extending scoring contexts per step."),

		HypsAfterScorePruning:  sizeHistogram("hyps_after_score_pruning", "Extensions left after score pruning."),
		HypsAfterRecombination: sizeHistogram("hyps_after_recombination", "Hypotheses left after recombination."),
		HypsAfterBeamPruning:   sizeHistogram("hyps_after_beam_pruning", "Hypotheses left after beam size pruning."),
		ActiveHyps:             sizeHistogram("active_hyps", "Hypotheses in the beam after a step."),

		DecodeSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: searchSubsystem,
			Name:      "decode_steps_total",
			Help:      "Completed decode steps.",
		}, []string{"search"}),
		ScorerNotReady: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: searchSubsystem,
			Name:      "scorer_not_ready_total",
			Help:      "Decode steps that stopped because the label scorer was not ready.",
		}, []string{"search"}),
	}
	if reg != nil {
		reg.MustRegister(
			s.Initialization, s.FeatureProcessing, s.Scoring, s.ContextExtension,
			s.HypsAfterScorePruning, s.HypsAfterRecombination, s.HypsAfterBeamPruning, s.ActiveHyps,
			s.DecodeSteps, s.ScorerNotReady,
		)
	}
	return s
}

// segmentTimes accumulates durations for the per-segment log line.
type segmentTimes struct {
	initialization    time.Duration
	featureProcessing time.Duration
	scoring           time.Duration
	contextExtension  time.Duration
}

// stopwatch adds the time since start to total and observes it.
func stopwatch(total *time.Duration, obs prometheus.Observer, start time.Time) {
	d := time.Since(start)
	*total += d
	obs.Observe(d.Seconds())
}
