// Package decoder implements label-synchronous search over the output of
// a label scorer: a greedy search producing a single traceback and a beam
// search producing a trace DAG with recombination and stable prefixes.
package decoder

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rwth-i6/rasr-sub008/labelscorer"
	"github.com/rwth-i6/rasr-sub008/lattice"
	"github.com/rwth-i6/rasr-sub008/lexicon"
	"github.com/rwth-i6/rasr-sub008/trace"
)

// SearchAlgorithm is the segment-level interface of a search. It is driven
// by a single goroutine.
type SearchAlgorithm interface {
	Reset()
	EnterSegment(id string)
	FinishSegment()
	PutFeature(f []float64)
	PutFeatures(data []float64, nTimesteps int)
	// DecodeStep advances the search by one step. It returns false if no
	// step could be made, e.g. the scorer awaits more input or sentence end
	// was reached.
	DecodeStep() bool
	DecodeManySteps() int
	CurrentBestTraceback() trace.Traceback
	CurrentBestWordLattice() *lattice.WordLattice
	CurrentStableTraceback() trace.Traceback
}

// Option configures a search.
type Option func(*searchCore)

// WithLogger sets the logger; the default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *searchCore) {
		c.log = log
	}
}

// WithStatistics sets the metrics collectors; the default is an
// unregistered set.
func WithStatistics(stats *Statistics) Option {
	return func(c *searchCore) {
		c.stats = stats
	}
}

// searchCore is the scorer plumbing shared by all searches.
type searchCore struct {
	name   string
	cfg    Config
	lex    *lexicon.Lexicon
	scorer labelscorer.LabelScorer
	stats  *Statistics
	log    logrus.FieldLogger
	segLog logrus.FieldLogger
	times  segmentTimes
	step   int
}

func newSearchCore(name string, cfg Config, lex *lexicon.Lexicon, scorer labelscorer.LabelScorer, opts []Option) (searchCore, error) {
	c := searchCore{name: name, cfg: cfg, lex: lex, scorer: scorer}
	for _, opt := range opts {
		opt(&c)
	}
	if lex == nil || lex.Len() == 0 {
		return c, errors.New("search needs a non-empty lexicon")
	}
	if scorer == nil {
		return c, errors.New("search needs a label scorer")
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	c.log = c.log.WithField("search", name)
	c.cfg.ApplyLexicon(lex, c.log)
	if err := c.cfg.Validate(); err != nil {
		return c, err
	}
	if c.stats == nil {
		c.stats = NewStatistics(nil)
	}
	c.segLog = c.log
	return c, nil
}

func (c *searchCore) PutFeature(f []float64) {
	defer stopwatch(&c.times.featureProcessing, c.stats.FeatureProcessing.WithLabelValues(c.name), time.Now())
	c.scorer.AddInput(f)
}

func (c *searchCore) PutFeatures(data []float64, nTimesteps int) {
	defer stopwatch(&c.times.featureProcessing, c.stats.FeatureProcessing.WithLabelValues(c.name), time.Now())
	c.scorer.AddInputs(data, nTimesteps)
}

func (c *searchCore) signalNoMoreFeatures() {
	defer stopwatch(&c.times.featureProcessing, c.stats.FeatureProcessing.WithLabelValues(c.name), time.Now())
	c.scorer.SignalNoMoreFeatures()
}

func (c *searchCore) enterSegment(id string) {
	c.times = segmentTimes{}
	c.segLog = c.log.WithField("segment", id)
}

func (c *searchCore) score(reqs []labelscorer.Request) (labelscorer.ScoresWithTimes, bool) {
	defer stopwatch(&c.times.scoring, c.stats.Scoring.WithLabelValues(c.name), time.Now())
	res, ok := c.scorer.ScoresWithTimes(reqs)
	if !ok {
		c.stats.ScorerNotReady.WithLabelValues(c.name).Inc()
	}
	return res, ok
}

func (c *searchCore) extend(req labelscorer.Request) labelscorer.ScoringContext {
	defer stopwatch(&c.times.contextExtension, c.stats.ContextExtension.WithLabelValues(c.name), time.Now())
	return c.scorer.ExtendedScoringContext(req)
}

// finishStep counts a completed step and runs the periodic cache cleanup.
func (c *searchCore) finishStep(active []labelscorer.ScoringContext) {
	c.step++
	c.stats.DecodeSteps.WithLabelValues(c.name).Inc()
	if c.step%c.cfg.CacheCleanupInterval == 0 {
		c.scorer.CleanupCaches(active)
	}
}

func (c *searchCore) logSegment(fields logrus.Fields) {
	f := logrus.Fields{
		"steps":                 c.step,
		"initialization_ms":     c.times.initialization.Milliseconds(),
		"feature_processing_ms": c.times.featureProcessing.Milliseconds(),
		"scoring_ms":            c.times.scoring.Milliseconds(),
		"context_extension_ms":  c.times.contextExtension.Milliseconds(),
	}
	for k, v := range fields {
		f[k] = v
	}
	c.segLog.WithFields(f).Info("segment finished")
}

func decodeMany(step func() bool) int {
	n := 0
	for step() {
		n++
	}
	return n
}
