// Package transcript decodes label score matrices into word sequences and
// lattices. A Recognizer bundles a lexicon, a label scorer and a search
// algorithm; see the decoder package for the searches themselves.
package transcript

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rwth-i6/rasr-sub008/decoder"
	"github.com/rwth-i6/rasr-sub008/labelscorer"
	"github.com/rwth-i6/rasr-sub008/lattice"
	"github.com/rwth-i6/rasr-sub008/lexicon"
	"github.com/rwth-i6/rasr-sub008/trace"
)

// ErrNoSearch is returned for an unknown search kind.
var ErrNoSearch = errors.New("no such search")

// Search kinds accepted by WithSearch.
const (
	SearchGreedy = "greedy"
	SearchBeam   = "beam"
)

// Recognizer is the top-level recognizer. It is not safe for concurrent
// use; create one per goroutine.
type Recognizer struct {
	Lexicon *lexicon.Lexicon
	DecCfg  decoder.Config

	kind   string
	scorer labelscorer.LabelScorer
	search decoder.SearchAlgorithm
	stats  *decoder.Statistics
	log    logrus.FieldLogger
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithDecoderConfig sets custom decoder parameters.
func WithDecoderConfig(cfg decoder.Config) Option {
	return func(r *Recognizer) {
		r.DecCfg = cfg
	}
}

// WithSearch selects the search algorithm, SearchGreedy or SearchBeam.
func WithSearch(kind string) Option {
	return func(r *Recognizer) {
		r.kind = kind
	}
}

// WithLogger sets the logger used by the recognizer and its search.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Recognizer) {
		r.log = log
	}
}

// WithStatistics makes the search report to stats.
func WithStatistics(stats *decoder.Statistics) Option {
	return func(r *Recognizer) {
		r.stats = stats
	}
}

// NewRecognizer creates a Recognizer that decodes the output of scorer
// over the lemmas of lex. The default is a greedy search.
func NewRecognizer(lex *lexicon.Lexicon, scorer labelscorer.LabelScorer, opts ...Option) (*Recognizer, error) {
	r := &Recognizer{
		Lexicon: lex,
		DecCfg:  decoder.DefaultConfig(),
		kind:    SearchGreedy,
		scorer:  scorer,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	if l := lex.SpecialLemma(lexicon.SpecialSentenceEnd); l != nil && r.DecCfg.SentenceEndIndex == nil {
		end := decoder.LabelIndex(l.ID)
		r.DecCfg.SentenceEndIndex = &end
	}

	searchOpts := []decoder.Option{decoder.WithLogger(r.log)}
	if r.stats != nil {
		searchOpts = append(searchOpts, decoder.WithStatistics(r.stats))
	}
	var err error
	switch r.kind {
	case SearchGreedy:
		r.search, err = decoder.NewGreedySearch(r.DecCfg, lex, scorer, searchOpts...)
	case SearchBeam:
		r.search, err = decoder.NewBeamSearch(r.DecCfg, lex, scorer, searchOpts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoSearch, r.kind)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s search: %w", r.kind, err)
	}
	return r, nil
}

// Search returns the underlying search algorithm.
func (r *Recognizer) Search() decoder.SearchAlgorithm {
	return r.search
}

// Transcript is the output of one segment.
type Transcript struct {
	decoder.Result
	SegmentID string
	Traceback trace.Traceback
	Lattice   *lattice.WordLattice
}

// Recognize decodes a complete segment of score frames.
func (r *Recognizer) Recognize(ctx context.Context, frames [][]float64) (*Transcript, error) {
	id := uuid.NewString()
	r.search.EnterSegment(id)
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.search.PutFeature(f)
		r.search.DecodeManySteps()
	}
	return r.finish(id), nil
}

// RecognizeStream decodes frames as they arrive until the channel is
// closed. partial, if not nil, is called whenever the stable part of the
// output grows.
func (r *Recognizer) RecognizeStream(ctx context.Context, frames <-chan []float64, partial func(trace.Traceback)) (*Transcript, error) {
	id := uuid.NewString()
	log := r.log.WithField("segment", id)
	r.search.EnterSegment(id)

	stable := 1
	for {
		select {
		case <-ctx.Done():
			log.WithError(ctx.Err()).Warn("segment aborted")
			return nil, ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return r.finish(id), nil
			}
			r.search.PutFeature(f)
			r.search.DecodeManySteps()
			if partial == nil {
				continue
			}
			if tb := r.search.CurrentStableTraceback(); len(tb) > stable {
				stable = len(tb)
				partial(tb)
			}
		}
	}
}

func (r *Recognizer) finish(id string) *Transcript {
	r.search.FinishSegment()
	tb := r.search.CurrentBestTraceback()
	return &Transcript{
		Result:    decoder.NewResult(tb),
		SegmentID: id,
		Traceback: tb,
		Lattice:   r.search.CurrentBestWordLattice(),
	}
}
