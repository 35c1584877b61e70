package decoder

import (
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rwth-i6/rasr-sub008/internal/mathutil"
	"github.com/rwth-i6/rasr-sub008/labelscorer"
	"github.com/rwth-i6/rasr-sub008/lattice"
	"github.com/rwth-i6/rasr-sub008/lexicon"
	"github.com/rwth-i6/rasr-sub008/trace"
)

// greedyHypothesis is the single hypothesis of a GreedySearch.
type greedyHypothesis struct {
	context   labelscorer.ScoringContext
	label     LabelIndex
	score     float64
	traceback trace.Traceback
}

func (h *greedyHypothesis) reset() {
	h.context = nil
	h.label = labelscorer.InvalidLabelIndex
	h.score = 0
	h.traceback = append(h.traceback[:0], trace.TracebackItem{})
}

// extend commits the winning extension. Emitting transitions append a
// traceback item; loops stretch the last one.
func (h *greedyHypothesis) extend(pron *lexicon.Pronunciation, ctx labelscorer.ScoringContext, label LabelIndex, score float64, timestep int, tt labelscorer.TransitionType) {
	h.context = ctx
	h.score += score
	h.label = label
	switch {
	case tt.IsEmitting():
		h.traceback = append(h.traceback, trace.TracebackItem{
			Pronunciation: pron,
			Time:          timestep,
			Score:         trace.ScoreVector{Acoustic: h.score},
		})
	case tt.IsLoop():
		last := &h.traceback[len(h.traceback)-1]
		last.Score.Acoustic = h.score
		last.Time = timestep
	}
}

// GreedySearch keeps a single hypothesis and extends it with the cheapest
// token in every step. Ties go to the token that comes first in the lexicon.
type GreedySearch struct {
	searchCore
	hyp   greedyHypothesis
	reqs  []labelscorer.Request
	ended bool
}

var _ SearchAlgorithm = (*GreedySearch)(nil)

// NewGreedySearch creates a greedy search over the lemmas of lex.
func NewGreedySearch(cfg Config, lex *lexicon.Lexicon, scorer labelscorer.LabelScorer, opts ...Option) (*GreedySearch, error) {
	core, err := newSearchCore("greedy", cfg, lex, scorer, opts)
	if err != nil {
		return nil, err
	}
	s := &GreedySearch{searchCore: core}
	s.Reset()
	return s, nil
}

// Reset drops the hypothesis and starts from the scorer's initial context.
func (s *GreedySearch) Reset() {
	defer stopwatch(&s.times.initialization, s.stats.Initialization.WithLabelValues(s.name), time.Now())
	s.scorer.Reset()
	s.hyp.reset()
	s.hyp.context = s.scorer.InitialScoringContext()
	s.step = 0
	s.ended = false
}

func (s *GreedySearch) EnterSegment(id string) {
	s.enterSegment(id)
	s.Reset()
}

func (s *GreedySearch) FinishSegment() {
	s.signalNoMoreFeatures()
	s.DecodeManySteps()
	s.logSegment(logrus.Fields{
		"score": s.hyp.score,
		"words": len(s.hyp.traceback.Lemmas()),
	})
}

func (s *GreedySearch) DecodeStep() bool {
	if s.hyp.context == nil {
		panic("decoder: greedy hypothesis without scoring context")
	}
	if s.ended {
		return false
	}

	lemmas := s.lex.Lemmas()
	s.reqs = s.reqs[:0]
	for _, l := range lemmas {
		next := LabelIndex(l.ID)
		s.reqs = append(s.reqs, labelscorer.Request{
			Context:    s.hyp.context,
			NextToken:  next,
			Transition: InferTransitionType(s.hyp.label, next, s.cfg.BlankIndex, s.cfg.UseBlank, s.cfg.AllowLabelLoop),
		})
	}

	res, ok := s.score(s.reqs)
	if !ok {
		return false
	}

	best := mathutil.ArgMin(res.Scores)
	req := s.reqs[best]
	ctx := s.extend(req)
	s.hyp.extend(lemmas[best].Pronunciation, ctx, req.NextToken, res.Scores[best], res.Timesteps[best], req.Transition)
	s.finishStep([]labelscorer.ScoringContext{s.hyp.context})

	if s.cfg.LogStepwiseStatistics {
		s.segLog.WithFields(logrus.Fields{
			"step":       s.step,
			"token":      req.NextToken,
			"transition": req.Transition.String(),
			"score":      s.hyp.score,
		}).Debug("search step")
	}

	if s.cfg.isSentenceEnd(req.NextToken) {
		s.ended = true
		return false
	}
	return true
}

func (s *GreedySearch) DecodeManySteps() int {
	return decodeMany(s.DecodeStep)
}

// CurrentBestTraceback returns a copy of the hypothesis traceback.
func (s *GreedySearch) CurrentBestTraceback() trace.Traceback {
	return slices.Clone(s.hyp.traceback)
}

// CurrentBestWordLattice returns the traceback as a linear lattice.
func (s *GreedySearch) CurrentBestWordLattice() *lattice.WordLattice {
	return s.hyp.traceback.WordLattice()
}

// CurrentStableTraceback equals the best traceback: a single hypothesis
// never revises its past.
func (s *GreedySearch) CurrentStableTraceback() trace.Traceback {
	return s.CurrentBestTraceback()
}
