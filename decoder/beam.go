package decoder

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rwth-i6/rasr-sub008/labelscorer"
	"github.com/rwth-i6/rasr-sub008/lattice"
	"github.com/rwth-i6/rasr-sub008/lexicon"
	"github.com/rwth-i6/rasr-sub008/trace"
)

// beamHypothesis is one entry of the beam. The current token is not yet
// part of trace; it is committed once the next token is emitted.
type beamHypothesis struct {
	context    labelscorer.ScoringContext
	pron       *lexicon.Pronunciation
	token      LabelIndex
	time       int
	score      float64
	trace      *trace.LatticeTrace
	transition labelscorer.TransitionType
	ended      bool
}

func newInitialHypothesis(ctx labelscorer.ScoringContext) beamHypothesis {
	return beamHypothesis{
		context: ctx,
		token:   labelscorer.InvalidLabelIndex,
		trace:   trace.NewRootTrace(0, trace.ScoreVector{}, lattice.Transit{}),
	}
}

// committedTrace returns a new trace with the pending token appended. It
// ends one step after the last timestep the token covered. Without a
// pending token the current trace is returned as is.
func (h *beamHypothesis) committedTrace() *trace.LatticeTrace {
	if h.token == labelscorer.InvalidLabelIndex {
		return h.trace
	}
	return trace.NewLatticeTrace(h.trace, h.pron, h.time+1, trace.ScoreVector{Acoustic: h.score}, lattice.Transit{})
}

func (h *beamHypothesis) commitTrace() {
	h.trace = h.committedTrace()
}

// extension is a candidate successor of beam[base].
type extension struct {
	token      LabelIndex
	pron       *lexicon.Pronunciation
	score      float64
	time       int
	transition labelscorer.TransitionType
	base       int
}

// BeamSearch is a time-synchronous beam search over the lemmas of a
// lexicon. Hypotheses with equal scoring contexts are recombined; the
// worse trace is kept as a sibling of the better one so that lattices show
// both paths.
type BeamSearch struct {
	searchCore
	beam    []beamHypothesis
	newBeam []beamHypothesis
	exts    []extension
	reqs    []labelscorer.Request

	stable          *trace.StableTraceTracker
	canUpdateStable bool
	finished        bool
}

var _ SearchAlgorithm = (*BeamSearch)(nil)

// NewBeamSearch creates a beam search over the lemmas of lex.
func NewBeamSearch(cfg Config, lex *lexicon.Lexicon, scorer labelscorer.LabelScorer, opts ...Option) (*BeamSearch, error) {
	core, err := newSearchCore("beam", cfg, lex, scorer, opts)
	if err != nil {
		return nil, err
	}
	s := &BeamSearch{
		searchCore: core,
		beam:       make([]beamHypothesis, 0, core.cfg.MaxBeamSize),
		newBeam:    make([]beamHypothesis, 0, core.cfg.MaxBeamSize),
		exts:       make([]extension, 0, core.cfg.MaxBeamSize*lex.Len()),
	}
	s.Reset()
	return s, nil
}

// Reset leaves a single empty hypothesis in the beam.
func (s *BeamSearch) Reset() {
	defer stopwatch(&s.times.initialization, s.stats.Initialization.WithLabelValues(s.name), time.Now())
	s.scorer.Reset()
	s.beam = append(s.beam[:0], newInitialHypothesis(s.scorer.InitialScoringContext()))
	if s.stable == nil {
		s.stable = trace.NewStableTraceTracker(s.beam[0].trace)
	}
	s.stable.SetTrace(s.beam[0].trace)
	s.canUpdateStable = false
	s.step = 0
	s.finished = false
}

func (s *BeamSearch) EnterSegment(id string) {
	s.enterSegment(id)
	s.Reset()
}

// FinishSegment decodes the remaining input and commits all pending tokens.
func (s *BeamSearch) FinishSegment() {
	if s.finished {
		return
	}
	s.signalNoMoreFeatures()
	s.DecodeManySteps()
	for i := range s.beam {
		s.beam[i].commitTrace()
	}
	s.finished = true
	s.canUpdateStable = true
	best := s.bestHypothesis()
	s.logSegment(logrus.Fields{
		"score":      best.score,
		"words":      best.trace.WordCount(),
		"beam_size":  len(s.beam),
		"beam_worst": s.worstHypothesis().score,
	})
}

func (s *BeamSearch) transitionType(prev, next LabelIndex) labelscorer.TransitionType {
	switch {
	case s.cfg.isSentenceEnd(next):
		return labelscorer.SentenceEnd
	case prev == labelscorer.InvalidLabelIndex:
		if s.cfg.UseBlank && next == s.cfg.BlankIndex {
			return labelscorer.InitialBlank
		}
		return labelscorer.InitialLabel
	}
	return InferTransitionType(prev, next, s.cfg.BlankIndex, s.cfg.UseBlank, s.cfg.AllowLabelLoop)
}

func (s *BeamSearch) DecodeStep() bool {
	if s.finished {
		return false
	}

	lemmas := s.lex.Lemmas()
	s.exts = s.exts[:0]
	for bi, h := range s.beam {
		if h.ended {
			continue
		}
		for _, l := range lemmas {
			next := LabelIndex(l.ID)
			s.exts = append(s.exts, extension{
				token:      next,
				pron:       l.Pronunciation,
				score:      h.score,
				transition: s.transitionType(h.token, next),
				base:       bi,
			})
		}
	}
	if len(s.exts) == 0 {
		return false
	}

	s.reqs = s.reqs[:0]
	for _, ext := range s.exts {
		s.reqs = append(s.reqs, labelscorer.Request{
			Context:    s.beam[ext.base].context,
			NextToken:  ext.token,
			Transition: ext.transition,
		})
	}
	res, ok := s.score(s.reqs)
	if !ok {
		return false
	}
	for i := range s.exts {
		s.exts[i].score += res.Scores[i]
		s.exts[i].time = res.Timesteps[i]
	}

	if !math.IsInf(s.cfg.ScoreThreshold, 1) {
		s.exts = scorePruning(s.exts, s.cfg.ScoreThreshold)
		s.stats.HypsAfterScorePruning.WithLabelValues(s.name).Observe(float64(len(s.exts)))
	}

	s.newBeam = s.newBeam[:0]
	for _, ext := range s.exts {
		base := &s.beam[ext.base]
		ctx := s.extend(labelscorer.Request{Context: base.context, NextToken: ext.token, Transition: ext.transition})
		h := extendHypothesis(base, ext, ctx, s.cfg.isSentenceEnd(ext.token))
		// Every emitting extension gets its own trace, so siblings linked
		// during recombination stay with the context they were merged into.
		if ext.transition.IsEmitting() {
			h.trace = base.committedTrace()
		}
		s.newBeam = append(s.newBeam, h)
	}
	for _, h := range s.beam {
		if h.ended {
			s.newBeam = append(s.newBeam, h)
		}
	}

	s.newBeam = recombine(s.newBeam)
	s.stats.HypsAfterRecombination.WithLabelValues(s.name).Observe(float64(len(s.newBeam)))

	s.newBeam = beamSizePruning(s.newBeam, s.cfg.MaxBeamSize)
	s.stats.HypsAfterBeamPruning.WithLabelValues(s.name).Observe(float64(len(s.newBeam)))

	s.beam, s.newBeam = s.newBeam, s.beam
	s.stats.ActiveHyps.WithLabelValues(s.name).Observe(float64(len(s.beam)))
	s.finishStep(s.activeContexts())
	s.canUpdateStable = true

	best := s.bestHypothesis()
	if s.cfg.LogStepwiseStatistics {
		s.segLog.WithFields(logrus.Fields{
			"step":         s.step,
			"active_hyps":  len(s.beam),
			"best_score":   best.score,
			"worst_score":  s.worstHypothesis().score,
			"best_words":   best.trace.WordCount(),
			"num_requests": len(s.reqs),
		}).Debug("search step")
	}

	return !best.ended
}

func (s *BeamSearch) DecodeManySteps() int {
	return decodeMany(s.DecodeStep)
}

// extendHypothesis builds the successor of base. The caller replaces the
// trace for emitting transitions.
func extendHypothesis(base *beamHypothesis, ext extension, ctx labelscorer.ScoringContext, ended bool) beamHypothesis {
	h := *base
	h.context = ctx
	h.pron = ext.pron
	h.token = ext.token
	h.time = ext.time
	h.score = ext.score
	h.transition = ext.transition
	h.ended = ended
	return h
}

// scorePruning drops extensions more than threshold worse than the best.
func scorePruning(exts []extension, threshold float64) []extension {
	if len(exts) == 0 {
		return exts
	}
	best := exts[0].score
	for _, e := range exts[1:] {
		best = min(best, e.score)
	}
	limit := best + threshold
	return slices.DeleteFunc(exts, func(e extension) bool {
		return e.score > limit
	})
}

// beamSizePruning keeps the maxSize best hypotheses, preferring earlier
// ones on ties.
func beamSizePruning(hyps []beamHypothesis, maxSize int) []beamHypothesis {
	if len(hyps) <= maxSize {
		return hyps
	}
	slices.SortStableFunc(hyps, func(a, b beamHypothesis) int {
		return cmp.Compare(a.score, b.score)
	})
	return hyps[:maxSize]
}

// recombine keeps one hypothesis per scoring context. The trace of a
// dropped hypothesis joins the sibling chain of the survivor's trace if
// both traces end at the same time.
func recombine(hyps []beamHypothesis) []beamHypothesis {
	seen := make(map[uint64][]int, len(hyps))
	n := 0
	for _, h := range hyps {
		key := h.context.Hash()
		idx := -1
		for _, i := range seen[key] {
			if hyps[i].context.IsEqual(h.context) {
				idx = i
				break
			}
		}
		if idx < 0 {
			seen[key] = append(seen[key], n)
			hyps[n] = h
			n++
			continue
		}
		existing := &hyps[idx]
		if h.score < existing.score {
			linkSibling(h.trace, existing.trace)
			*existing = h
		} else {
			linkSibling(existing.trace, h.trace)
		}
	}
	return hyps[:n]
}

// linkSibling appends other to the chain of head. Hypotheses extended from
// the initial one share its root trace, and a loop keeps an older trace
// than an emission; neither pair is linked.
func linkSibling(head, other *trace.LatticeTrace) {
	if head == other || head.Time != other.Time {
		return
	}
	head.AppendSiblingToChain(other)
}

func (s *BeamSearch) activeContexts() []labelscorer.ScoringContext {
	out := make([]labelscorer.ScoringContext, len(s.beam))
	for i, h := range s.beam {
		out[i] = h.context
	}
	return out
}

func (s *BeamSearch) bestHypothesis() *beamHypothesis {
	if len(s.beam) == 0 {
		panic("decoder: empty beam")
	}
	best := &s.beam[0]
	for i := range s.beam[1:] {
		if h := &s.beam[i+1]; h.score < best.score {
			best = h
		}
	}
	return best
}

func (s *BeamSearch) worstHypothesis() *beamHypothesis {
	worst := &s.beam[0]
	for i := range s.beam[1:] {
		if h := &s.beam[i+1]; h.score > worst.score {
			worst = h
		}
	}
	return worst
}

// maximumStableDelayPruning removes hypotheses that disagree with the best
// one before step - MaximumStableDelay, which bounds how long output can
// stay unstable.
func (s *BeamSearch) maximumStableDelayPruning() {
	delay := s.cfg.MaximumStableDelay
	if delay <= 0 || s.step+1 <= delay {
		return
	}
	cutoff := s.step + 1 - delay

	var root *trace.LatticeTrace
	bestScore := math.Inf(1)
	for _, h := range s.beam {
		if h.score < bestScore && h.trace.Time >= cutoff {
			bestScore = h.score
			root = h.trace
		}
	}
	if root == nil {
		root = s.bestHypothesis().trace
		s.segLog.WithField("cutoff", cutoff).Warn("best hypothesis has no word end after the stable delay cutoff")
	}
	for pre := root.Predecessor; pre != nil && pre.Time >= cutoff; pre = pre.Predecessor {
		root = pre
	}

	kept := s.beam[:0]
	for _, h := range s.beam {
		c := h.trace
		for c != nil && c != root && c.Time > root.Time {
			c = c.Predecessor
		}
		if c == root {
			kept = append(kept, h)
		}
	}
	s.beam = kept
}

// CurrentBestTraceback returns the committed path of the best hypothesis.
func (s *BeamSearch) CurrentBestTraceback() trace.Traceback {
	return s.bestHypothesis().trace.Traceback()
}

// CurrentStableTraceback returns the prefix shared by all hypotheses.
func (s *BeamSearch) CurrentStableTraceback() trace.Traceback {
	if s.canUpdateStable {
		s.maximumStableDelayPruning()
		traces := make([]*trace.LatticeTrace, len(s.beam))
		for i, h := range s.beam {
			traces[i] = h.trace
		}
		s.stable.AdvanceStablePrefix(traces)
		s.canUpdateStable = false
	}
	return s.stable.StablePrefix().Traceback()
}

// CurrentBestWordLattice joins all hypotheses in one end trace. The end
// trace extends the best hypothesis; every other distinct trace in the
// beam is attached as a sibling. Arcs into the final state carry the cost
// of the pending tokens.
func (s *BeamSearch) CurrentBestWordLattice() *lattice.WordLattice {
	best := s.bestHypothesis()
	endTime := 0
	for _, h := range s.beam {
		endTime = max(endTime, h.trace.Time)
	}
	endTime++

	end := trace.NewLatticeTrace(best.trace, nil, endTime, trace.ScoreVector{Acoustic: best.score}, lattice.Transit{})
	seen := map[*trace.LatticeTrace]struct{}{best.trace: {}}
	for _, h := range s.beam {
		if _, ok := seen[h.trace]; ok {
			continue
		}
		seen[h.trace] = struct{}{}
		end.AppendSiblingToChain(trace.NewLatticeTrace(h.trace, nil, endTime, trace.ScoreVector{Acoustic: h.score}, lattice.Transit{}))
	}
	return end.BuildWordLattice()
}
