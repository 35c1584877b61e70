package labelscorer

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/rwth-i6/rasr-sub008/history"
	"github.com/rwth-i6/rasr-sub008/language"
	"github.com/rwth-i6/rasr-sub008/lexicon"
)

// HistoryConfig holds parameters of a HistoryScorer.
type HistoryConfig struct {
	LMScale float64 `yaml:"lm-scale"`
	// HistoryLimit is the number of most recent labels that distinguish two
	// contexts. Negative means the language model order minus one.
	HistoryLimit int `yaml:"history-limit"`
	// ExtendOnLoop also feeds label loops into the history.
	ExtendOnLoop bool `yaml:"extend-on-loop"`
}

// DefaultHistoryConfig returns the configuration used by the CLI.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{LMScale: 1.0, HistoryLimit: -1}
}

// HistoryContext is the scoring context of a HistoryScorer: the label
// history shared through the history cache plus the input position.
type HistoryContext struct {
	History history.LabelHistory
	Step    int
	limit   int
}

// sentenceBeginHash marks histories whose window still reaches back to the
// sentence begin, so [A] and [B A] differ even when only A is kept.
const sentenceBeginHash = 0x5e17b391

func (c *HistoryContext) Hash() uint64 {
	h := c.History.ReducedHashKey(c.limit)
	if c.atStart() {
		h = history.CombineHashes(h, sentenceBeginHash)
	}
	return history.CombineHashes(h, uint64(c.Step))
}

func (c *HistoryContext) IsEqual(other ScoringContext) bool {
	o, ok := other.(*HistoryContext)
	if !ok || o.Step != c.Step || o.atStart() != c.atStart() {
		return false
	}
	return slices.Equal(c.recent(), o.recent())
}

func (c *HistoryContext) atStart() bool {
	return c.limit < 0 || len(c.History.Labels()) <= c.limit
}

func (c *HistoryContext) recent() history.LabelSequence {
	labels := c.History.Labels()
	if c.limit >= 0 && c.limit < len(labels) {
		return labels[len(labels)-c.limit:]
	}
	return labels
}

type lmKey struct {
	hist  uint64
	token LabelIndex
	start bool
}

// HistoryScorer adds scaled n-gram costs to the costs of a StepwiseScorer.
// Histories are hash-consed in a history.Manager; the scorer owns every
// context it hands out and releases them in CleanupCaches and Reset.
type HistoryScorer struct {
	cfg      HistoryConfig
	acoustic *StepwiseScorer
	lm       *language.NGramModel
	lex      *lexicon.Lexicon
	log      logrus.FieldLogger

	manager  *history.Manager
	live     map[*HistoryContext]struct{}
	lmCache  map[lmKey]float64
	sentEnd  LabelIndex
	stepReqs []Request
}

// NewHistoryScorer creates a scorer; log may be nil.
func NewHistoryScorer(cfg HistoryConfig, acoustic *StepwiseScorer, lm *language.NGramModel, lex *lexicon.Lexicon, log logrus.FieldLogger) (*HistoryScorer, error) {
	if acoustic == nil || lm == nil || lex == nil {
		return nil, errors.New("history scorer needs an acoustic scorer, a language model and a lexicon")
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = lm.Order - 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &HistoryScorer{
		cfg:      cfg,
		acoustic: acoustic,
		lm:       lm,
		lex:      lex,
		log:      log.WithField("scorer", "history"),
		manager:  history.NewManager(),
		live:     make(map[*HistoryContext]struct{}),
		lmCache:  make(map[lmKey]float64),
		sentEnd:  InvalidLabelIndex,
	}
	if l := lex.SpecialLemma(lexicon.SpecialSentenceEnd); l != nil {
		s.sentEnd = LabelIndex(l.ID)
	}
	return s, nil
}

// Reset releases every context handed out so far.
func (s *HistoryScorer) Reset() {
	for c := range s.live {
		c.History.Release()
	}
	clear(s.live)
	clear(s.lmCache)
	s.manager.Close()
	s.acoustic.Reset()
}

func (s *HistoryScorer) SignalNoMoreFeatures() {
	s.acoustic.SignalNoMoreFeatures()
}

func (s *HistoryScorer) AddInput(input []float64) {
	s.acoustic.AddInput(input)
}

func (s *HistoryScorer) AddInputs(data []float64, nTimesteps int) {
	s.acoustic.AddInputs(data, nTimesteps)
}

// LiveHistories returns the number of distinct cached histories.
func (s *HistoryScorer) LiveHistories() int {
	return s.manager.Len()
}

func (s *HistoryScorer) InitialScoringContext() ScoringContext {
	root, _ := s.manager.UpdateCache(history.NewBase(nil), 0)
	return s.track(&HistoryContext{History: s.manager.History(root), limit: s.cfg.HistoryLimit})
}

func (s *HistoryScorer) ExtendedScoringContext(req Request) ScoringContext {
	c := historyContextOf(req.Context)
	next := &HistoryContext{Step: c.Step + 1, limit: s.cfg.HistoryLimit}
	if !s.extendsHistory(req) {
		next.History = c.History.Clone()
		return s.track(next)
	}
	base := c.History.Handle()
	if found, ok := s.manager.CheckCache(base, req.NextToken, 0); ok {
		next.History = s.manager.History(found)
		return s.track(next)
	}
	committed, _ := s.manager.UpdateCache(base.Extend(req.NextToken), 0)
	next.History = s.manager.History(committed)
	return s.track(next)
}

func (s *HistoryScorer) ScoresWithTimes(reqs []Request) (ScoresWithTimes, bool) {
	s.stepReqs = s.stepReqs[:0]
	for _, req := range reqs {
		c := historyContextOf(req.Context)
		s.stepReqs = append(s.stepReqs, Request{
			Context:    &StepContext{Step: c.Step},
			NextToken:  req.NextToken,
			Transition: req.Transition,
		})
	}
	res, ok := s.acoustic.ScoresWithTimes(s.stepReqs)
	if !ok {
		return ScoresWithTimes{}, false
	}
	for i, req := range reqs {
		res.Scores[i] += s.cfg.LMScale * s.lmCost(historyContextOf(req.Context), req)
	}
	return res, true
}

// CleanupCaches releases every context that is not in active and lets the
// acoustic scorer drop frames behind the oldest active step.
func (s *HistoryScorer) CleanupCaches(active []ScoringContext) {
	keep := make(map[*HistoryContext]struct{}, len(active))
	steps := make([]ScoringContext, 0, len(active))
	for _, a := range active {
		c := historyContextOf(a)
		keep[c] = struct{}{}
		steps = append(steps, &StepContext{Step: c.Step})
	}
	released := 0
	for c := range s.live {
		if _, ok := keep[c]; ok {
			continue
		}
		c.History.Release()
		delete(s.live, c)
		released++
	}
	s.acoustic.CleanupCaches(steps)
	s.log.WithFields(logrus.Fields{
		"released":  released,
		"histories": s.manager.Len(),
	}).Debug("cleaned up history contexts")
}

func (s *HistoryScorer) track(c *HistoryContext) *HistoryContext {
	s.live[c] = struct{}{}
	return c
}

func (s *HistoryScorer) extendsHistory(req Request) bool {
	if req.Transition == LabelLoop && !s.cfg.ExtendOnLoop {
		return false
	}
	l := s.lex.Lemma(int(req.NextToken))
	return l != nil && !l.IsSpecial()
}

// lmCost returns -ln P(token | history) for tokens that enter the history
// and for sentence end, and 0 otherwise.
func (s *HistoryScorer) lmCost(c *HistoryContext, req Request) float64 {
	var word string
	switch {
	case req.NextToken == s.sentEnd && !req.Transition.IsLoop():
		word = language.SentenceEnd
	case s.extendsHistory(req):
		word = s.lex.Lemma(int(req.NextToken)).Symbol
	default:
		return 0
	}

	key := lmKey{hist: c.History.ReducedHashKey(s.cfg.HistoryLimit), token: req.NextToken, start: c.atStart()}
	if cost, ok := s.lmCache[key]; ok {
		return cost
	}
	recent := c.recent()
	words := make([]string, 0, len(recent)+1)
	if key.start {
		words = append(words, language.SentenceBegin)
	}
	for _, l := range recent {
		words = append(words, s.lex.Lemma(int(l)).Symbol)
	}
	cost := -s.lm.LogProb(words, word)
	s.lmCache[key] = cost
	return cost
}

func historyContextOf(c ScoringContext) *HistoryContext {
	hc, ok := c.(*HistoryContext)
	if !ok || hc == nil || !hc.History.IsValid() {
		panic(fmt.Sprintf("labelscorer: expected live history context, got %T", c))
	}
	return hc
}
