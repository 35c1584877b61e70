package labelscorer

import (
	"errors"
	"fmt"
)

// Weighted is a sub-scorer of a CombineScorer together with its scale.
type Weighted struct {
	Scorer LabelScorer
	Scale  float64
}

// CombineScorer sums the scaled costs of several scorers. The emission
// time of a request is the latest time any sub-scorer reports.
type CombineScorer struct {
	subs []Weighted
	reqs []Request
}

// NewCombineScorer creates a scorer over at least one sub-scorer.
func NewCombineScorer(subs ...Weighted) (*CombineScorer, error) {
	if len(subs) == 0 {
		return nil, errors.New("combine scorer needs at least one sub-scorer")
	}
	for i, sub := range subs {
		if sub.Scorer == nil {
			return nil, fmt.Errorf("combine scorer: sub-scorer %d is nil", i)
		}
	}
	return &CombineScorer{subs: subs}, nil
}

// NumSubScorers returns the number of combined scorers.
func (s *CombineScorer) NumSubScorers() int {
	return len(s.subs)
}

func (s *CombineScorer) Reset() {
	for _, sub := range s.subs {
		sub.Scorer.Reset()
	}
}

func (s *CombineScorer) SignalNoMoreFeatures() {
	for _, sub := range s.subs {
		sub.Scorer.SignalNoMoreFeatures()
	}
}

func (s *CombineScorer) AddInput(input []float64) {
	for _, sub := range s.subs {
		sub.Scorer.AddInput(input)
	}
}

func (s *CombineScorer) AddInputs(data []float64, nTimesteps int) {
	for _, sub := range s.subs {
		sub.Scorer.AddInputs(data, nTimesteps)
	}
}

func (s *CombineScorer) InitialScoringContext() ScoringContext {
	c := &CombineContext{Contexts: make([]ScoringContext, len(s.subs))}
	for i, sub := range s.subs {
		c.Contexts[i] = sub.Scorer.InitialScoringContext()
	}
	return c
}

func (s *CombineScorer) ExtendedScoringContext(req Request) ScoringContext {
	c := s.contextOf(req.Context)
	next := &CombineContext{Contexts: make([]ScoringContext, len(s.subs))}
	for i, sub := range s.subs {
		next.Contexts[i] = sub.Scorer.ExtendedScoringContext(Request{
			Context:    c.Contexts[i],
			NextToken:  req.NextToken,
			Transition: req.Transition,
		})
	}
	return next
}

func (s *CombineScorer) ScoresWithTimes(reqs []Request) (ScoresWithTimes, bool) {
	total := ScoresWithTimes{
		Scores:    make([]float64, len(reqs)),
		Timesteps: make([]int, len(reqs)),
	}
	for i, sub := range s.subs {
		s.reqs = s.reqs[:0]
		for _, req := range reqs {
			s.reqs = append(s.reqs, Request{
				Context:    s.contextOf(req.Context).Contexts[i],
				NextToken:  req.NextToken,
				Transition: req.Transition,
			})
		}
		res, ok := sub.Scorer.ScoresWithTimes(s.reqs)
		if !ok {
			return ScoresWithTimes{}, false
		}
		for j := range reqs {
			total.Scores[j] += sub.Scale * res.Scores[j]
			total.Timesteps[j] = max(total.Timesteps[j], res.Timesteps[j])
		}
	}
	return total, true
}

func (s *CombineScorer) CleanupCaches(active []ScoringContext) {
	for i, sub := range s.subs {
		subActive := make([]ScoringContext, len(active))
		for j, a := range active {
			subActive[j] = s.contextOf(a).Contexts[i]
		}
		sub.Scorer.CleanupCaches(subActive)
	}
}

func (s *CombineScorer) contextOf(c ScoringContext) *CombineContext {
	cc, ok := c.(*CombineContext)
	if !ok || cc == nil || len(cc.Contexts) != len(s.subs) {
		panic(fmt.Sprintf("labelscorer: expected combine context with %d entries, got %T", len(s.subs), c))
	}
	return cc
}
