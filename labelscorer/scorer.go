// Package labelscorer defines the scoring contract consumed by the search
// algorithms and a few simple scorers built on buffered per-frame scores.
package labelscorer

// Request asks for the cost of appending NextToken to Context.
type Request struct {
	Context    ScoringContext
	NextToken  LabelIndex
	Transition TransitionType
}

// ScoresWithTimes holds one cost and one emission timestep per request.
type ScoresWithTimes struct {
	Scores    []float64
	Timesteps []int
}

// LabelScorer produces costs (lower is better) for context extensions.
//
// ScoresWithTimes returns false when the scorer cannot answer yet, e.g.
// because it awaits more input or the end-of-input signal. That is an
// expected condition, not an error.
type LabelScorer interface {
	Reset()
	SignalNoMoreFeatures()
	InitialScoringContext() ScoringContext
	ExtendedScoringContext(req Request) ScoringContext
	AddInput(input []float64)
	AddInputs(data []float64, nTimesteps int)
	ScoresWithTimes(reqs []Request) (ScoresWithTimes, bool)
	// CleanupCaches lets the scorer drop state that none of the active
	// contexts can reach anymore.
	CleanupCaches(active []ScoringContext)
}
