package labelscorer

import (
	"slices"

	"github.com/rwth-i6/rasr-sub008/history"
)

// LabelIndex identifies an output token. It is the lexicon lemma id.
type LabelIndex = history.LabelIndex

// InvalidLabelIndex marks "no token yet".
const InvalidLabelIndex = history.InvalidLabelIndex

// ScoringContext is an opaque decoder-state fingerprint. Two contexts that
// are IsEqual must have the same Hash.
type ScoringContext interface {
	Hash() uint64
	IsEqual(other ScoringContext) bool
}

// StepContext only tracks the current input position.
type StepContext struct {
	Step int
}

func (c *StepContext) Hash() uint64 {
	return uint64(c.Step)
}

func (c *StepContext) IsEqual(other ScoringContext) bool {
	o, ok := other.(*StepContext)
	return ok && o.Step == c.Step
}

// LabelSeqContext carries the full emitted label sequence.
type LabelSeqContext struct {
	Labels history.LabelSequence
}

func (c *LabelSeqContext) Hash() uint64 {
	return history.HashLabels(c.Labels)
}

func (c *LabelSeqContext) IsEqual(other ScoringContext) bool {
	o, ok := other.(*LabelSeqContext)
	return ok && slices.Equal(o.Labels, c.Labels)
}

// SeqStepContext combines a label sequence with the input position.
type SeqStepContext struct {
	Labels history.LabelSequence
	Step   int
}

func (c *SeqStepContext) Hash() uint64 {
	return history.CombineHashes(history.HashLabels(c.Labels), uint64(c.Step))
}

func (c *SeqStepContext) IsEqual(other ScoringContext) bool {
	o, ok := other.(*SeqStepContext)
	return ok && o.Step == c.Step && slices.Equal(o.Labels, c.Labels)
}

// CombineContext holds one context per sub-scorer of a CombineScorer.
type CombineContext struct {
	Contexts []ScoringContext
}

func (c *CombineContext) Hash() uint64 {
	var h uint64
	for _, sub := range c.Contexts {
		h = history.CombineHashes(h, sub.Hash())
	}
	return h
}

func (c *CombineContext) IsEqual(other ScoringContext) bool {
	o, ok := other.(*CombineContext)
	if !ok || len(o.Contexts) != len(c.Contexts) {
		return false
	}
	for i := range c.Contexts {
		if !c.Contexts[i].IsEqual(o.Contexts[i]) {
			return false
		}
	}
	return true
}
