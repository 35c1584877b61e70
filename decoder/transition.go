package decoder

import "github.com/rwth-i6/rasr-sub008/labelscorer"

// LabelIndex is the lexicon lemma id used as output token.
type LabelIndex = labelscorer.LabelIndex

// InferTransitionType classifies the step from prev to next in a
// blank-augmented topology. Blank is only recognized when useBlank is set;
// label loops only when allowLabelLoop is set.
func InferTransitionType(prev, next, blank LabelIndex, useBlank, allowLabelLoop bool) labelscorer.TransitionType {
	prevIsBlank := useBlank && prev == blank
	nextIsBlank := useBlank && next == blank

	if prevIsBlank {
		if nextIsBlank {
			return labelscorer.BlankLoop
		}
		return labelscorer.BlankToLabel
	}
	if nextIsBlank {
		return labelscorer.LabelToBlank
	}
	if allowLabelLoop && prev == next {
		return labelscorer.LabelLoop
	}
	return labelscorer.LabelToLabel
}
