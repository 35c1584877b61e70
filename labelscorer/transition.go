package labelscorer

// TransitionType classifies a proposed token relative to the previously
// emitted one.
type TransitionType int

const (
	LabelToLabel TransitionType = iota
	LabelLoop
	LabelToBlank
	BlankToLabel
	BlankLoop
	InitialLabel
	InitialBlank
	WordExit
	SilenceExit
	SentenceEnd
)

var transitionNames = [...]string{
	LabelToLabel: "label-to-label",
	LabelLoop:    "label-loop",
	LabelToBlank: "label-to-blank",
	BlankToLabel: "blank-to-label",
	BlankLoop:    "blank-loop",
	InitialLabel: "initial-label",
	InitialBlank: "initial-blank",
	WordExit:     "word-exit",
	SilenceExit:  "silence-exit",
	SentenceEnd:  "sentence-end",
}

func (t TransitionType) String() string {
	if t < 0 || int(t) >= len(transitionNames) {
		return "unknown"
	}
	return transitionNames[t]
}

// IsEmitting reports whether the transition produces a new output symbol,
// as opposed to extending the duration of the current one.
func (t TransitionType) IsEmitting() bool {
	switch t {
	case LabelToLabel, LabelToBlank, BlankToLabel, InitialLabel, InitialBlank, SentenceEnd:
		return true
	}
	return false
}

// IsLoop reports whether the transition repeats the previous symbol.
func (t TransitionType) IsLoop() bool {
	return t == LabelLoop || t == BlankLoop
}

// EntersBlank reports whether the transition ends in the blank symbol.
func (t TransitionType) EntersBlank() bool {
	return t == LabelToBlank || t == BlankLoop || t == InitialBlank
}
