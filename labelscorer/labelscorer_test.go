package labelscorer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwth-i6/rasr-sub008/history"
	"github.com/rwth-i6/rasr-sub008/language"
	"github.com/rwth-i6/rasr-sub008/lexicon"
)

func TestTransitionType(t *testing.T) {
	emitting := map[TransitionType]bool{
		LabelToLabel: true,
		LabelLoop:    false,
		LabelToBlank: true,
		BlankToLabel: true,
		BlankLoop:    false,
		InitialLabel: true,
		InitialBlank: true,
		WordExit:     false,
		SilenceExit:  false,
		SentenceEnd:  true,
	}
	for tt, want := range emitting {
		assert.Equal(t, want, tt.IsEmitting(), tt.String())
		assert.NotEqual(t, "unknown", tt.String())
	}
	assert.Equal(t, "blank-loop", BlankLoop.String())
	assert.Equal(t, "unknown", TransitionType(42).String())
	assert.True(t, LabelLoop.IsLoop())
	assert.False(t, LabelToLabel.IsLoop())
	assert.True(t, InitialBlank.EntersBlank())
}

func TestContextEquality(t *testing.T) {
	tests := []struct {
		name  string
		a, b  ScoringContext
		equal bool
	}{
		{"step", &StepContext{Step: 3}, &StepContext{Step: 3}, true},
		{"step differs", &StepContext{Step: 3}, &StepContext{Step: 4}, false},
		{"labels", &LabelSeqContext{Labels: history.LabelSequence{1, 2}}, &LabelSeqContext{Labels: history.LabelSequence{1, 2}}, true},
		{"labels differ", &LabelSeqContext{Labels: history.LabelSequence{1, 2}}, &LabelSeqContext{Labels: history.LabelSequence{2, 1}}, false},
		{"seq step", &SeqStepContext{Labels: history.LabelSequence{1}, Step: 2}, &SeqStepContext{Labels: history.LabelSequence{1}, Step: 2}, true},
		{"seq step differs", &SeqStepContext{Labels: history.LabelSequence{1}, Step: 2}, &SeqStepContext{Labels: history.LabelSequence{1}, Step: 3}, false},
		{"type mismatch", &StepContext{Step: 1}, &SeqStepContext{Step: 1}, false},
		{
			"combine",
			&CombineContext{Contexts: []ScoringContext{&StepContext{Step: 1}, &LabelSeqContext{Labels: history.LabelSequence{5}}}},
			&CombineContext{Contexts: []ScoringContext{&StepContext{Step: 1}, &LabelSeqContext{Labels: history.LabelSequence{5}}}},
			true,
		},
		{
			"combine differs",
			&CombineContext{Contexts: []ScoringContext{&StepContext{Step: 1}}},
			&CombineContext{Contexts: []ScoringContext{&StepContext{Step: 2}}},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.IsEqual(tt.b))
			assert.Equal(t, tt.equal, tt.b.IsEqual(tt.a))
			if tt.equal {
				assert.Equal(t, tt.a.Hash(), tt.b.Hash())
			}
		})
	}
}

func TestStepwiseScorer(t *testing.T) {
	s, err := NewStepwiseScorer(DefaultStepwiseConfig(), nil)
	require.NoError(t, err)

	ctx := s.InitialScoringContext()
	reqs := []Request{{Context: ctx, NextToken: 0}, {Context: ctx, NextToken: 1}}
	_, ok := s.ScoresWithTimes(reqs)
	assert.False(t, ok, "no input yet")

	s.AddInputs([]float64{0.5, 1.5, 2.5, 3.5}, 2)
	res, ok := s.ScoresWithTimes(reqs)
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 1.5}, res.Scores)
	assert.Equal(t, []int{0, 0}, res.Timesteps)

	next := s.ExtendedScoringContext(Request{Context: ctx, NextToken: 1, Transition: InitialLabel})
	assert.Equal(t, 1, next.(*StepContext).Step)
	res, ok = s.ScoresWithTimes([]Request{{Context: next, NextToken: 1}})
	require.True(t, ok)
	assert.Equal(t, []float64{3.5}, res.Scores)
	assert.Equal(t, []int{1}, res.Timesteps)

	last := s.ExtendedScoringContext(Request{Context: next, NextToken: 1})
	_, ok = s.ScoresWithTimes([]Request{{Context: last, NextToken: 0}})
	assert.False(t, ok, "step beyond buffered input")

	s.CleanupCaches([]ScoringContext{next})
	_, ok = s.Frame(0)
	assert.False(t, ok)
	_, ok = s.Frame(1)
	assert.True(t, ok)
	assert.Equal(t, 2, s.NumFrames())

	s.SignalNoMoreFeatures()
	assert.False(t, s.FeaturesMissing())
	s.Reset()
	assert.True(t, s.FeaturesMissing())
	assert.Equal(t, 0, s.NumFrames())
}

func TestStepwiseTransforms(t *testing.T) {
	tests := []struct {
		cfg  StepwiseConfig
		in   []float64
		want []float64
	}{
		{StepwiseConfig{Scale: 1, Transform: TransformCosts}, []float64{1, 2}, []float64{1, 2}},
		{StepwiseConfig{Scale: 2, Transform: TransformLogProbs}, []float64{-1, -2}, []float64{2, 4}},
		{StepwiseConfig{Scale: 1, Transform: TransformLogits}, []float64{0, 0}, []float64{math.Ln2, math.Ln2}},
	}
	for _, tt := range tests {
		t.Run(string(tt.cfg.Transform), func(t *testing.T) {
			s, err := NewStepwiseScorer(tt.cfg, nil)
			require.NoError(t, err)
			s.AddInput(tt.in)
			frame, ok := s.Frame(0)
			require.True(t, ok)
			assert.InDeltaSlice(t, tt.want, frame, 1e-9)
		})
	}

	_, err := NewStepwiseScorer(StepwiseConfig{Transform: "softmax"}, nil)
	assert.Error(t, err)
}

func TestStepwiseScorerPanicsOnForeignContext(t *testing.T) {
	s, err := NewStepwiseScorer(DefaultStepwiseConfig(), nil)
	require.NoError(t, err)
	s.AddInput([]float64{1})
	assert.Panics(t, func() {
		s.ScoresWithTimes([]Request{{Context: &LabelSeqContext{}, NextToken: 0}})
	})
}

// blank=0 A=1 B=2 eos=3
func testLexicon() *lexicon.Lexicon {
	lx := lexicon.New()
	lx.AddSpecial("<blank>", lexicon.SpecialBlank)
	lx.Add("A", "a")
	lx.Add("B", "b")
	lx.AddSpecial("</s>", lexicon.SpecialSentenceEnd)
	return lx
}

func testBigram() *language.NGramModel {
	lm := language.NewNGramModel(2)
	lm.Add([]string{"<s>"}, -99, 0)
	lm.Add([]string{"A"}, -1.0, -0.3)
	lm.Add([]string{"B"}, -2.0, 0)
	lm.Add([]string{"</s>"}, -1.5, 0)
	lm.Add([]string{"<s>", "A"}, -0.5, 0)
	lm.Add([]string{"A", "B"}, -0.25, 0)
	lm.Add([]string{"B", "</s>"}, -0.1, 0)
	return lm
}

func newTestHistoryScorer(t *testing.T) *HistoryScorer {
	t.Helper()
	ac, err := NewStepwiseScorer(DefaultStepwiseConfig(), nil)
	require.NoError(t, err)
	s, err := NewHistoryScorer(DefaultHistoryConfig(), ac, testBigram(), testLexicon(), nil)
	require.NoError(t, err)
	s.AddInput([]float64{1, 2, 3, 4})
	s.AddInput([]float64{1, 2, 3, 4})
	return s
}

func TestHistoryScorerAddsLanguageModelCosts(t *testing.T) {
	s := newTestHistoryScorer(t)
	root := s.InitialScoringContext()

	res, ok := s.ScoresWithTimes([]Request{
		{Context: root, NextToken: 0, Transition: InitialBlank},
		{Context: root, NextToken: 1, Transition: InitialLabel},
		{Context: root, NextToken: 2, Transition: InitialLabel},
		{Context: root, NextToken: 3, Transition: InitialLabel},
	})
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{
		1,       // blank: acoustic only
		2 + 0.5, // <s> A
		3 + 2.0, // backoff to unigram B
		4 + 1.5, // backoff to unigram </s>
	}, res.Scores, 1e-9)

	a := s.ExtendedScoringContext(Request{Context: root, NextToken: 1, Transition: InitialLabel})
	res, ok = s.ScoresWithTimes([]Request{
		{Context: a, NextToken: 2, Transition: LabelToLabel},
		{Context: a, NextToken: 1, Transition: LabelToLabel},
	})
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{3 + 0.25, 2 + 0.3 + 1.0}, res.Scores, 1e-9)
	assert.Equal(t, []int{1, 1}, res.Timesteps)

	s.Reset()
	assert.Equal(t, 0, s.LiveHistories())
}

func TestHistoryScorerSharesHistories(t *testing.T) {
	s := newTestHistoryScorer(t)
	root := s.InitialScoringContext()

	a1 := s.ExtendedScoringContext(Request{Context: root, NextToken: 1, Transition: InitialLabel}).(*HistoryContext)
	a2 := s.ExtendedScoringContext(Request{Context: root, NextToken: 1, Transition: InitialLabel}).(*HistoryContext)
	assert.Same(t, a1.History.Handle(), a2.History.Handle())
	assert.True(t, a1.IsEqual(a2))
	assert.Equal(t, a1.Hash(), a2.Hash())
	assert.Equal(t, 2, s.LiveHistories())

	blank := s.ExtendedScoringContext(Request{Context: a1, NextToken: 0, Transition: LabelToBlank}).(*HistoryContext)
	assert.Same(t, a1.History.Handle(), blank.History.Handle(), "blank keeps the history")
	assert.Equal(t, 2, blank.Step)
	assert.False(t, blank.IsEqual(a1))

	loop := s.ExtendedScoringContext(Request{Context: a1, NextToken: 1, Transition: LabelLoop}).(*HistoryContext)
	assert.Same(t, a1.History.Handle(), loop.History.Handle(), "loop keeps the history")
	assert.True(t, loop.IsEqual(blank))

	s.CleanupCaches([]ScoringContext{blank})
	assert.Equal(t, 1, s.LiveHistories(), "root history released")
	assert.Equal(t, 1, blank.History.Handle().RefCount(), "only blank still holds [A]")

	s.Reset()
	assert.Equal(t, 0, s.LiveHistories())
}

func TestHistoryContextDistinguishesSentenceBegin(t *testing.T) {
	m := history.NewManager()
	short := history.NewBase(history.LabelSequence{1})
	long := history.NewBase(history.LabelSequence{2, 1})
	m.UpdateCache(short, 0)
	m.UpdateCache(long, 0)
	hs, hl := m.History(short), m.History(long)

	a := &HistoryContext{History: hs, Step: 4, limit: 1}
	b := &HistoryContext{History: hl, Step: 4, limit: 1}
	assert.False(t, a.IsEqual(b))
	assert.NotEqual(t, a.Hash(), b.Hash())

	c := &HistoryContext{History: hl.Clone(), Step: 4, limit: 1}
	assert.True(t, b.IsEqual(c))
	assert.Equal(t, b.Hash(), c.Hash())

	hs.Release()
	hl.Release()
	c.History.Release()
	m.Close()
}

func TestCombineScorer(t *testing.T) {
	first, err := NewStepwiseScorer(DefaultStepwiseConfig(), nil)
	require.NoError(t, err)
	second, err := NewStepwiseScorer(StepwiseConfig{Scale: 1, Transform: TransformLogProbs}, nil)
	require.NoError(t, err)

	s, err := NewCombineScorer(Weighted{Scorer: first, Scale: 1}, Weighted{Scorer: second, Scale: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 2, s.NumSubScorers())

	s.AddInput([]float64{-1, -2})
	root := s.InitialScoringContext()
	res, ok := s.ScoresWithTimes([]Request{{Context: root, NextToken: 0}, {Context: root, NextToken: 1}})
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{-1 + 0.5, -2 + 1}, res.Scores, 1e-9)

	next := s.ExtendedScoringContext(Request{Context: root, NextToken: 1})
	_, ok = s.ScoresWithTimes([]Request{{Context: next, NextToken: 0}})
	assert.False(t, ok)
	assert.True(t, next.IsEqual(&CombineContext{Contexts: []ScoringContext{&StepContext{Step: 1}, &StepContext{Step: 1}}}))

	s.CleanupCaches([]ScoringContext{next})
	assert.Equal(t, 1, first.NumFrames())

	_, err = NewCombineScorer()
	assert.Error(t, err)
}
