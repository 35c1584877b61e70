package transcript

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwth-i6/rasr-sub008/decoder"
	"github.com/rwth-i6/rasr-sub008/labelscorer"
	"github.com/rwth-i6/rasr-sub008/lexicon"
	"github.com/rwth-i6/rasr-sub008/trace"
)

func testLexicon() *lexicon.Lexicon {
	lx := lexicon.New()
	lx.AddSpecial("<blank>", lexicon.SpecialBlank)
	lx.Add("A", "a")
	lx.Add("B", "b")
	lx.AddSpecial("</s>", lexicon.SpecialSentenceEnd)
	return lx
}

var testFrames = [][]float64{
	{0.1, 1, 1, 5},
	{1, 0.2, 1, 5},
	{0.1, 1, 1, 5},
	{1, 1, 0.3, 5},
	{1, 1, 1, 0.1},
}

func newTestRecognizer(t *testing.T, opts ...Option) *Recognizer {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	scorer, err := labelscorer.NewStepwiseScorer(labelscorer.DefaultStepwiseConfig(), log)
	require.NoError(t, err)
	r, err := NewRecognizer(testLexicon(), scorer, append([]Option{WithLogger(log)}, opts...)...)
	require.NoError(t, err)
	return r
}

func TestRecognize(t *testing.T) {
	for _, kind := range []string{SearchGreedy, SearchBeam} {
		t.Run(kind, func(t *testing.T) {
			stats := decoder.NewStatistics(prometheus.NewRegistry())
			cfg := decoder.DefaultConfig()
			cfg.MaxBeamSize = 2
			r := newTestRecognizer(t, WithSearch(kind), WithDecoderConfig(cfg), WithStatistics(stats))

			// The sentence end lemma is picked up from the lexicon.
			require.NotNil(t, r.DecCfg.SentenceEndIndex)
			assert.Equal(t, decoder.LabelIndex(3), *r.DecCfg.SentenceEndIndex)

			out, err := r.Recognize(context.Background(), testFrames)
			require.NoError(t, err)
			assert.Equal(t, "A B", out.Text)
			assert.InDelta(t, 0.8, out.Score, 1e-9)
			assert.NotEmpty(t, out.SegmentID)
			assert.Equal(t, []string{"A", "B"}, out.Traceback.Words())
			require.NotNil(t, out.Lattice)
			assert.Equal(t, 5.0, testutil.ToFloat64(stats.DecodeSteps.WithLabelValues(kind)))

			again, err := r.Recognize(context.Background(), testFrames)
			require.NoError(t, err)
			assert.Equal(t, out.Text, again.Text)
			assert.NotEqual(t, out.SegmentID, again.SegmentID)
		})
	}
}

func TestRecognizeCanceled(t *testing.T) {
	r := newTestRecognizer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Recognize(ctx, testFrames)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecognizeStream(t *testing.T) {
	r := newTestRecognizer(t)

	frames := make(chan []float64, len(testFrames))
	for _, f := range testFrames {
		frames <- f
	}
	close(frames)

	var partials []int
	out, err := r.RecognizeStream(context.Background(), frames, func(tb trace.Traceback) {
		partials = append(partials, len(tb))
	})
	require.NoError(t, err)
	assert.Equal(t, "A B", out.Text)
	assert.Equal(t, []int{2, 3, 4, 5, 6}, partials)
}

func TestNewRecognizerErrors(t *testing.T) {
	scorer, err := labelscorer.NewStepwiseScorer(labelscorer.DefaultStepwiseConfig(), nil)
	require.NoError(t, err)

	_, err = NewRecognizer(testLexicon(), scorer, WithSearch("astar"))
	assert.ErrorIs(t, err, ErrNoSearch)

	cfg := decoder.DefaultConfig()
	cfg.CacheCleanupInterval = 0
	_, err = NewRecognizer(testLexicon(), scorer, WithDecoderConfig(cfg))
	assert.ErrorIs(t, err, decoder.ErrInvalidConfig)
}
