package transcript

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwth-i6/rasr-sub008/decoder"
	"github.com/rwth-i6/rasr-sub008/labelscorer"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(`
lexicon: lex.tsv
search: beam
decoder:
  max-beam-size: 8
  score-threshold: 12.5
  sentence-end-index: 3
stepwise:
  transform: log-probs
history:
  lm-scale: 0.5
`))
	require.NoError(t, err)
	assert.Equal(t, SearchBeam, cfg.Search)
	assert.Equal(t, 8, cfg.Decoder.MaxBeamSize)
	assert.Equal(t, 12.5, cfg.Decoder.ScoreThreshold)
	require.NotNil(t, cfg.Decoder.SentenceEndIndex)
	assert.Equal(t, decoder.LabelIndex(3), *cfg.Decoder.SentenceEndIndex)
	assert.Equal(t, labelscorer.TransformLogProbs, cfg.Stepwise.Transform)
	assert.Equal(t, 0.5, cfg.History.LMScale)

	// Unset keys keep their defaults.
	assert.True(t, cfg.Decoder.UseBlank)
	assert.Equal(t, 10, cfg.Decoder.CacheCleanupInterval)
	assert.Equal(t, -1, cfg.History.HistoryLimit)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, SearchGreedy, cfg.Search)
	assert.True(t, math.IsInf(cfg.Decoder.ScoreThreshold, 1))
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("beam: 3\n"))
	assert.Error(t, err)

	_, err = LoadConfig(strings.NewReader("decoder:\n  max-beam-size: 0\n"))
	assert.ErrorIs(t, err, decoder.ErrInvalidConfig)
}

const testARPA = `\data\
ngram 1=5
ngram 2=3

\1-grams:
-1.0	</s>
-99	<s>	0.0
-0.5	A	0.0
-0.5	B	0.0

\2-grams:
-0.1	<s>	A
-0.1	A	B
-0.1	B	</s>

\end\
`

func TestNewRecognizerFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("lex.tsv", "<blank>\tblank\nA\t-\ta\nB\t-\tb\n</s>\tsentence-end\n")
	write("lm.arpa", testARPA)
	write("config.yaml", "lexicon: lex.tsv\nlanguage-model: lm.arpa\nsearch: beam\ndecoder:\n  max-beam-size: 4\n")

	cfg, err := LoadConfigFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "lex.tsv"), cfg.Lexicon)
	assert.Equal(t, filepath.Join(dir, "lm.arpa"), cfg.LanguageModel)

	log, _ := logtest.NewNullLogger()
	r, err := NewRecognizerFromConfig(cfg, WithLogger(log))
	require.NoError(t, err)
	assert.IsType(t, &decoder.BeamSearch{}, r.Search())

	out, err := r.Recognize(context.Background(), testFrames)
	require.NoError(t, err)
	assert.Equal(t, "A B", out.Text)

	cfg.Lexicon = filepath.Join(dir, "missing.tsv")
	_, err = NewRecognizerFromConfig(cfg)
	assert.Error(t, err)
}
