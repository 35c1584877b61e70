package decoder

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/rwth-i6/rasr-sub008/lexicon"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid decoder config")

// Config holds search parameters shared by the greedy and the beam search.
type Config struct {
	UseBlank       bool       `yaml:"use-blank"`
	BlankIndex     LabelIndex `yaml:"blank-index"`
	AllowLabelLoop bool       `yaml:"allow-label-loop"`

	// SentenceEndIndex stops decoding once this token is hypothesized.
	SentenceEndIndex *LabelIndex `yaml:"sentence-end-index"`

	MaxBeamSize    int     `yaml:"max-beam-size"`   // beam only
	ScoreThreshold float64 `yaml:"score-threshold"` // beam only; +Inf disables score pruning

	// MaximumStableDelay bounds the number of steps after which output must
	// be stable. 0 disables the bound.
	MaximumStableDelay int `yaml:"maximum-stable-delay"`

	CacheCleanupInterval  int  `yaml:"cache-cleanup-interval"`
	LogStepwiseStatistics bool `yaml:"log-stepwise-statistics"`
}

// DefaultConfig returns a CTC configuration with blank at index 0.
func DefaultConfig() Config {
	return Config{
		UseBlank:             true,
		BlankIndex:           0,
		MaxBeamSize:          1,
		ScoreThreshold:       math.Inf(1),
		CacheCleanupInterval: 10,
	}
}

// Validate checks the configuration for values the search cannot handle.
func (c Config) Validate() error {
	switch {
	case c.UseBlank && c.BlankIndex < 0:
		return fmt.Errorf("%w: blank index %d", ErrInvalidConfig, c.BlankIndex)
	case c.SentenceEndIndex != nil && *c.SentenceEndIndex < 0:
		return fmt.Errorf("%w: sentence end index %d", ErrInvalidConfig, *c.SentenceEndIndex)
	case c.MaxBeamSize < 1:
		return fmt.Errorf("%w: max beam size %d", ErrInvalidConfig, c.MaxBeamSize)
	case math.IsNaN(c.ScoreThreshold) || c.ScoreThreshold < 0:
		return fmt.Errorf("%w: score threshold %v", ErrInvalidConfig, c.ScoreThreshold)
	case c.MaximumStableDelay < 0:
		return fmt.Errorf("%w: maximum stable delay %d", ErrInvalidConfig, c.MaximumStableDelay)
	case c.CacheCleanupInterval < 1:
		return fmt.Errorf("%w: cache cleanup interval %d", ErrInvalidConfig, c.CacheCleanupInterval)
	}
	return nil
}

// ApplyLexicon enables blank if the lexicon has a blank lemma and the
// configuration does not use one yet. A configured blank index that
// disagrees with the lexicon wins but is logged.
func (c *Config) ApplyLexicon(lex *lexicon.Lexicon, log logrus.FieldLogger) {
	l := lex.SpecialLemma(lexicon.SpecialBlank)
	if l == nil {
		return
	}
	switch {
	case !c.UseBlank:
		c.UseBlank = true
		c.BlankIndex = LabelIndex(l.ID)
		log.WithField("blank_index", l.ID).Info("using blank index inferred from lexicon")
	case c.BlankIndex != LabelIndex(l.ID):
		log.WithFields(logrus.Fields{
			"lexicon": l.ID,
			"config":  c.BlankIndex,
		}).Warn("blank lemma in lexicon is overridden by configured blank index")
	}
}

func (c Config) isSentenceEnd(l LabelIndex) bool {
	return c.SentenceEndIndex != nil && *c.SentenceEndIndex == l
}
