package transcript

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/rwth-i6/rasr-sub008/decoder"
	"github.com/rwth-i6/rasr-sub008/labelscorer"
	"github.com/rwth-i6/rasr-sub008/language"
	"github.com/rwth-i6/rasr-sub008/lexicon"
)

// FileConfig is the YAML configuration of a recognizer.
//
//	lexicon: lexicon.tsv
//	language-model: bigram.arpa
//	search: beam
//	decoder:
//	  max-beam-size: 8
//	  score-threshold: 12
//	stepwise:
//	  transform: log-probs
type FileConfig struct {
	Lexicon       string `yaml:"lexicon"`
	LanguageModel string `yaml:"language-model"`
	Search        string `yaml:"search"`

	Decoder  decoder.Config             `yaml:"decoder"`
	Stepwise labelscorer.StepwiseConfig `yaml:"stepwise"`
	History  labelscorer.HistoryConfig  `yaml:"history"`
}

// DefaultFileConfig returns the defaults that a YAML file overrides.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Search:   SearchGreedy,
		Decoder:  decoder.DefaultConfig(),
		Stepwise: labelscorer.DefaultStepwiseConfig(),
		History:  labelscorer.DefaultHistoryConfig(),
	}
}

// LoadConfig reads a YAML configuration. Unknown keys are an error.
func LoadConfig(r io.Reader) (FileConfig, error) {
	cfg := DefaultFileConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Decoder.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML configuration file. Relative model paths
// are resolved against the directory of the file.
func LoadConfigFile(path string) (FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileConfig{}, err
	}
	defer f.Close()
	cfg, err := LoadConfig(f)
	if err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	cfg.Lexicon = resolve(dir, cfg.Lexicon)
	cfg.LanguageModel = resolve(dir, cfg.LanguageModel)
	return cfg, nil
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// NewRecognizerFromConfig loads the lexicon and language model named in
// cfg and creates a Recognizer. Without a language model the stepwise
// scores are decoded as they are.
func NewRecognizerFromConfig(cfg FileConfig, opts ...Option) (*Recognizer, error) {
	if cfg.Lexicon == "" {
		return nil, errors.New("config names no lexicon")
	}
	lex, err := lexicon.LoadFile(cfg.Lexicon)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}

	// Peek at the caller's logger for the scorers.
	r := &Recognizer{}
	for _, opt := range opts {
		opt(r)
	}
	log := r.log
	if log == nil {
		log = logrus.StandardLogger()
	}

	stepwise, err := labelscorer.NewStepwiseScorer(cfg.Stepwise, log)
	if err != nil {
		return nil, err
	}
	var scorer labelscorer.LabelScorer = stepwise
	if cfg.LanguageModel != "" {
		lm, err := language.LoadARPAFile(cfg.LanguageModel)
		if err != nil {
			return nil, fmt.Errorf("load language model: %w", err)
		}
		scorer, err = labelscorer.NewHistoryScorer(cfg.History, stepwise, lm, lex, log)
		if err != nil {
			return nil, err
		}
	}

	base := []Option{WithDecoderConfig(cfg.Decoder), WithSearch(cfg.Search)}
	return NewRecognizer(lex, scorer, append(base, opts...)...)
}
