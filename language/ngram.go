package language

import (
	"strings"

	"github.com/rwth-i6/rasr-sub008/internal/mathutil"
)

// Sentence boundary tokens used by ARPA models.
const (
	SentenceBegin = "<s>"
	SentenceEnd   = "</s>"
)

// NGramModel is a backing-off n-gram language model of arbitrary order.
// All probabilities are natural logs.
type NGramModel struct {
	Order      int
	OOVLogProb float64 // used for words without unigram; 0 = LogZero

	grams []map[string]ngramEntry // grams[n-1] holds the n-grams
}

type ngramEntry struct {
	LogProb    float64
	LogBackoff float64
}

// NewNGramModel creates an empty n-gram model.
func NewNGramModel(order int) *NGramModel {
	m := &NGramModel{}
	m.grow(order)
	return m
}

func (m *NGramModel) grow(order int) {
	for len(m.grams) < order {
		m.grams = append(m.grams, make(map[string]ngramEntry))
	}
	if order > m.Order {
		m.Order = order
	}
}

func gramKey(words []string) string {
	return strings.Join(words, "\x00")
}

// Add stores an n-gram; the order is len(words).
func (m *NGramModel) Add(words []string, logProb, logBackoff float64) {
	if len(words) == 0 {
		return
	}
	m.grow(len(words))
	m.grams[len(words)-1][gramKey(words)] = ngramEntry{LogProb: logProb, LogBackoff: logBackoff}
}

func (m *NGramModel) lookup(words []string) (ngramEntry, bool) {
	if len(words) == 0 || len(words) > len(m.grams) {
		return ngramEntry{}, false
	}
	e, ok := m.grams[len(words)-1][gramKey(words)]
	return e, ok
}

// NumGrams returns the number of stored n-grams of the given order.
func (m *NGramModel) NumGrams(order int) int {
	if order < 1 || order > len(m.grams) {
		return 0
	}
	return len(m.grams[order-1])
}

// LogProb returns the log probability of a word given its history.
// Only the last Order-1 history words are used; missing n-grams back off
// to shorter contexts, accumulating the context backoff weights.
func (m *NGramModel) LogProb(history []string, word string) float64 {
	n := min(len(history), m.Order-1)
	if n < 0 {
		n = 0
	}
	ctx := history[len(history)-n:]

	backoff := 0.0
	buf := make([]string, 0, n+1)
	for {
		buf = append(append(buf[:0], ctx...), word)
		if e, ok := m.lookup(buf); ok {
			return backoff + e.LogProb
		}
		if len(ctx) == 0 {
			break
		}
		if e, ok := m.lookup(ctx); ok {
			backoff += e.LogBackoff
		}
		ctx = ctx[1:]
	}

	if m.OOVLogProb != 0 {
		return backoff + m.OOVLogProb
	}
	return mathutil.LogZero
}

// SentenceLogProb returns the total log probability of a word sequence.
// Automatically adds <s> at the beginning and </s> at the end.
func (m *NGramModel) SentenceLogProb(words []string) float64 {
	total := 0.0
	history := []string{SentenceBegin}
	for _, w := range words {
		total += m.LogProb(history, w)
		history = append(history, w)
	}
	total += m.LogProb(history, SentenceEnd)
	return total
}

// Vocab returns all words in the unigram vocabulary.
func (m *NGramModel) Vocab() []string {
	if len(m.grams) == 0 {
		return nil
	}
	words := make([]string, 0, len(m.grams[0]))
	for w := range m.grams[0] {
		words = append(words, w)
	}
	return words
}
