package language

import (
	"math"
	"strings"
)

// Builder counts n-grams of tokenized sentences and estimates a backing-off
// model with Witten-Bell smoothing.
type Builder struct {
	order  int
	counts []map[string]int // counts[n-1] holds the n-gram counts
}

// NewBuilder creates a builder for models of the given order (at least 1).
func NewBuilder(order int) *Builder {
	order = max(order, 1)
	b := &Builder{order: order, counts: make([]map[string]int, order)}
	for i := range b.counts {
		b.counts[i] = make(map[string]int)
	}
	return b
}

// AddSentence adds a tokenized sentence. <s> and </s> are added automatically.
func (b *Builder) AddSentence(words []string) {
	if len(words) == 0 {
		return
	}
	seq := make([]string, 0, len(words)+2)
	seq = append(seq, SentenceBegin)
	seq = append(seq, words...)
	seq = append(seq, SentenceEnd)

	for i := range seq {
		for n := 1; n <= b.order && n <= i+1; n++ {
			b.counts[n-1][gramKey(seq[i+1-n:i+1])]++
		}
	}
}

// Build estimates the model. Unigrams are maximum likelihood estimates;
// an n-gram gets C(h,w) / (N(h) + T(h)) where N(h) counts the history and
// T(h) the distinct words following it. The left-over mass T(h)/(N(h)+T(h))
// goes to the backoff weight of h.
func (b *Builder) Build() *NGramModel {
	m := NewNGramModel(b.order)

	total := 0
	for _, c := range b.counts[0] {
		total += c
	}
	for key, c := range b.counts[0] {
		m.Add(strings.Split(key, "\x00"), math.Log(float64(c)/float64(total)), 0)
	}

	for n := 2; n <= b.order; n++ {
		type histStats struct{ n, types int }
		hists := make(map[string]*histStats)
		for key, c := range b.counts[n-1] {
			words := strings.Split(key, "\x00")
			hk := gramKey(words[:n-1])
			st := hists[hk]
			if st == nil {
				st = &histStats{}
				hists[hk] = st
			}
			st.n += c
			st.types++
		}

		// Lower-order mass of the words seen after each history, taken from
		// the model before the n-grams are added.
		lower := make(map[string]float64, len(hists))
		for key := range b.counts[n-1] {
			words := strings.Split(key, "\x00")
			lower[gramKey(words[:n-1])] += math.Exp(m.LogProb(words[1:n-1], words[n-1]))
		}

		for key, c := range b.counts[n-1] {
			words := strings.Split(key, "\x00")
			st := hists[gramKey(words[:n-1])]
			m.Add(words, math.Log(float64(c)/float64(st.n+st.types)), 0)
		}

		for hk, st := range hists {
			h := strings.Split(hk, "\x00")
			e, ok := m.lookup(h)
			if !ok || lower[hk] >= 1 {
				continue
			}
			left := float64(st.types) / float64(st.n+st.types)
			m.Add(h, e.LogProb, math.Log(left/(1-lower[hk])))
		}
	}
	return m
}
