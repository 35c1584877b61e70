// Package trace records committed search steps: flat tracebacks for a
// single hypothesis and a DAG of lattice traces shared by a beam.
package trace

import (
	"fmt"
	"io"
	"strings"

	"github.com/rwth-i6/rasr-sub008/lattice"
	"github.com/rwth-i6/rasr-sub008/lexicon"
)

// ScoreVector is a cost split into an acoustic and a language model part.
type ScoreVector struct {
	Acoustic float64
	LM       float64
}

func (s ScoreVector) Add(o ScoreVector) ScoreVector {
	return ScoreVector{Acoustic: s.Acoustic + o.Acoustic, LM: s.LM + o.LM}
}

func (s ScoreVector) Sub(o ScoreVector) ScoreVector {
	return ScoreVector{Acoustic: s.Acoustic - o.Acoustic, LM: s.LM - o.LM}
}

// Total returns the scalar cost.
func (s ScoreVector) Total() float64 {
	return s.Acoustic + s.LM
}

// TracebackItem is one committed step. Score is cumulative from segment
// start; a nil Pronunciation marks an epsilon step.
type TracebackItem struct {
	Pronunciation *lexicon.Pronunciation
	Time          int
	Score         ScoreVector
	Transit       lattice.Transit
}

// Lemma returns the output lemma, or nil for epsilon steps.
func (it TracebackItem) Lemma() *lexicon.Lemma {
	if it.Pronunciation == nil {
		return nil
	}
	return it.Pronunciation.Lemma
}

// Traceback is the path of one hypothesis in time order. The first item
// is the zero-score segment start.
type Traceback []TracebackItem

// Lemmas returns the lemmas of all non-epsilon items.
func (tb Traceback) Lemmas() []*lexicon.Lemma {
	var out []*lexicon.Lemma
	for _, it := range tb {
		if l := it.Lemma(); l != nil {
			out = append(out, l)
		}
	}
	return out
}

// Words returns the symbols of all non-epsilon items.
func (tb Traceback) Words() []string {
	lemmas := tb.Lemmas()
	out := make([]string, len(lemmas))
	for i, l := range lemmas {
		out[i] = l.Symbol
	}
	return out
}

// WordLattice converts the traceback into a linear lattice. The first
// item becomes the initial state; every following item adds one state and
// one arc weighted by the score difference to its predecessor.
func (tb Traceback) WordLattice() *lattice.WordLattice {
	l := lattice.New()
	cur := l.Initial()
	l.SetFinal(cur)
	if len(tb) == 0 {
		return l
	}
	l.SetWordBoundary(cur, lattice.WordBoundary{Time: tb[0].Time, Transit: tb[0].Transit})
	for i := 1; i < len(tb); i++ {
		next := l.NewState()
		l.SetWordBoundary(next, lattice.WordBoundary{Time: tb[i].Time, Transit: tb[i].Transit})
		d := tb[i].Score.Sub(tb[i-1].Score)
		l.NewArc(cur, next, tb[i].Pronunciation, d.Acoustic, d.LM)
		cur = next
	}
	l.SetFinal(cur)
	return l
}

// Write prints one line per item: time, cumulative score, lemma and
// phonemes, and the boundary transit.
func (tb Traceback) Write(w io.Writer) error {
	for _, it := range tb {
		var b strings.Builder
		fmt.Fprintf(&b, "t=%5d    s=%8.4f", it.Time, it.Score.Total())
		if l := it.Lemma(); l != nil {
			fmt.Fprintf(&b, "    %-20s    /%s/", l.Symbol, strings.Join(it.Pronunciation.Phonemes, " "))
		}
		fmt.Fprintf(&b, "    %s|%s\n", transitSymbol(it.Transit.Final), transitSymbol(it.Transit.Initial))
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func transitSymbol(p string) string {
	if p == "" {
		return "#"
	}
	return p
}
