package trace

import (
	"fmt"
	"io"

	"github.com/rwth-i6/rasr-sub008/lattice"
	"github.com/rwth-i6/rasr-sub008/lexicon"
)

// LatticeTrace is a node of the trace DAG. Predecessor points backward in
// time; Sibling links other traces that were recombined into the same
// state. All fields are fixed at construction except the sibling chain,
// which only grows through AppendSiblingToChain. The DAG is not safe for
// concurrent mutation.
type LatticeTrace struct {
	TracebackItem
	Predecessor *LatticeTrace
	Sibling     *LatticeTrace
}

// NewRootTrace creates the segment start trace.
func NewRootTrace(time int, score ScoreVector, transit lattice.Transit) *LatticeTrace {
	return &LatticeTrace{TracebackItem: TracebackItem{Time: time, Score: score, Transit: transit}}
}

// NewLatticeTrace creates a trace that extends pred. pred must not end
// after time.
func NewLatticeTrace(pred *LatticeTrace, pron *lexicon.Pronunciation, time int, score ScoreVector, transit lattice.Transit) *LatticeTrace {
	if pred == nil {
		panic("trace: lattice trace without predecessor, use NewRootTrace")
	}
	if pred.Time > time {
		panic(fmt.Sprintf("trace: predecessor ends at %d after trace time %d", pred.Time, time))
	}
	return &LatticeTrace{
		TracebackItem: TracebackItem{Pronunciation: pron, Time: time, Score: score, Transit: transit},
		Predecessor:   pred,
	}
}

// IsRoot reports whether t starts a segment.
func (t *LatticeTrace) IsRoot() bool {
	return t.Predecessor == nil
}

// AppendSiblingToChain links s (with its own sibling chain) behind the
// last sibling of t. s must not end after t, and the two chains must be
// disjoint; anything else would make the chain cyclic.
func (t *LatticeTrace) AppendSiblingToChain(s *LatticeTrace) {
	if s == nil {
		panic("trace: nil sibling")
	}
	if s.Time > t.Time {
		panic(fmt.Sprintf("trace: sibling ends at %d after chain head at %d", s.Time, t.Time))
	}
	last := lastSibling(t)
	if lastSibling(s) == last {
		panic("trace: sibling is already part of the chain")
	}
	last.Sibling = s
}

// CanAppendSibling reports whether AppendSiblingToChain(s) would succeed.
func (t *LatticeTrace) CanAppendSibling(s *LatticeTrace) bool {
	return s != nil && s.Time <= t.Time && lastSibling(s) != lastSibling(t)
}

// lastSibling returns the end of t's chain. Two acyclic chains that share
// a trace share every trace after it, so they overlap iff they end in the
// same trace.
func lastSibling(t *LatticeTrace) *LatticeTrace {
	for t.Sibling != nil {
		t = t.Sibling
	}
	return t
}

// Siblings returns t and every trace in its sibling chain.
func (t *LatticeTrace) Siblings() []*LatticeTrace {
	var out []*LatticeTrace
	for c := t; c != nil; c = c.Sibling {
		out = append(out, c)
	}
	return out
}

// Traceback follows predecessors back to the root and returns the path in
// time order, root first. Siblings are ignored.
func (t *LatticeTrace) Traceback() Traceback {
	n := 0
	for c := t; c != nil; c = c.Predecessor {
		n++
	}
	tb := make(Traceback, n)
	for c := t; c != nil; c = c.Predecessor {
		n--
		tb[n] = c.TracebackItem
	}
	return tb
}

// LemmaSequence returns the lemmas on the path to t.
func (t *LatticeTrace) LemmaSequence() []*lexicon.Lemma {
	return t.Traceback().Lemmas()
}

// WordCount returns the number of non-epsilon traces on the path to t.
func (t *LatticeTrace) WordCount() int {
	n := 0
	for c := t; c != nil; c = c.Predecessor {
		if c.Pronunciation != nil {
			n++
		}
	}
	return n
}

// Write prints the traceback of t.
func (t *LatticeTrace) Write(w io.Writer) error {
	return t.Traceback().Write(w)
}

// BuildWordLattice expands the DAG behind t into a word lattice whose
// final state is t. Every trace maps to at most one state; all root traces
// share the initial state. Arcs carry the score difference between a
// sibling and its predecessor.
func (t *LatticeTrace) BuildWordLattice() *lattice.WordLattice {
	if t.Predecessor == nil {
		panic("trace: cannot build a lattice from a root trace")
	}

	l := lattice.New()
	final := l.NewState()
	l.SetFinal(final)

	states := map[*LatticeTrace]lattice.StateID{t: final}
	stack := []*LatticeTrace{t}
	var root *LatticeTrace

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		to := states[cur]
		l.SetWordBoundary(to, lattice.WordBoundary{Time: cur.Time, Transit: cur.Transit})

		for arc := cur; arc != nil; arc = arc.Sibling {
			pre := arc.Predecessor
			if pre == nil {
				panic("trace: sibling without predecessor in lattice")
			}
			var from lattice.StateID
			if pre.Predecessor == nil {
				from = l.Initial()
				root = pre
			} else if s, ok := states[pre]; ok {
				from = s
			} else {
				from = l.NewState()
				states[pre] = from
				stack = append(stack, pre)
			}
			d := arc.Score.Sub(pre.Score)
			l.NewArc(from, to, arc.Pronunciation, d.Acoustic, d.LM)
		}
	}

	l.SetWordBoundary(l.Initial(), lattice.WordBoundary{Time: root.Time, Transit: root.Transit})
	return l
}
