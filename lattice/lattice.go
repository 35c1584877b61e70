// Package lattice holds the word lattice produced by the search: an
// acyclic graph whose arcs carry pronunciations and split scores.
package lattice

import (
	"fmt"
	"io"
	"math"

	"github.com/rwth-i6/rasr-sub008/lexicon"
)

// StateID identifies a lattice state.
type StateID int

// InvalidState marks a missing state.
const InvalidState StateID = -1

// Transit describes the phoneme context at a word boundary. Empty fields
// mean a plain word boundary.
type Transit struct {
	Final   string
	Initial string
}

// WordBoundary is the time and transit attached to a state.
type WordBoundary struct {
	Time    int
	Transit Transit
}

// Arc is a weighted, labeled transition. A nil pronunciation is epsilon.
type Arc struct {
	From          StateID
	To            StateID
	Pronunciation *lexicon.Pronunciation
	Acoustic      float64
	LM            float64
}

// Score returns the combined arc weight.
func (a Arc) Score() float64 {
	return a.Acoustic + a.LM
}

// Symbol returns the lemma symbol of the arc, or "<eps>".
func (a Arc) Symbol() string {
	if a.Pronunciation == nil || a.Pronunciation.Lemma == nil {
		return "<eps>"
	}
	return a.Pronunciation.Lemma.Symbol
}

type state struct {
	out      []int
	in       []int
	boundary WordBoundary
	hasBound bool
}

// WordLattice is built once by the search and read afterwards.
type WordLattice struct {
	states []state
	arcs   []Arc
	final  StateID
}

// New creates a lattice consisting of the initial state only.
func New() *WordLattice {
	l := &WordLattice{final: InvalidState}
	l.NewState()
	return l
}

// Initial returns the initial state.
func (l *WordLattice) Initial() StateID {
	return 0
}

// Final returns the final state, or InvalidState if none has been set.
func (l *WordLattice) Final() StateID {
	return l.final
}

// SetFinal designates the final state.
func (l *WordLattice) SetFinal(s StateID) {
	l.check(s)
	l.final = s
}

// NewState adds an unconnected state.
func (l *WordLattice) NewState() StateID {
	l.states = append(l.states, state{})
	return StateID(len(l.states) - 1)
}

// NumStates returns the number of states.
func (l *WordLattice) NumStates() int {
	return len(l.states)
}

// NewArc connects from to to.
func (l *WordLattice) NewArc(from, to StateID, pron *lexicon.Pronunciation, acoustic, lm float64) {
	l.check(from)
	l.check(to)
	idx := len(l.arcs)
	l.arcs = append(l.arcs, Arc{From: from, To: to, Pronunciation: pron, Acoustic: acoustic, LM: lm})
	l.states[from].out = append(l.states[from].out, idx)
	l.states[to].in = append(l.states[to].in, idx)
}

// Arcs returns all arcs in insertion order.
func (l *WordLattice) Arcs() []Arc {
	return l.arcs
}

// OutArcs returns the arcs leaving s.
func (l *WordLattice) OutArcs(s StateID) []Arc {
	l.check(s)
	return l.collect(l.states[s].out)
}

// InArcs returns the arcs entering s.
func (l *WordLattice) InArcs(s StateID) []Arc {
	l.check(s)
	return l.collect(l.states[s].in)
}

// SetWordBoundary attaches timing information to s.
func (l *WordLattice) SetWordBoundary(s StateID, b WordBoundary) {
	l.check(s)
	l.states[s].boundary = b
	l.states[s].hasBound = true
}

// Boundary returns the word boundary of s.
func (l *WordLattice) Boundary(s StateID) (WordBoundary, bool) {
	l.check(s)
	return l.states[s].boundary, l.states[s].hasBound
}

// BestPath returns the cheapest arc sequence from the initial to the final
// state and its total score. ok is false if the final state is unreachable.
func (l *WordLattice) BestPath() (path []Arc, score float64, ok bool) {
	if l.final == InvalidState {
		return nil, 0, false
	}
	order := l.topoOrder()
	dist := make([]float64, len(l.states))
	via := make([]int, len(l.states))
	for i := range dist {
		dist[i] = math.Inf(1)
		via[i] = -1
	}
	dist[l.Initial()] = 0
	for _, s := range order {
		if math.IsInf(dist[s], 1) {
			continue
		}
		for _, ai := range l.states[s].out {
			a := l.arcs[ai]
			if d := dist[s] + a.Score(); d < dist[a.To] {
				dist[a.To] = d
				via[a.To] = ai
			}
		}
	}
	if math.IsInf(dist[l.final], 1) {
		return nil, 0, false
	}
	for s := l.final; via[s] >= 0; s = l.arcs[via[s]].From {
		path = append(path, l.arcs[via[s]])
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, dist[l.final], true
}

// Write dumps the lattice in a line-based text form.
func (l *WordLattice) Write(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "initial %d\nfinal %d\n", l.Initial(), l.final); err != nil {
		return err
	}
	for s := range l.states {
		if b, ok := l.Boundary(StateID(s)); ok {
			if _, err := fmt.Fprintf(w, "state %d time %d\n", s, b.Time); err != nil {
				return err
			}
		}
	}
	for _, a := range l.arcs {
		if _, err := fmt.Fprintf(w, "arc %d %d %s %.4f %.4f\n", a.From, a.To, a.Symbol(), a.Acoustic, a.LM); err != nil {
			return err
		}
	}
	return nil
}

// topoOrder sorts the states so that every arc points forward. The lattice
// is acyclic by construction; a cycle is a bug in the builder.
func (l *WordLattice) topoOrder() []StateID {
	indeg := make([]int, len(l.states))
	for _, a := range l.arcs {
		indeg[a.To]++
	}
	queue := make([]StateID, 0, len(l.states))
	for s, d := range indeg {
		if d == 0 {
			queue = append(queue, StateID(s))
		}
	}
	for i := 0; i < len(queue); i++ {
		for _, ai := range l.states[queue[i]].out {
			to := l.arcs[ai].To
			indeg[to]--
			if indeg[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
	if len(queue) != len(l.states) {
		panic("lattice: cycle in word lattice")
	}
	return queue
}

func (l *WordLattice) collect(idx []int) []Arc {
	out := make([]Arc, len(idx))
	for i, ai := range idx {
		out[i] = l.arcs[ai]
	}
	return out
}

func (l *WordLattice) check(s StateID) {
	if s < 0 || int(s) >= len(l.states) {
		panic(fmt.Sprintf("lattice: state %d out of range", s))
	}
}
