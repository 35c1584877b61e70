package lattice

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rwth-i6/rasr-sub008/lexicon"
)

func TestBestPath(t *testing.T) {
	lx := lexicon.New()
	a := lx.Add("A").Pronunciation
	b := lx.Add("B").Pronunciation
	c := lx.Add("C").Pronunciation

	// 0 -A-> 1 -B-> 3
	// 0 -C-> 2 -B-> 3
	l := New()
	s1, s2, s3 := l.NewState(), l.NewState(), l.NewState()
	l.NewArc(0, s1, a, 1.0, 0.5)
	l.NewArc(0, s2, c, 0.5, 0.5)
	l.NewArc(s1, s3, b, 1.0, 0)
	l.NewArc(s2, s3, b, 2.0, 0)
	l.SetFinal(s3)

	path, score, ok := l.BestPath()
	require.True(t, ok)
	assert.InDelta(t, 2.5, score, 1e-9)
	require.Len(t, path, 2)
	assert.Equal(t, "A", path[0].Symbol())
	assert.Equal(t, "B", path[1].Symbol())

	assert.Len(t, l.InArcs(s3), 2)
	assert.Len(t, l.OutArcs(0), 2)
	assert.Equal(t, 4, l.NumStates())
}

func TestBestPathUnreachable(t *testing.T) {
	l := New()
	_, _, ok := l.BestPath()
	assert.False(t, ok, "no final state")

	s := l.NewState()
	l.SetFinal(s)
	_, _, ok = l.BestPath()
	assert.False(t, ok)

	l2 := New()
	l2.SetFinal(l2.Initial())
	path, score, ok := l2.BestPath()
	assert.True(t, ok)
	assert.Empty(t, path)
	assert.Zero(t, score)
}

func TestWordBoundaryAndWrite(t *testing.T) {
	l := New()
	s := l.NewState()
	l.NewArc(l.Initial(), s, nil, 1.25, 0)
	l.SetFinal(s)
	l.SetWordBoundary(l.Initial(), WordBoundary{Time: 0})
	l.SetWordBoundary(s, WordBoundary{Time: 7, Transit: Transit{Final: "a"}})

	b, ok := l.Boundary(s)
	require.True(t, ok)
	assert.Equal(t, 7, b.Time)
	assert.Equal(t, "a", b.Transit.Final)

	var buf bytes.Buffer
	require.NoError(t, l.Write(&buf))
	assert.Equal(t, "initial 0\nfinal 1\nstate 0 time 0\nstate 1 time 7\narc 0 1 <eps> 1.2500 0.0000\n", buf.String())
}

func TestInvalidStatePanics(t *testing.T) {
	l := New()
	assert.Panics(t, func() { l.NewArc(0, 5, nil, 0, 0) })
	assert.Panics(t, func() { l.SetFinal(-1) })
}
