package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineHashes(t *testing.T) {
	assert.Equal(t, uint64(42), CombineHashes(42, 0))
	assert.Equal(t, uint64(42), CombineHashes(0, 42))
	assert.Equal(t, uint64(0), CombineHashes(0, 0))

	h, u := uint64(7), uint64(11)
	want := h ^ (u + 0x9e3779b9 + (h << 6) + (h >> 2))
	assert.Equal(t, want, CombineHashes(h, u))
	assert.NotEqual(t, CombineHashes(h, u), CombineHashes(u, h))
}

func TestHashKeys(t *testing.T) {
	seq := LabelSequence{3, 1, 4, 1, 5}

	assert.Equal(t, HashKey(LabelSequence{3, 1, 4, 1, 5, 9}), ExtendedHashKey(seq, 9))
	assert.Equal(t, HashKey(LabelSequence{1, 5}), ReducedHashKey(seq, 2))
	assert.Equal(t, HashKey(seq), ReducedHashKey(seq, -1))
	assert.Equal(t, HashKey(seq), ReducedHashKey(seq, 10))
	assert.Equal(t, HashKey(LabelSequence{5, 9}), ReducedExtendedHashKey(seq, 2, 9))
	assert.Equal(t, HashKey(LabelSequence{3, 1, 4, 1, 5, 9}), ReducedExtendedHashKey(seq, -1, 9))
	assert.NotEqual(t, HashKey(LabelSequence{1, 2}), HashKey(LabelSequence{2, 1}))
}

func TestCheckCacheFindsCommittedExtension(t *testing.T) {
	m := NewManager()
	root := m.History(NewBase(nil))
	_, ok := m.UpdateCache(root.Handle(), 0)
	require.True(t, ok)

	_, found := m.CheckCache(root.Handle(), 1, 0)
	assert.False(t, found)

	ext := root.Handle().Extend(1)
	committed, ok := m.UpdateCache(ext, 0)
	require.True(t, ok)
	require.Same(t, ext, committed)
	h := m.History(ext)

	got, found := m.CheckCache(root.Handle(), 1, 0)
	require.True(t, found)
	assert.Same(t, ext, got)
	assert.Equal(t, 2, m.Len())

	h.Release()
	_, found = m.CheckCache(root.Handle(), 1, 0)
	assert.False(t, found)

	root.Release()
	assert.Equal(t, 0, m.Len())
	assert.NotPanics(t, m.Close)
}

func TestUpdateCacheReturnsExistingObject(t *testing.T) {
	m := NewManager()
	first := NewBase(LabelSequence{1, 2})
	_, ok := m.UpdateCache(first, 0)
	require.True(t, ok)
	h := m.History(first)

	dup := NewBase(LabelSequence{1, 2})
	got, ok := m.UpdateCache(dup, 0)
	assert.False(t, ok)
	assert.Same(t, first, got)
	assert.Equal(t, 1, m.Len())

	h.Release()
	m.Close()
}

func TestRefCount(t *testing.T) {
	m := NewManager()
	b := NewBase(LabelSequence{4, 2})
	m.UpdateCache(b, 0)

	const n = 5
	handles := make([]LabelHistory, n)
	handles[0] = m.History(b)
	for i := 1; i < n; i++ {
		handles[i] = handles[i-1].Clone()
	}
	assert.Equal(t, n, b.RefCount())

	for i := 0; i < n-1; i++ {
		handles[i].Release()
		assert.False(t, handles[i].IsValid())
	}
	assert.Equal(t, 1, b.RefCount())
	assert.Equal(t, 1, m.Len())
	assert.Panics(t, m.Close)

	handles[n-1].Release()
	assert.Equal(t, 0, b.RefCount())
	assert.Equal(t, 0, m.Len())
	assert.NotPanics(t, m.Close)

	// second release of the same handle is a no-op
	handles[n-1].Release()
}

func TestReleaseErasesByStoredHash(t *testing.T) {
	m := NewManager()
	const aux = 0xfeed
	b := NewBase(LabelSequence{7})
	_, ok := m.UpdateCache(b, aux)
	require.True(t, ok)
	assert.Equal(t, CombineHashes(HashKey(b.Labels), aux), b.CacheHash())

	// Same labels without the auxiliary hash live under a different key.
	plain := NewBase(LabelSequence{7})
	_, ok = m.UpdateCache(plain, 0)
	require.True(t, ok)
	hp := m.History(plain)

	h := m.History(b)
	found, ok := m.CheckCache(NewBase(nil), 7, aux)
	require.True(t, ok)
	assert.Same(t, b, found)

	h.Release()
	assert.Equal(t, 1, m.Len())
	_, ok = m.CheckCache(NewBase(nil), 7, 0)
	assert.True(t, ok)

	hp.Release()
	m.Close()
}

func TestHistoryPanicsOnNil(t *testing.T) {
	m := NewManager()
	assert.Panics(t, func() { m.History(nil) })
}

func TestLabelHistoryAccessors(t *testing.T) {
	m := NewManager()
	var empty LabelHistory
	assert.Equal(t, InvalidLabelIndex, empty.LastLabel())
	assert.Nil(t, empty.Labels())
	assert.False(t, empty.Clone().IsValid())

	b := NewBase(LabelSequence{1, 2, 3})
	m.UpdateCache(b, 0)
	h := m.History(b)
	assert.Equal(t, LabelIndex(3), h.LastLabel())
	assert.Equal(t, LabelSequence{1, 2, 3}, h.Labels())
	assert.Equal(t, HashKey(LabelSequence{2, 3}), h.ReducedHashKey(2))
	assert.True(t, m.IsEqualSequence(b, NewBase(LabelSequence{1, 2, 3})))
	assert.True(t, m.IsEqualExtendedSequence(NewBase(LabelSequence{1, 2}), 3, b))
	assert.False(t, m.IsEqualExtendedSequence(NewBase(LabelSequence{1, 2}), 4, b))
	h.Release()
	m.Close()
}
