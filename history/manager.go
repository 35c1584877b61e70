package history

import (
	"fmt"
	"slices"
)

// Manager owns the cache from content hash to history object.
type Manager struct {
	cache map[uint64]*Base
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{cache: make(map[uint64]*Base)}
}

// History wraps h in a new handle, incrementing its reference count.
func (m *Manager) History(h *Base) LabelHistory {
	if h == nil {
		panic("history: History called with nil handle")
	}
	h.refCount++
	return LabelHistory{m: m, h: h}
}

// CheckCache looks up the key of h's sequence extended by next, optionally
// combined with updateHash, without creating anything.
func (m *Manager) CheckCache(h *Base, next LabelIndex, updateHash uint64) (*Base, bool) {
	key := CombineHashes(ExtendedHashKey(h.Labels, next), updateHash)
	found, ok := m.cache[key]
	return found, ok
}

// UpdateCache commits h under the (possibly combined) key of its current
// sequence. If the key is taken, the cached object is returned with false
// and h stays uncached; the caller should discard h in favor of it.
func (m *Manager) UpdateCache(h *Base, updateHash uint64) (*Base, bool) {
	if h.cached {
		panic("history: UpdateCache called twice for the same object")
	}
	key := CombineHashes(HashKey(h.Labels), updateHash)
	if existing, ok := m.cache[key]; ok {
		return existing, false
	}
	h.cacheHash = key
	h.cached = true
	m.cache[key] = h
	return h, true
}

// IsEqualSequence reports whether a and b hold the same labels.
func (m *Manager) IsEqualSequence(a, b *Base) bool {
	return slices.Equal(a.Labels, b.Labels)
}

// IsEqualExtendedSequence reports whether a extended by next equals b.
func (m *Manager) IsEqualExtendedSequence(a *Base, next LabelIndex, b *Base) bool {
	if len(b.Labels) != len(a.Labels)+1 {
		return false
	}
	return slices.Equal(a.Labels, b.Labels[:len(a.Labels)]) && b.LastLabel() == next
}

// Len returns the number of cached objects.
func (m *Manager) Len() int {
	return len(m.cache)
}

// Close verifies that every handle has been released. A non-empty cache at
// this point is a lifecycle bug in the caller.
func (m *Manager) Close() {
	if len(m.cache) != 0 {
		panic(fmt.Sprintf("history: manager closed with %d live histories", len(m.cache)))
	}
}

func (m *Manager) release(h *Base) {
	if h.refCount <= 0 {
		panic("history: release of an unreferenced history")
	}
	h.refCount--
	if h.refCount > 0 {
		return
	}
	// Erase by the stored key: it may include a combined update hash.
	if h.cached && m.cache[h.cacheHash] == h {
		delete(m.cache, h.cacheHash)
	}
	h.cached = false
}

// HashKey hashes a whole label sequence.
func HashKey(seq LabelSequence) uint64 {
	return HashLabels(seq)
}

// ExtendedHashKey hashes seq with next appended, without allocating a new
// history object.
func ExtendedHashKey(seq LabelSequence, next LabelIndex) uint64 {
	return hashWithExtension(seq, next, true)
}

// ReducedHashKey hashes the last limit labels of seq, or all of them if
// limit is negative or exceeds the sequence length.
func ReducedHashKey(seq LabelSequence, limit int) uint64 {
	return HashLabels(reduce(seq, limit))
}

// ReducedExtendedHashKey hashes the last limit labels of seq extended by next.
func ReducedExtendedHashKey(seq LabelSequence, limit int, next LabelIndex) uint64 {
	if limit == 0 {
		return HashLabels(nil)
	}
	if limit > 0 {
		// next occupies one slot of the window
		return hashWithExtension(reduce(seq, limit-1), next, true)
	}
	return hashWithExtension(seq, next, true)
}
