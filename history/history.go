// Package history implements a hash-consed cache of label histories.
//
// A Manager guarantees at most one live Base per distinct cache key. The
// cache is a weak index: objects are owned by the LabelHistory handles that
// reference them and leave the cache when the last handle is released.
// The package is not safe for concurrent use.
package history

import "slices"

// LabelIndex identifies an output label.
type LabelIndex int32

// InvalidLabelIndex marks "no label", e.g. before the first emission.
const InvalidLabelIndex LabelIndex = -1

// LabelSequence is an ordered list of emitted labels, most recent last.
type LabelSequence []LabelIndex

// Base is the cached history object. Its label sequence must not be
// modified once it has been committed with Manager.UpdateCache.
type Base struct {
	Labels LabelSequence

	refCount  int
	cacheHash uint64
	cached    bool
}

// NewBase creates an uncached history object with a private copy of labels.
func NewBase(labels LabelSequence) *Base {
	return &Base{Labels: slices.Clone(labels)}
}

// Extend creates an uncached history object with next appended.
func (b *Base) Extend(next LabelIndex) *Base {
	labels := make(LabelSequence, len(b.Labels), len(b.Labels)+1)
	copy(labels, b.Labels)
	return &Base{Labels: append(labels, next)}
}

// RefCount returns the number of outstanding handles.
func (b *Base) RefCount() int {
	return b.refCount
}

// CacheHash returns the key this object was committed under.
func (b *Base) CacheHash() uint64 {
	return b.cacheHash
}

// LastLabel returns the most recent label, or InvalidLabelIndex.
func (b *Base) LastLabel() LabelIndex {
	if len(b.Labels) == 0 {
		return InvalidLabelIndex
	}
	return b.Labels[len(b.Labels)-1]
}

// LabelHistory is a counted handle to a Base. Obtain one from
// Manager.History or Clone, never by copying, and Release it exactly once.
type LabelHistory struct {
	m *Manager
	h *Base
}

// IsValid reports whether the handle references an object.
func (lh LabelHistory) IsValid() bool {
	return lh.h != nil
}

// Handle returns the referenced object.
func (lh LabelHistory) Handle() *Base {
	return lh.h
}

// Clone returns a second handle to the same object.
func (lh LabelHistory) Clone() LabelHistory {
	if lh.h == nil {
		return LabelHistory{}
	}
	return lh.m.History(lh.h)
}

// Release drops this handle's reference. Releasing an empty handle is a no-op.
func (lh *LabelHistory) Release() {
	if lh.h == nil {
		return
	}
	lh.m.release(lh.h)
	lh.h = nil
	lh.m = nil
}

// Labels returns the label sequence. Callers must not modify it.
func (lh LabelHistory) Labels() LabelSequence {
	if lh.h == nil {
		return nil
	}
	return lh.h.Labels
}

// LastLabel returns the most recent label, or InvalidLabelIndex.
func (lh LabelHistory) LastLabel() LabelIndex {
	if lh.h == nil {
		return InvalidLabelIndex
	}
	return lh.h.LastLabel()
}

// ReducedHashKey hashes only the last limit labels.
func (lh LabelHistory) ReducedHashKey(limit int) uint64 {
	return ReducedHashKey(lh.Labels(), limit)
}
