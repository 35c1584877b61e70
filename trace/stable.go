package trace

// StableTraceTracker follows the longest trace prefix that all active
// hypotheses share. Everything up to the stable prefix can be emitted
// before the segment ends.
type StableTraceTracker struct {
	stable *LatticeTrace
}

// NewStableTraceTracker starts tracking at root.
func NewStableTraceTracker(root *LatticeTrace) *StableTraceTracker {
	return &StableTraceTracker{stable: root}
}

// SetTrace resets the stable prefix, e.g. at segment start.
func (s *StableTraceTracker) SetTrace(t *LatticeTrace) {
	s.stable = t
}

// StablePrefix returns the current stable prefix.
func (s *StableTraceTracker) StablePrefix() *LatticeTrace {
	return s.stable
}

// AdvanceStablePrefix moves the stable prefix forward as long as every
// active trace continues through the same successor. The current prefix
// must lie on the predecessor chain of every active trace.
func (s *StableTraceTracker) AdvanceStablePrefix(active []*LatticeTrace) {
	if len(active) == 0 {
		return
	}

	// paths[i] lists the traces between active[i] and the stable prefix,
	// newest first.
	paths := make([][]*LatticeTrace, len(active))
	for i, t := range active {
		var path []*LatticeTrace
		for c := t; c != s.stable; c = c.Predecessor {
			if c == nil {
				panic("trace: stable prefix is not an ancestor of an active trace")
			}
			path = append(path, c)
		}
		paths[i] = path
	}

	for depth := 0; ; depth++ {
		var candidate *LatticeTrace
		for _, path := range paths {
			if depth >= len(path) {
				return
			}
			next := path[len(path)-1-depth]
			if candidate == nil {
				candidate = next
			} else if next != candidate {
				return
			}
		}
		s.stable = candidate
	}
}
