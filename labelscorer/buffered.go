package labelscorer

import "slices"

// BufferedScorer keeps the input frames of the current segment. Frames
// before the oldest active step can be dropped with DropBefore; timesteps
// stay absolute.
type BufferedScorer struct {
	frames          [][]float64
	offset          int
	featuresMissing bool
}

// Reset clears the buffer and expects new input.
func (b *BufferedScorer) Reset() {
	b.frames = b.frames[:0]
	b.offset = 0
	b.featuresMissing = true
}

// SignalNoMoreFeatures marks the end of input for the segment.
func (b *BufferedScorer) SignalNoMoreFeatures() {
	b.featuresMissing = false
}

// AddInput appends a copy of one frame.
func (b *BufferedScorer) AddInput(input []float64) {
	b.frames = append(b.frames, slices.Clone(input))
}

// AddInputs splits data into nTimesteps frames of equal size.
func (b *BufferedScorer) AddInputs(data []float64, nTimesteps int) {
	if nTimesteps <= 0 {
		return
	}
	if len(data)%nTimesteps != 0 {
		panic("labelscorer: input size is not a multiple of the number of timesteps")
	}
	dim := len(data) / nTimesteps
	for t := 0; t < nTimesteps; t++ {
		b.AddInput(data[t*dim : (t+1)*dim])
	}
}

// FeaturesMissing reports whether more input may still arrive.
func (b *BufferedScorer) FeaturesMissing() bool {
	return b.featuresMissing
}

// NumFrames returns the number of frames received so far, including dropped ones.
func (b *BufferedScorer) NumFrames() int {
	return b.offset + len(b.frames)
}

// Frame returns the frame at absolute timestep t.
func (b *BufferedScorer) Frame(t int) ([]float64, bool) {
	if t < b.offset || t >= b.NumFrames() {
		return nil, false
	}
	return b.frames[t-b.offset], true
}

// DropBefore releases all frames before absolute timestep t.
func (b *BufferedScorer) DropBefore(t int) {
	n := min(t-b.offset, len(b.frames))
	if n <= 0 {
		return
	}
	b.frames = slices.Delete(b.frames, 0, n)
	b.offset += n
}
