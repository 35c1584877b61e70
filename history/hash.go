package history

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

const labelHashSeed = 0x78b174eb

// CombineHashes merges u into h the way boost::hash_combine does.
// Combining with 0 is a no-op and combining into 0 yields the other operand.
func CombineHashes(h, u uint64) uint64 {
	if h == 0 {
		return u
	}
	if u == 0 {
		return h
	}
	return h ^ (u + 0x9e3779b9 + (h << 6) + (h >> 2))
}

// HashLabels returns the murmur3 hash of a label sequence, encoded as
// little-endian uint32 values.
func HashLabels(seq LabelSequence) uint64 {
	return hashWithExtension(seq, InvalidLabelIndex, false)
}

func hashWithExtension(seq LabelSequence, next LabelIndex, extend bool) uint64 {
	n := len(seq)
	if extend {
		n++
	}
	buf := make([]byte, 4*n)
	for i, l := range seq {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(l))
	}
	if extend {
		binary.LittleEndian.PutUint32(buf[4*len(seq):], uint32(next))
	}
	return murmur3.Sum64WithSeed(buf, labelHashSeed)
}

func reduce(seq LabelSequence, limit int) LabelSequence {
	if limit < 0 || limit >= len(seq) {
		return seq
	}
	return seq[len(seq)-limit:]
}
