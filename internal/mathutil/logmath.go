package mathutil

import "math"

// LogZero represents log(0), used as negative infinity in log-domain arithmetic.
const LogZero = -1e30

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// Differences below -36 are dropped since exp(-36) is under float64 precision.
func LogAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if b <= LogZero {
		return a
	}
	d := b - a
	if d < -36.0 {
		return a
	}
	return a + math.Log1p(math.Exp(d))
}

// LogSumExp folds LogAdd over v. An empty vector yields LogZero.
func LogSumExp(v Vec) float64 {
	acc := LogZero
	for _, x := range v {
		acc = LogAdd(acc, x)
	}
	return acc
}

// NegLogSoftmax stores -(src[i] - logsumexp(src)) in dst, turning a row of
// unnormalized log scores into costs.
func NegLogSoftmax(dst, src Vec) {
	norm := LogSumExp(src)
	for i := range dst {
		dst[i] = norm - src[i]
	}
}
