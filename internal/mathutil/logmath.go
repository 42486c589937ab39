package mathutil

import "math"

// Float is the set of element types the log-domain helpers work on.
type Float interface {
	~float32 | ~float64
}

// LogZero represents log(0), used as negative infinity in log-domain arithmetic.
const LogZero = -1e30

// LogAdd returns log(exp(a) + exp(b)) in a numerically stable way.
// The smaller operand is skipped when it contributes less than float64
// precision (exp(-36) ≈ 2.3e-16).
func LogAdd[T Float](a, b T) T {
	if a < b {
		a, b = b, a
	}
	if b <= LogZero {
		return a
	}
	d := float64(b - a)
	if d < -36.0 {
		return a
	}
	return a + T(math.Log1p(math.Exp(d)))
}

// LogSumExp returns log(sum(exp(xs))). An empty slice yields LogZero.
func LogSumExp[T Float](xs []T) T {
	if len(xs) == 0 {
		return LogZero
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	if m <= LogZero || math.IsInf(float64(m), 0) {
		return m
	}
	sum := 0.0
	for _, x := range xs {
		d := float64(x - m)
		if d > -36.0 {
			sum += math.Exp(d)
		}
	}
	return m + T(math.Log(sum))
}

// LogSoftmax replaces xs with xs - LogSumExp(xs).
func LogSoftmax[T Float](xs []T) {
	lse := LogSumExp(xs)
	for i := range xs {
		xs[i] -= lse
	}
}
