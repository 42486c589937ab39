package blas

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSgemm_Identity(t *testing.T) {
	// A(2x3) * I(3x3) = A(2x3)
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
	c := make([]float32, 6)

	Sgemm(false, false, 2, 3, 3, 1.0, a, 3, b, 3, 0.0, c, 3)

	assert.InDeltaSlice(t, a, c, 1e-6)
}

func TestSgemm_TransB(t *testing.T) {
	// B is (2x3) row-major, B^T = [[7,8],[9,10],[11,12]]
	a := []float32{1, 2, 3, 4, 5, 6}
	b := []float32{7, 9, 11, 8, 10, 12}
	c := make([]float32, 4)

	Sgemm(false, true, 2, 2, 3, 1.0, a, 3, b, 3, 0.0, c, 2)

	assert.InDeltaSlice(t, []float32{58, 64, 139, 154}, c, 1e-4)
}

func TestSgemm_AlphaBeta(t *testing.T) {
	// C = 2*A*B + 3*C
	a := []float32{1, 2, 3, 4}
	b := []float32{5, 6, 7, 8}
	c := []float32{1, 1, 1, 1}

	Sgemm(false, false, 2, 2, 2, 2.0, a, 2, b, 2, 3.0, c, 2)

	assert.InDeltaSlice(t, []float32{41, 47, 89, 103}, c, 1e-4)
}

func TestSgemm_ScorerSized(t *testing.T) {
	// 16 frames against 4 mixture components of dimension 39
	rng := rand.New(rand.NewSource(42))
	T, D, K := 16, 39, 4
	a := make([]float32, T*D)
	b := make([]float32, K*D)
	for i := range a {
		a[i] = rng.Float32()
	}
	for i := range b {
		b[i] = rng.Float32()
	}
	c := make([]float32, T*K)
	Sgemm(false, true, T, K, D, 1.0, a, D, b, D, 0.0, c, K)

	for i := 0; i < T; i++ {
		for j := 0; j < K; j++ {
			sum := float32(0)
			for p := 0; p < D; p++ {
				sum += a[i*D+p] * b[j*D+p]
			}
			assert.InDelta(t, sum, c[i*K+j], 1e-3, "c[%d,%d]", i, j)
		}
	}
}

func BenchmarkSgemm_16x39x4(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	T, D, K := 16, 39, 4
	a := make([]float32, T*D)
	bm := make([]float32, K*D)
	for i := range a {
		a[i] = rng.Float32()
	}
	for i := range bm {
		bm[i] = rng.Float32()
	}
	c := make([]float32, T*K)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Sgemm(false, true, T, K, D, 1.0, a, D, bm, D, 0.0, c, K)
	}
}
