//go:build !darwin || !cgo

package blas

// Sgemm performs C = alpha*op(A)*op(B) + beta*C in pure Go.
// All matrices are row-major. op(X) = X if trans=false, X^T if trans=true.
// Accumulation is done in float64.
func Sgemm(transA, transB bool, m, n, k int,
	alpha float32, a []float32, lda int,
	b []float32, ldb int,
	beta float32, c []float32, ldc int) {

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := 0.0
			for p := 0; p < k; p++ {
				var aVal, bVal float32
				if transA {
					aVal = a[p*lda+i]
				} else {
					aVal = a[i*lda+p]
				}
				if transB {
					bVal = b[j*ldb+p]
				} else {
					bVal = b[p*ldb+j]
				}
				sum += float64(aVal) * float64(bVal)
			}
			if beta == 0 {
				c[i*ldc+j] = alpha * float32(sum)
			} else {
				c[i*ldc+j] = alpha*float32(sum) + beta*c[i*ldc+j]
			}
		}
	}
}

// HasAccelerate returns false on non-darwin platforms.
func HasAccelerate() bool { return false }
