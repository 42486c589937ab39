//go:build darwin && cgo

package blas

/*
#cgo CFLAGS: -DACCELERATE_NEW_LAPACK
#cgo LDFLAGS: -framework Accelerate
#include <Accelerate/Accelerate.h>
*/
import "C"
import "unsafe"

// Sgemm performs C = alpha*op(A)*op(B) + beta*C using Apple Accelerate.
// All matrices are row-major. op(X) = X if trans=false, X^T if trans=true.
func Sgemm(transA, transB bool, m, n, k int,
	alpha float32, a []float32, lda int,
	b []float32, ldb int,
	beta float32, c []float32, ldc int) {

	if m == 0 || n == 0 || k == 0 {
		return
	}
	var ta, tb C.enum_CBLAS_TRANSPOSE = C.CblasNoTrans, C.CblasNoTrans
	if transA {
		ta = C.CblasTrans
	}
	if transB {
		tb = C.CblasTrans
	}

	C.cblas_sgemm(C.CblasRowMajor, ta, tb,
		C.int(m), C.int(n), C.int(k),
		C.float(alpha),
		(*C.float)(unsafe.Pointer(&a[0])), C.int(lda),
		(*C.float)(unsafe.Pointer(&b[0])), C.int(ldb),
		C.float(beta),
		(*C.float)(unsafe.Pointer(&c[0])), C.int(ldc))
}

// HasAccelerate returns true when Apple Accelerate framework is available.
func HasAccelerate() bool { return true }
