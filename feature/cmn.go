// Package feature post-processes feature matrices before they are scored:
// utterance-level mean and variance normalization and dynamic (delta)
// coefficients.
package feature

import "math"

// ApplyCMN subtracts the utterance-level mean from each feature dimension (Cepstral Mean Normalization).
func ApplyCMN(features [][]float32) {
	T := len(features)
	if T == 0 {
		return
	}
	dim := len(features[0])
	mean := make([]float64, dim)
	for t := 0; t < T; t++ {
		for d := 0; d < dim; d++ {
			mean[d] += float64(features[t][d])
		}
	}
	invT := 1.0 / float64(T)
	for t := 0; t < T; t++ {
		for d := 0; d < dim; d++ {
			features[t][d] -= float32(mean[d] * invT)
		}
	}
}

// ApplyCVN scales each dimension to unit variance around its mean. It is
// meant to run after ApplyCMN. Constant dimensions are left untouched.
func ApplyCVN(features [][]float32) {
	T := len(features)
	if T == 0 {
		return
	}
	dim := len(features[0])
	for d := 0; d < dim; d++ {
		var sum, sq float64
		for t := 0; t < T; t++ {
			v := float64(features[t][d])
			sum += v
			sq += v * v
		}
		mean := sum / float64(T)
		variance := sq/float64(T) - mean*mean
		if variance <= 1e-10 {
			continue
		}
		scale := 1 / math.Sqrt(variance)
		for t := 0; t < T; t++ {
			features[t][d] = float32((float64(features[t][d]) - mean) * scale)
		}
	}
}
