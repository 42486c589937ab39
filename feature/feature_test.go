package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(T, dim int) [][]float32 {
	features := make([][]float32, T)
	for t := range features {
		features[t] = make([]float32, dim)
		for d := range features[t] {
			features[t][d] = float32(t * (d + 1))
		}
	}
	return features
}

func TestApplyCMN(t *testing.T) {
	features := [][]float32{{1, 2}, {3, 6}}
	ApplyCMN(features)
	assert.Equal(t, [][]float32{{-1, -2}, {1, 2}}, features)

	ApplyCMN(nil)
}

func TestApplyCVN(t *testing.T) {
	features := [][]float32{{-1, -2, 5}, {1, 2, 5}}
	ApplyCVN(features)
	// the constant third dimension is left as is
	assert.InDeltaSlice(t, []float32{-1, -1, 5}, features[0], 1e-6)
	assert.InDeltaSlice(t, []float32{1, 1, 5}, features[1], 1e-6)
}

func TestDelta(t *testing.T) {
	// Linear ramp: features[t] = [t]
	d := Delta(ramp(10, 1), 2)
	require.Len(t, d, 10)
	// constant slope away from the edges
	for i := 2; i < 8; i++ {
		assert.InDelta(t, 1.0, d[i][0], 1e-6, "delta[%d]", i)
	}
	// edge replication flattens the slope
	assert.InDelta(t, 0.5, d[0][0], 1e-6)
	assert.InDelta(t, 0.8, d[1][0], 1e-6)

	assert.Nil(t, Delta(nil, 2))
}

func TestAppendDeltas(t *testing.T) {
	features := ramp(10, 2)
	out := AppendDeltas(features, 2)
	require.Len(t, out, 10)
	for _, row := range out {
		require.Len(t, row, 6)
	}
	assert.Equal(t, features[4], out[4][:2])
	assert.InDelta(t, 1.0, out[4][2], 1e-6)
	assert.InDelta(t, 2.0, out[4][3], 1e-6)
	assert.InDelta(t, 0.0, out[4][4], 1e-6)
	assert.InDelta(t, 0.0, out[5][5], 1e-6)

	assert.Empty(t, AppendDeltas(nil, 2))
}

func TestConfigApply(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	in := ramp(6, 3)
	assert.Equal(t, in, Config{}.Apply(in))

	for name, tc := range map[string]struct {
		cfg Config
		dim int
	}{
		"cmn":         {Config{UseCMN: true}, 3},
		"delta":       {Config{UseDelta: true}, 6},
		"delta-delta": {Config{UseCMN: true, UseDelta: true, UseDeltaDelta: true}, 9},
		"cmvn":        {Config{UseCMN: true, UseCVN: true, UseDelta: true, DeltaWindow: 1}, 6},
	} {
		assert.True(t, tc.cfg.Enabled(), name)
		assert.Equal(t, tc.dim, tc.cfg.OutputDim(3), name)
		out := tc.cfg.Apply(ramp(6, 3))
		require.Len(t, out, 6, name)
		for _, row := range out {
			assert.Len(t, row, tc.dim, name)
		}
	}

	// normalized columns have zero mean
	out := Config{UseCMN: true, UseDelta: true}.Apply(ramp(5, 1))
	var sum float32
	for _, row := range out {
		sum += row[0]
	}
	assert.InDelta(t, 0, sum, 1e-5)

	assert.Empty(t, Config{UseDelta: true}.Apply(nil))
}
