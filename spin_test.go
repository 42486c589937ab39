package spin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/spin-go/corpus"
	"github.com/ieee0824/spin-go/decoder"
	"github.com/ieee0824/spin-go/fst"
	"github.com/ieee0824/spin-go/scorer"
)

const graph = `#FSTHeader standard
0 1 S0 a
1 2 S1 b
2 3 <eps> <eps>
3
`

func tinyGMM(t testing.TB) *scorer.GMMModel {
	t.Helper()
	state := func(mean float32) *scorer.StateGMM {
		return &scorer.StateGMM{Components: []scorer.Gaussian{
			{Mean: []float32{mean}, Variance: []float32{1}},
		}}
	}
	m, err := scorer.NewGMMModel(1, []*scorer.StateGMM{state(0), state(5)})
	require.NoError(t, err)
	return m
}

func writeModels(t testing.TB) (graphPath, gmmPath string) {
	t.Helper()
	dir := t.TempDir()
	graphPath = filepath.Join(dir, "graph.txt")
	require.NoError(t, os.WriteFile(graphPath, []byte(graph), 0o644))

	gmmPath = filepath.Join(dir, "am.gmm")
	f, err := os.Create(gmmPath)
	require.NoError(t, err)
	require.NoError(t, tinyGMM(t).Save(f))
	require.NoError(t, f.Close())
	return graphPath, gmmPath
}

func outputWords(t testing.TB, out *decoder.Outcome) []string {
	t.Helper()
	path, err := out.Lattice.BestPath()
	require.NoError(t, err)
	var words []string
	for _, a := range path.Arcs {
		if a.OLabel == fst.Epsilon {
			continue
		}
		w, ok := out.Lattice.OutputSymbols().Find(a.OLabel)
		require.True(t, ok)
		words = append(words, w)
	}
	return words
}

func TestRecognizeGMM(t *testing.T) {
	graphPath, gmmPath := writeModels(t)
	rec, err := NewRecognizer(graphPath, ScorerGMM, gmmPath)
	require.NoError(t, err)

	out, err := rec.Recognize([][]float32{{0}, {0.2}, {5}, {4.8}})
	require.NoError(t, err)
	require.Equal(t, decoder.StatusSuccess, out.Status)
	assert.Equal(t, []string{"a", "b"}, outputWords(t, out))

	path, err := out.Lattice.BestPath()
	require.NoError(t, err)
	assert.InDelta(t, out.BestCost, path.Weight.Cost, 1e-3)
	assert.Equal(t, 4, path.Weight.Time.End)
}

func TestRecognizeAllKeepsOrder(t *testing.T) {
	net, err := fst.ReadText(strings.NewReader(graph))
	require.NoError(t, err)
	m := tinyGMM(t)
	rec := NewRecognizerFromModels(net, func() scorer.FrameScorer { return scorer.NewGMMScorer(m) },
		WithWorkers(3))

	utts := []*corpus.Utterance{
		{Key: "u0", Features: [][]float32{{0}, {5}}},
		{Key: "u1", Features: [][]float32{{0}, {0}, {0}, {5}}},
		{Key: "u2"}, // no frames: the final state is two arcs away
		{Key: "u3", Features: [][]float32{{0}, {5}, {5}, {5}, {5}}},
		{Key: "u4", Features: [][]float32{{0.1}, {5.1}}},
	}
	var keys []string
	var statuses []decoder.Status
	err = rec.RecognizeAll(context.Background(), utts, func(r *Result) error {
		keys = append(keys, r.Utterance.Key)
		statuses = append(statuses, r.Outcome.Status)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"u0", "u1", "u2", "u3", "u4"}, keys)
	assert.Equal(t, []decoder.Status{
		decoder.StatusSuccess, decoder.StatusSuccess, decoder.StatusExhausted,
		decoder.StatusSuccess, decoder.StatusSuccess,
	}, statuses)
}

func TestRecognizeAllStops(t *testing.T) {
	net, err := fst.ReadText(strings.NewReader(graph))
	require.NoError(t, err)
	m := tinyGMM(t)
	utts := []*corpus.Utterance{
		{Key: "u0", Features: [][]float32{{0}, {5}}},
		{Key: "u1", Features: [][]float32{{0}, {5}}},
	}

	rec := NewRecognizerFromModels(net, func() scorer.FrameScorer { return scorer.NewGMMScorer(m) }, WithWorkers(2))
	stop := errors.New("stop")
	n := 0
	err = rec.RecognizeAll(context.Background(), utts, func(*Result) error {
		n++
		return stop
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, n)

	// a one-state scorer cannot serve S1
	small := NewRecognizerFromModels(net, func() scorer.FrameScorer {
		return scorer.NewTable([][]float32{{0}})
	})
	err = small.RecognizeAll(context.Background(), utts, func(*Result) error { return nil })
	assert.ErrorIs(t, err, decoder.ErrStateRange)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = rec.RecognizeAll(ctx, utts, func(*Result) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecognizeAllRejectsFeatureDimension(t *testing.T) {
	net, err := fst.ReadText(strings.NewReader(graph))
	require.NoError(t, err)
	nn := &scorer.NNetModel{Layers: []scorer.Layer{{
		W: []float32{1, 0, 0, 1}, B: []float32{0, 0}, In: 2, Out: 2,
	}}}
	require.NoError(t, nn.Validate())
	rec := NewRecognizerFromModels(net, func() scorer.FrameScorer { return scorer.NewNNetScorer(nn) },
		WithWorkers(2))

	utts := []*corpus.Utterance{
		{Key: "u0", Features: [][]float32{{1, 0}, {0, 1}}},
		{Key: "u1", Features: [][]float32{{1, 0, 0}, {0, 1, 0}}},
		{Key: "u2", Features: [][]float32{{1, 0}, {0, 1}}},
	}
	var keys []string
	err = rec.RecognizeAll(context.Background(), utts, func(r *Result) error {
		keys = append(keys, r.Utterance.Key)
		return nil
	})
	require.ErrorIs(t, err, scorer.ErrDimension)
	assert.Contains(t, err.Error(), "utterance u1")
	assert.Equal(t, []string{"u0"}, keys)

	gmm := NewRecognizerFromModels(net, func() scorer.FrameScorer { return scorer.NewGMMScorer(tinyGMM(t)) })
	_, err = gmm.Recognize([][]float32{{0}, {5, 5}})
	assert.ErrorIs(t, err, scorer.ErrDimension)
}

func TestLoadScorer(t *testing.T) {
	dir := t.TempDir()
	nnPath := filepath.Join(dir, "am.nnet")
	f, err := os.Create(nnPath)
	require.NoError(t, err)
	nn := &scorer.NNetModel{Layers: []scorer.Layer{{
		W: []float32{1, -1, 0.5}, B: []float32{0, 0, 0}, In: 1, Out: 3,
	}}}
	require.NoError(t, nn.Save(f))
	require.NoError(t, f.Close())

	newScorer, err := LoadScorer(ScorerNNet, nnPath)
	require.NoError(t, err)
	assert.Equal(t, 3, newScorer().StateCount())

	_, err = LoadScorer("hmm", nnPath)
	assert.Error(t, err)
	_, err = LoadScorer(ScorerGMM, nnPath)
	assert.Error(t, err)
	_, err = LoadScorer(ScorerGMM, filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
