package decoder

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ieee0824/spin-go/fst"
	"github.com/ieee0824/spin-go/scorer"
)

// buildWordLoop returns a loop over vocab words of three acoustic states each,
// drawn from numStates, joined through a structural loop state.
func buildWordLoop(rng *rand.Rand, vocab, numStates int) *fst.VectorFst {
	isyms := fst.NewSymbolTable()
	osyms := fst.NewSymbolTable()
	labels := make([]fst.Label, numStates)
	for s := range labels {
		labels[s] = isyms.Add("S" + strconv.Itoa(s))
	}
	loopSym := isyms.Add("#0")

	net := fst.NewVectorFst()
	start := net.AddState()
	loop := net.AddState()
	net.SetStart(start)
	net.AddArc(start, fst.Arc{ILabel: loopSym, NextState: loop})
	net.SetFinal(loop, 0)
	for w := 0; w < vocab; w++ {
		word := osyms.Add("w" + strconv.Itoa(w))
		prev := loop
		for i := 0; i < 3; i++ {
			next := net.AddState()
			arc := fst.Arc{ILabel: labels[rng.Intn(numStates)], Weight: rng.Float32(), NextState: next}
			if i == 0 {
				arc.OLabel = word
			}
			net.AddArc(prev, arc)
			prev = next
		}
		net.AddArc(prev, fst.Arc{ILabel: loopSym, Weight: 0.5, NextState: loop})
	}
	net.SetInputSymbols(isyms)
	net.SetOutputSymbols(osyms)
	return net
}

func BenchmarkDecode_100words_200frames(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	const numStates, numFrames = 60, 200
	net := buildWordLoop(rng, 100, numStates)
	scores := make([][]float32, numFrames)
	for t := range scores {
		scores[t] = make([]float32, numStates)
		for s := range scores[t] {
			scores[t][s] = -float32(rng.ExpFloat64() * 5)
		}
	}
	cfg := Config{MaxActive: 2000, BeamWidth: 15, AcousticScale: 1, MaxBranch: 2}
	d, err := New(net, scorer.NewTable(scores), WithConfig(cfg))
	require.NoError(b, err)
	feats := frames(numFrames)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, err := d.Decode(feats)
		if err != nil {
			b.Fatal(err)
		}
		if out.Status != StatusSuccess {
			b.Fatalf("status %v", out.Status)
		}
	}
}
