package corpus

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ieee0824/spin-go/fst"
	"github.com/ieee0824/spin-go/lattice"
)

const input = `key: utt1
features:
  - [0.5, -1]
  - [1.5, 2]
+speaker: spk01
---
- key: utt2
  features: [[1, 2]]
- key: utt3
  features: []
  +weight: 3
---
`

func TestReader(t *testing.T) {
	rd := NewReader(strings.NewReader(input))

	u, err := rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "utt1", u.Key)
	assert.Equal(t, [][]float32{{0.5, -1}, {1.5, 2}}, u.Features)
	assert.Equal(t, map[string]any{"+speaker": "spk01"}, u.Tags)

	u, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "utt2", u.Key)
	assert.Equal(t, [][]float32{{1, 2}}, u.Features)
	assert.Nil(t, u.Tags)

	u, err = rd.Next()
	require.NoError(t, err)
	assert.Equal(t, "utt3", u.Key)
	assert.Empty(t, u.Features)
	assert.Equal(t, map[string]any{"+weight": 3}, u.Tags)

	_, err = rd.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown field": "key: a\nfeatures: []\nspeaker: x\n",
		"missing key":   "features: [[1]]\n",
		"ragged frames": "key: a\nfeatures: [[1, 2], [3]]\n",
		"bad features":  "key: a\nfeatures: oops\n",
		"scalar":        "hello\n",
		"list item":     "- 1\n",
	} {
		_, err := ReadAll(strings.NewReader(doc))
		assert.Error(t, err, name)
	}
}

func TestReadAll(t *testing.T) {
	utts, err := ReadAll(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, utts, 3)

	utts, err = ReadAll(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, utts)
}

func testLattice() *lattice.Lattice {
	isyms := fst.NewSymbolTable()
	s0 := isyms.Add("S0")
	osyms := fst.NewSymbolTable()
	w := osyms.Add("hello")

	l := lattice.New()
	a := l.AddState()
	b := l.AddState()
	l.SetStart(a)
	l.AddArc(a, lattice.Arc{
		ILabel:    s0,
		OLabel:    w,
		Weight:    lattice.Weight{Cost: 1.5, Acoustic: 1, Time: lattice.TimingWeight{Start: 0, End: 3}},
		NextState: b,
	})
	l.SetFinal(b, lattice.Weight{Cost: 0.5, Time: lattice.TimingWeight{Start: 3, End: 3}})
	l.SetInputSymbols(isyms)
	l.SetOutputSymbols(osyms)
	return l
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "decoded")
	require.NoError(t, w.Write(&Result{
		Key:      "utt1",
		Tags:     map[string]any{"+speaker": "spk01", "+a": 1},
		Frames:   3,
		Elapsed:  42 * time.Millisecond,
		BestCost: 2,
		Lattice:  testLattice(),
	}))
	require.NoError(t, w.Write(&Result{Key: "utt2", Frames: 1, Lattice: testLattice()}))
	require.NoError(t, w.Close())

	dec := yaml.NewDecoder(&buf)
	var first yaml.Node
	require.NoError(t, dec.Decode(&first))
	m := first.Content[0]
	var keys []string
	for i := 0; i < len(m.Content); i += 2 {
		keys = append(keys, m.Content[i].Value)
	}
	assert.Equal(t, []string{"key", "+a", "+speaker", "+num_frames", "+decode_msec", "best_cost", "decoded"}, keys)

	var doc struct {
		Key       string  `yaml:"key"`
		Speaker   string  `yaml:"+speaker"`
		NumFrames int     `yaml:"+num_frames"`
		Msec      int64   `yaml:"+decode_msec"`
		BestCost  float32 `yaml:"best_cost"`
		Decoded   string  `yaml:"decoded"`
	}
	require.NoError(t, first.Decode(&doc))
	assert.Equal(t, "utt1", doc.Key)
	assert.Equal(t, "spk01", doc.Speaker)
	assert.Equal(t, 3, doc.NumFrames)
	assert.Equal(t, int64(42), doc.Msec)
	assert.Equal(t, float32(2), doc.BestCost)

	lat, err := lattice.ReadText(strings.NewReader(doc.Decoded))
	require.NoError(t, err)
	assert.Equal(t, 2, lat.NumStates())
	path, err := lat.BestPath()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, path.Weight.Cost, 1e-6)
	sym, _ := lat.OutputSymbols().Find(path.Arcs[0].OLabel)
	assert.Equal(t, "hello", sym)

	var second map[string]any
	require.NoError(t, dec.Decode(&second))
	assert.Equal(t, "utt2", second["key"])
}

func TestWriterRejectsMissingLattice(t *testing.T) {
	w := NewWriter(io.Discard, "decoded")
	assert.Error(t, w.Write(&Result{Key: "x", Lattice: lattice.New()}))
}
