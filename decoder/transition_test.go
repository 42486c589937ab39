package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ieee0824/spin-go/fst"
	"github.com/ieee0824/spin-go/scorer"
)

func TestFindTransitions(t *testing.T) {
	net := mustNet(t, `0 3 S1 <eps> 1
0 1 <eps> <eps> 0.5
1 2 S0 w 0.25
1 4 <eps> <eps> 2
4 0.5
`)
	d, err := New(net, scorer.NewTable([][]float32{{0, 0}}))
	require.NoError(t, err)

	trs := d.findTransitions(nil, 0, false)
	require.Len(t, trs, 2)

	assert.Equal(t, 1, trs[0].Target)
	assert.Len(t, trs[0].Arcs, 1)
	assert.False(t, trs[0].HasEpsilon())
	assert.InDelta(t, 1.0, trs[0].Weight, 1e-6)
	assert.Equal(t, 3, trs[0].NextState())

	assert.Equal(t, 0, trs[1].Target)
	assert.True(t, trs[1].HasEpsilon())
	assert.InDelta(t, 0.75, trs[1].Weight, 1e-6)
	assert.Equal(t, 2, trs[1].NextState())
	assert.Equal(t, 0, trs[1].From)

	w, _ := net.OutputSymbols().Lookup("w")
	assert.Equal(t, uint32(w), trs[1].UpdateSignature(0))

	finals := d.findTransitions(nil, 0, true)
	require.Len(t, finals, 1)
	f := finals[0]
	assert.Equal(t, FinalTarget, f.Target)
	require.Len(t, f.Arcs, 3)
	assert.Equal(t, fst.Arc{Weight: 0.5, NextState: fst.NoStateID}, f.LastArc())
	assert.InDelta(t, 3.0, f.Weight, 1e-6)
}

func TestFindTransitionsDoesNotShareArcs(t *testing.T) {
	net := mustNet(t, "0 1 <eps> <eps>\n1 2 S0\n1 3 S0\n")
	d, err := New(net, scorer.NewTable([][]float32{{0}}))
	require.NoError(t, err)

	trs := d.findTransitions(nil, 0, false)
	require.Len(t, trs, 2)
	trs[0].Arcs[0].Weight = 42
	assert.Zero(t, trs[1].Arcs[0].Weight)
}

func TestUpdateSignature(t *testing.T) {
	tr := Transition{Arcs: []fst.Arc{{OLabel: 3}, {OLabel: fst.Epsilon}, {OLabel: 5}}}
	want := (uint32(3)<<11 | uint32(3)>>21) ^ 5
	assert.Equal(t, want, tr.UpdateSignature(0))

	empty := Transition{Arcs: []fst.Arc{{}}}
	assert.Equal(t, uint32(7), empty.UpdateSignature(7))
}
