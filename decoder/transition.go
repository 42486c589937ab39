package decoder

import (
	"math/bits"

	"github.com/ieee0824/spin-go/fst"
)

// FinalTarget is the Target of a transition that closes the utterance.
const FinalTarget = -2

// Transition is a run of arcs taken from one network state: zero or more
// structural arcs followed by one acoustic arc, or by a closing arc carrying
// the final weight.
type Transition struct {
	From     fst.StateID
	Arcs     []fst.Arc
	Weight   float32 // sum of arc (and final) weights
	Target   int     // acoustic state, NoState or FinalTarget
	SelfLoop bool
}

// LastArc returns the arc that determines the transition's labels.
func (tr *Transition) LastArc() fst.Arc {
	return tr.Arcs[len(tr.Arcs)-1]
}

// NextState is the network state reached by the transition.
func (tr *Transition) NextState() fst.StateID {
	if len(tr.Arcs) == 0 {
		return tr.From
	}
	return tr.LastArc().NextState
}

// HasEpsilon reports whether structural arcs precede the last arc.
func (tr *Transition) HasEpsilon() bool { return len(tr.Arcs) > 1 }

// extend returns a copy of tr with arc appended. The arc slice is never shared.
func (tr *Transition) extend(arc fst.Arc) Transition {
	arcs := make([]fst.Arc, len(tr.Arcs)+1)
	copy(arcs, tr.Arcs)
	arcs[len(tr.Arcs)] = arc
	return Transition{
		From:   tr.From,
		Arcs:   arcs,
		Weight: tr.Weight + arc.Weight,
		Target: NoState,
	}
}

// signatureShift is the rotation applied before folding in each output label.
const signatureShift = 11

// UpdateSignature folds the non-epsilon output labels of tr into sig.
func (tr *Transition) UpdateSignature(sig uint32) uint32 {
	for _, a := range tr.Arcs {
		if a.OLabel == fst.Epsilon {
			continue
		}
		sig = bits.RotateLeft32(sig, signatureShift) ^ uint32(a.OLabel)
	}
	return sig
}

// findTransitions appends to dst every transition reachable from src through
// structural arcs. With wantFinal, only transitions ending in a final state are
// produced, closed by a zero-label arc carrying the final weight; acoustic arcs
// are dead ends. The network must be free of structural cycles.
func (d *Decoder) findTransitions(dst []Transition, src fst.StateID, wantFinal bool) []Transition {
	queue := append(d.queue[:0], Transition{From: src, Target: NoState})
	for head := 0; head < len(queue); head++ {
		tr := queue[head]
		for _, arc := range d.net.Arcs(tr.NextState()) {
			ntr := tr.extend(arc)
			hmm := d.states.State(arc.ILabel)
			if wantFinal {
				if fw := d.net.Final(arc.NextState); fst.IsFinal(fw) {
					closed := ntr.extend(fst.Arc{Weight: fw, NextState: fst.NoStateID})
					closed.Target = FinalTarget
					dst = append(dst, closed)
				} else if hmm == NoState {
					queue = append(queue, ntr)
				}
				continue
			}
			if hmm == NoState {
				queue = append(queue, ntr)
			} else {
				ntr.Target = hmm
				dst = append(dst, ntr)
			}
		}
	}
	d.queue = queue[:0]
	return dst
}
