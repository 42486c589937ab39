package decoder

import (
	"github.com/pkg/errors"

	"github.com/ieee0824/spin-go/fst"
	"github.com/ieee0824/spin-go/lattice"
)

type pending struct {
	ref Ref
	t   int // frame at which the hypothesis' arc ends
}

// extractor holds the state of one backtrack.
type extractor struct {
	d       *Decoder
	lat     *lattice.Lattice
	stateOf map[Ref]fst.StateID
	visited map[Ref]bool
	queue   []pending
}

// ExtractLattice backtracks the closed utterance into a topologically sorted
// lattice. Up to nBranch candidates (the primary, then its alternates) are
// followed at every merge point. The returned cost is that of the best final
// hypothesis.
func (d *Decoder) ExtractLattice(nBranch int) (*lattice.Lattice, float32, error) {
	if len(d.gens) == 0 {
		return nil, 0, ErrNotInitialized
	}
	if !d.closed {
		return nil, 0, ErrNotClosed
	}
	final := d.gens[len(d.gens)-1]
	if len(final) == 0 {
		return nil, 0, ErrEmptyFinal
	}
	nBranch = max(nBranch, 1)

	x := &extractor{
		d:       d,
		lat:     lattice.New(),
		stateOf: make(map[Ref]fst.StateID),
		visited: make(map[Ref]bool),
	}
	x.lat.SetInputSymbols(d.net.InputSymbols())
	x.lat.SetOutputSymbols(d.net.OutputSymbols())
	start := x.lat.AddState()
	x.lat.SetStart(start)
	x.stateOf[Ref{Gen: 0, Slot: 0}] = start

	lastT := len(d.gens) - 2
	for slot := range final {
		for n := 0; n < nBranch; n++ {
			br, ok := final[slot].branch(n)
			if !ok {
				break
			}
			if err := x.seed(br, lastT); err != nil {
				return nil, 0, errors.Wrapf(err, "final hypothesis %d branch %d", slot, n)
			}
		}
	}

	for len(x.queue) > 0 {
		p := x.queue[0]
		x.queue = x.queue[1:]
		if x.visited[p.ref] {
			continue
		}
		x.visited[p.ref] = true
		tail := x.findState(p.ref)
		h := d.Hypothesis(p.ref)
		for n := 0; n < nBranch; n++ {
			br, ok := h.branch(n)
			if !ok {
				break
			}
			x.generatePath(br, p.t, tail)
		}
	}

	if err := x.lat.TopSort(); err != nil {
		return nil, 0, errors.Wrap(err, "sort lattice")
	}
	d.log.Debug("lattice", "states", x.lat.NumStates(), "arcs", x.lat.NumArcs(), "best", final[0].Cost)
	return x.lat, final[0].Cost, nil
}

// findState returns the lattice state standing for r, creating it on first use.
func (x *extractor) findState(r Ref) fst.StateID {
	if s, ok := x.stateOf[r]; ok {
		return s
	}
	s := x.lat.AddState()
	x.stateOf[r] = s
	return s
}

func (x *extractor) enqueue(r Ref, t int) {
	if t > 0 && !x.visited[r] {
		x.queue = append(x.queue, pending{ref: r, t: t})
	}
}

// seed turns a closing hypothesis into a final lattice state reached from the
// state of its predecessor.
func (x *extractor) seed(h *Hypothesis, t int) error {
	arcs := h.Trans.Arcs
	closing := h.Trans.LastArc()
	if h.Trans.Target != FinalTarget || closing.ILabel != fst.Epsilon ||
		closing.OLabel != fst.Epsilon || closing.NextState != fst.NoStateID {
		return ErrMalformedFinal
	}
	at := lattice.TimingWeight{Start: t, End: t}
	fs := x.lat.AddState()
	x.lat.SetFinal(fs, lattice.Weight{Cost: closing.Weight, Time: at})

	switch {
	case len(arcs) > 1:
		x.epsilonPath(arcs[:len(arcs)-1], x.findState(h.Prev), fs, t)
	default:
		if s, ok := x.stateOf[h.Prev]; ok {
			x.lat.AddArc(s, lattice.Arc{Weight: lattice.Weight{Time: at}, NextState: fs})
		} else {
			x.stateOf[h.Prev] = fs
		}
	}
	x.enqueue(h.Prev, t)
	return nil
}

// epsilonPath links head to tail through arcs, adding an intermediate state
// between consecutive arcs. Every arc is stamped with the zero-length interval [t,t].
func (x *extractor) epsilonPath(arcs []fst.Arc, head, tail fst.StateID, t int) {
	at := lattice.TimingWeight{Start: t, End: t}
	cur := head
	for i, a := range arcs {
		next := tail
		if i < len(arcs)-1 {
			next = x.lat.AddState()
		}
		x.lat.AddArc(cur, lattice.Arc{
			ILabel:    a.ILabel,
			OLabel:    a.OLabel,
			Weight:    lattice.Weight{Cost: a.Weight, Time: at},
			NextState: next,
		})
		cur = next
	}
}

// generatePath emits the lattice arc ending at tail (time end) for h, folding
// the self-loops that precede it, and queues its predecessor.
func (x *extractor) generatePath(h *Hypothesis, end int, tail fst.StateID) {
	cost := h.Cost
	begin := end - 1
	var loopW float32
	for h.Trans.SelfLoop {
		loopW += h.Trans.Weight
		h = x.d.Hypothesis(h.Prev)
		begin--
	}
	prevCost := x.d.Hypothesis(h.Prev).Cost
	main := h.Trans.LastArc()
	acoustic := cost - prevCost - h.Trans.Weight - loopW
	w := lattice.Weight{
		Cost:     acoustic + main.Weight + loopW,
		Acoustic: acoustic,
		Time:     lattice.TimingWeight{Start: begin, End: end},
	}

	var head fst.StateID
	if h.Trans.HasEpsilon() {
		head = x.lat.AddState()
		x.epsilonPath(h.Trans.Arcs[:len(h.Trans.Arcs)-1], x.findState(h.Prev), head, begin)
	} else {
		head = x.findState(h.Prev)
	}
	x.lat.AddArc(head, lattice.Arc{ILabel: main.ILabel, OLabel: main.OLabel, Weight: w, NextState: tail})
	x.enqueue(h.Prev, begin)
}
