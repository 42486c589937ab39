package decoder

import (
	"math"
	"slices"
	"sort"
)

// FrameStats records how many hypotheses survived each stage of one expansion.
type FrameStats struct {
	Frame      int
	Final      bool
	Candidates int // after early pruning
	InBeam     int // after the exact beam prune
	Active     int // primaries after folding and the max-active cap
}

// advance expands the newest generation by one step and appends the result.
// When final is set the network's final weights close the utterance instead
// of frame t being scored.
func (d *Decoder) advance(t int, final bool) error {
	prev := len(d.gens) - 1
	last := d.gens[prev]
	beam := d.cfg.BeamWidth
	scale := d.cfg.AcousticScale

	cands := d.candidates[:0]
	best := float32(math.Inf(1))
	offer := func(h Hypothesis) {
		if h.Cost < best {
			best = h.Cost
		}
		if h.Cost > best+beam {
			return
		}
		cands = append(cands, h)
	}

	for slot := range last {
		h := &last[slot]
		from := Ref{Gen: prev, Slot: slot}

		if !final && t != 0 && h.Trans.Target >= 0 {
			n := len(h.Trans.Arcs)
			loop := Transition{
				From:     h.Trans.From,
				Arcs:     h.Trans.Arcs[n-1 : n : n],
				Target:   h.Trans.Target,
				SelfLoop: true,
			}
			offer(Hypothesis{
				Prev:      from,
				Trans:     loop,
				Cost:      h.Cost - scale*d.scorer.Score(t, loop.Target),
				Signature: h.Signature,
			})
		}

		d.trans = d.findTransitions(d.trans[:0], h.NextState(), final)
		for i := range d.trans {
			tr := d.trans[i]
			cost := h.Cost + tr.Weight
			if !final {
				cost -= scale * d.scorer.Score(t, tr.Target)
			}
			offer(Hypothesis{
				Prev:      from,
				Trans:     tr,
				Cost:      cost,
				Signature: tr.UpdateSignature(h.Signature),
			})
		}
	}
	d.candidates = cands

	st := FrameStats{Frame: t, Final: final, Candidates: len(cands)}
	if len(cands) == 0 {
		d.stats = append(d.stats, st)
		return ErrNoHypothesis
	}
	cands = pruneByBeam(cands, beam)
	st.InBeam = len(cands)
	next := d.fold(cands)
	next = pruneByMaxActive(next, d.cfg.MaxActive)
	st.Active = len(next)
	d.stats = append(d.stats, st)
	d.log.Debug("expand", "frame", t, "final", final,
		"candidates", st.Candidates, "in_beam", st.InBeam, "active", st.Active,
		"best", cands[0].Cost)

	d.gens = append(d.gens, next)
	return nil
}

// pruneByBeam sorts cands by ascending cost and cuts everything costlier than
// best+beam. Equal costs keep their production order.
func pruneByBeam(cands []Hypothesis, beam float32) []Hypothesis {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Cost < cands[j].Cost
	})
	limit := cands[0].Cost + beam
	end := sort.Search(len(cands), func(i int) bool {
		return cands[i].Cost > limit
	})
	return cands[:end]
}

// fold merges the sorted candidates into one primary per destination state.
// A later candidate for a taken destination becomes an alternate of its
// primary unless its signature is already present or the primary is full.
func (d *Decoder) fold(cands []Hypothesis) Generation {
	clear(d.primaryIdx)
	maxAlt := d.cfg.MaxBranch - 1
	next := make(Generation, 0, len(cands))
	for _, c := range cands {
		dst := c.NextState()
		idx, seen := d.primaryIdx[dst]
		if !seen {
			d.primaryIdx[dst] = len(next)
			next = append(next, c)
			continue
		}
		p := &next[idx]
		if len(p.Alternates) >= maxAlt || p.hasSignature(c.Signature) {
			continue
		}
		p.Alternates = append(p.Alternates, c)
	}
	return next
}

// pruneByMaxActive keeps the n cheapest primaries.
func pruneByMaxActive(g Generation, n int) Generation {
	if len(g) <= n {
		return g
	}
	return slices.Clip(g[:n])
}
