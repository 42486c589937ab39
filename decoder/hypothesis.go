package decoder

// Ref addresses a hypothesis in the generation arena: Slot indexes the
// primaries of generation Gen. Refs stay valid until the next PushInit.
type Ref struct {
	Gen  int
	Slot int
}

// noRef is the predecessor of the seed hypothesis.
var noRef = Ref{Gen: -1, Slot: -1}

// Hypothesis is one partial path through the network.
type Hypothesis struct {
	Prev  Ref // primary in the previous generation
	Trans Transition
	// Cost is the accumulated graph cost minus the scaled accumulated acoustic score.
	Cost float32
	// Signature is a rolling hash of the output labels crossed so far.
	Signature uint32
	// Alternates are lower-ranked hypotheses reaching the same network state
	// with a different output history, in ascending cost order.
	Alternates []Hypothesis
}

// NextState is the network state the hypothesis rests in.
func (h *Hypothesis) NextState() int { return h.Trans.NextState() }

// IsSeed reports whether h is the initial hypothesis of generation 0.
func (h *Hypothesis) IsSeed() bool { return h.Prev == noRef }

// hasSignature reports whether h or one of its alternates carries sig.
func (h *Hypothesis) hasSignature(sig uint32) bool {
	if h.Signature == sig {
		return true
	}
	for i := range h.Alternates {
		if h.Alternates[i].Signature == sig {
			return true
		}
	}
	return false
}

// branch returns the n-th candidate of a merge point: the primary for n == 0,
// then the alternates in order. ok is false past the last alternate.
func (h *Hypothesis) branch(n int) (b *Hypothesis, ok bool) {
	if n == 0 {
		return h, true
	}
	if n-1 >= len(h.Alternates) {
		return nil, false
	}
	return &h.Alternates[n-1], true
}

// Generation is the ordered set of primaries kept for one time step.
type Generation []Hypothesis
