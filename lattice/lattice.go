// Package lattice implements the time-aligned output automaton of the decoder
// and its composite weight algebra.
package lattice

import (
	"github.com/pkg/errors"

	"github.com/ieee0824/spin-go/fst"
)

// ErrCyclic is returned by TopSort and BestPath when the lattice has a cycle.
var ErrCyclic = errors.New("lattice: automaton is cyclic")

// ErrNoStart is returned when the lattice has no start state.
var ErrNoStart = errors.New("lattice: start state is not set")

// Arc is a lattice transition.
type Arc struct {
	ILabel    fst.Label
	OLabel    fst.Label
	Weight    Weight
	NextState fst.StateID
}

type state struct {
	arcs    []Arc
	final   Weight
	isFinal bool
}

// Lattice is a mutable weighted automaton over Weight.
type Lattice struct {
	states []state
	start  fst.StateID
	isyms  *fst.SymbolTable
	osyms  *fst.SymbolTable
}

// New returns an empty lattice.
func New() *Lattice {
	return &Lattice{start: fst.NoStateID}
}

func (l *Lattice) AddState() fst.StateID {
	l.states = append(l.states, state{final: Zero})
	return len(l.states) - 1
}

func (l *Lattice) AddArc(src fst.StateID, arc Arc) {
	l.states[src].arcs = append(l.states[src].arcs, arc)
}

func (l *Lattice) SetStart(s fst.StateID) { l.start = s }

func (l *Lattice) SetFinal(s fst.StateID, w Weight) {
	l.states[s].final = w
	l.states[s].isFinal = true
}

func (l *Lattice) SetInputSymbols(t *fst.SymbolTable)  { l.isyms = t }
func (l *Lattice) SetOutputSymbols(t *fst.SymbolTable) { l.osyms = t }
func (l *Lattice) InputSymbols() *fst.SymbolTable      { return l.isyms }
func (l *Lattice) OutputSymbols() *fst.SymbolTable     { return l.osyms }
func (l *Lattice) Start() fst.StateID                  { return l.start }
func (l *Lattice) NumStates() int                      { return len(l.states) }

// Arcs returns the outgoing arcs of s. Callers must not modify the slice.
func (l *Lattice) Arcs(s fst.StateID) []Arc { return l.states[s].arcs }

// Final returns the final weight of s and whether s is final.
func (l *Lattice) Final(s fst.StateID) (Weight, bool) {
	return l.states[s].final, l.states[s].isFinal
}

// NumArcs returns the total number of arcs.
func (l *Lattice) NumArcs() int {
	n := 0
	for i := range l.states {
		n += len(l.states[i].arcs)
	}
	return n
}

// FinalStates returns the ids of all final states in ascending order.
func (l *Lattice) FinalStates() []fst.StateID {
	var fs []fst.StateID
	for s := range l.states {
		if l.states[s].isFinal {
			fs = append(fs, s)
		}
	}
	return fs
}

const (
	white = iota
	gray
	black
)

// topoOrder returns the states in topological order: a DFS from the start
// state first, then from every state left unvisited, in id order.
func (l *Lattice) topoOrder() ([]fst.StateID, error) {
	color := make([]uint8, len(l.states))
	post := make([]fst.StateID, 0, len(l.states))

	type frame struct {
		s    fst.StateID
		next int
	}
	var stack []frame
	visit := func(root fst.StateID) error {
		color[root] = gray
		stack = append(stack[:0], frame{s: root})
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			arcs := l.states[top.s].arcs
			if top.next == len(arcs) {
				color[top.s] = black
				post = append(post, top.s)
				stack = stack[:len(stack)-1]
				continue
			}
			n := arcs[top.next].NextState
			top.next++
			switch color[n] {
			case gray:
				return ErrCyclic
			case white:
				color[n] = gray
				stack = append(stack, frame{s: n})
			}
		}
		return nil
	}

	if l.start != fst.NoStateID {
		if err := visit(l.start); err != nil {
			return nil, err
		}
	}
	for s := range l.states {
		if color[s] == white {
			if err := visit(s); err != nil {
				return nil, err
			}
		}
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post, nil
}

// TopSort renumbers the states so that every arc goes from a lower to a higher id.
// The start state becomes state 0.
func (l *Lattice) TopSort() error {
	order, err := l.topoOrder()
	if err != nil {
		return err
	}
	newID := make([]fst.StateID, len(l.states))
	for i, s := range order {
		newID[s] = i
	}
	states := make([]state, len(l.states))
	for old, st := range l.states {
		for i := range st.arcs {
			st.arcs[i].NextState = newID[st.arcs[i].NextState]
		}
		states[newID[old]] = st
	}
	l.states = states
	if l.start != fst.NoStateID {
		l.start = newID[l.start]
	}
	return nil
}

// IsTopSorted reports whether every arc points to a higher state id.
func (l *Lattice) IsTopSorted() bool {
	for s := range l.states {
		for _, a := range l.states[s].arcs {
			if a.NextState <= s {
				return false
			}
		}
	}
	return true
}

// Path is a sequence of arcs from the start state to a final state.
type Path struct {
	Arcs   []Arc
	Final  fst.StateID
	Weight Weight // Times of all arc weights and the final weight
}

// BestPath returns the lowest-cost complete path.
func (l *Lattice) BestPath() (*Path, error) {
	if l.start == fst.NoStateID {
		return nil, ErrNoStart
	}
	order, err := l.topoOrder()
	if err != nil {
		return nil, err
	}
	dist := make([]Weight, len(l.states))
	back := make([]int, len(l.states)) // arc index within from[s], -1 for none
	from := make([]fst.StateID, len(l.states))
	for i := range dist {
		dist[i] = Zero
		back[i] = -1
	}
	dist[l.start] = One
	for _, s := range order {
		if dist[s] == Zero {
			continue
		}
		for i, a := range l.states[s].arcs {
			cand := dist[s].Times(a.Weight)
			if cand.Cost < dist[a.NextState].Cost {
				dist[a.NextState] = cand
				back[a.NextState] = i
				from[a.NextState] = s
			}
		}
	}

	best := fst.NoStateID
	bestW := Zero
	for s := range l.states {
		if !l.states[s].isFinal || dist[s] == Zero {
			continue
		}
		w := dist[s].Times(l.states[s].final)
		if best == fst.NoStateID || w.Cost < bestW.Cost {
			best, bestW = s, w
		}
	}
	if best == fst.NoStateID {
		return nil, errors.New("lattice: no final state is reachable")
	}

	var arcs []Arc
	for s := best; s != l.start; s = from[s] {
		arcs = append(arcs, l.states[from[s]].arcs[back[s]])
	}
	for i, j := 0, len(arcs)-1; i < j; i, j = i+1, j-1 {
		arcs[i], arcs[j] = arcs[j], arcs[i]
	}
	return &Path{Arcs: arcs, Final: best, Weight: bestW}, nil
}

// ToStd converts the lattice to a tropical network keeping only the total cost.
func (l *Lattice) ToStd() *fst.VectorFst {
	out := fst.NewVectorFst()
	for range l.states {
		out.AddState()
	}
	for s := range l.states {
		for _, a := range l.states[s].arcs {
			out.AddArc(s, fst.Arc{ILabel: a.ILabel, OLabel: a.OLabel, Weight: a.Weight.Cost, NextState: a.NextState})
		}
		if l.states[s].isFinal {
			out.SetFinal(s, l.states[s].final.Cost)
		}
	}
	out.SetStart(l.start)
	out.SetInputSymbols(l.isyms)
	out.SetOutputSymbols(l.osyms)
	return out
}
