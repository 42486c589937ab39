// Package fst holds the read-only weighted automaton the decoder searches.
// Weights are tropical costs: lower is better, +Inf is the zero weight.
package fst

import (
	"math"
)

// StateID identifies a state. States of a network are numbered 0..NumStates()-1.
type StateID = int

// Label is an arc label. Label 0 is reserved for epsilon.
type Label = int

// NoStateID marks a missing state (no start state, the target of a closing arc).
const NoStateID StateID = -1

// Epsilon is the non-consuming label.
const Epsilon Label = 0

// Arc is a weighted transition between two states.
type Arc struct {
	ILabel    Label
	OLabel    Label
	Weight    float32
	NextState StateID
}

// ZeroWeight is the tropical zero, used as the final weight of non-final states.
var ZeroWeight = float32(math.Inf(1))

// IsFinal reports whether w is a usable final weight.
func IsFinal(w float32) bool {
	return !math.IsInf(float64(w), 1) && !math.IsNaN(float64(w))
}

// Network is the read-only view of a search network.
type Network interface {
	Start() StateID
	NumStates() int
	// Arcs returns the outgoing arcs of s. Callers must not modify the slice.
	Arcs(s StateID) []Arc
	// Final returns the final weight of s, ZeroWeight if s is not final.
	Final(s StateID) float32
	InputSymbols() *SymbolTable
	OutputSymbols() *SymbolTable
}

type vectorState struct {
	arcs  []Arc
	final float32
}

// VectorFst is a mutable in-memory Network.
type VectorFst struct {
	states []vectorState
	start  StateID
	isyms  *SymbolTable
	osyms  *SymbolTable
}

// NewVectorFst returns an empty automaton with no start state.
func NewVectorFst() *VectorFst {
	return &VectorFst{start: NoStateID}
}

// AddState appends a non-final state and returns its id.
func (f *VectorFst) AddState() StateID {
	f.states = append(f.states, vectorState{final: ZeroWeight})
	return len(f.states) - 1
}

// ensureState grows the state list so that s is valid.
func (f *VectorFst) ensureState(s StateID) {
	for len(f.states) <= s {
		f.AddState()
	}
}

// AddArc appends an arc leaving src.
func (f *VectorFst) AddArc(src StateID, arc Arc) {
	f.states[src].arcs = append(f.states[src].arcs, arc)
}

// SetStart sets the start state.
func (f *VectorFst) SetStart(s StateID) { f.start = s }

// SetFinal sets the final weight of s.
func (f *VectorFst) SetFinal(s StateID, w float32) { f.states[s].final = w }

// SetInputSymbols attaches the input label table.
func (f *VectorFst) SetInputSymbols(t *SymbolTable) { f.isyms = t }

// SetOutputSymbols attaches the output label table.
func (f *VectorFst) SetOutputSymbols(t *SymbolTable) { f.osyms = t }

func (f *VectorFst) Start() StateID              { return f.start }
func (f *VectorFst) NumStates() int              { return len(f.states) }
func (f *VectorFst) Arcs(s StateID) []Arc        { return f.states[s].arcs }
func (f *VectorFst) Final(s StateID) float32     { return f.states[s].final }
func (f *VectorFst) InputSymbols() *SymbolTable  { return f.isyms }
func (f *VectorFst) OutputSymbols() *SymbolTable { return f.osyms }

// NumArcs returns the total number of arcs.
func (f *VectorFst) NumArcs() int {
	n := 0
	for i := range f.states {
		n += len(f.states[i].arcs)
	}
	return n
}
