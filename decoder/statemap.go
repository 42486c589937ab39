package decoder

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ieee0824/spin-go/fst"
)

// NoState marks an input label that does not consume a frame.
const NoState = -1

// StateMap maps network input labels to acoustic state indices.
// Labels of the form "S<digits>[;...]" are acoustic, everything else,
// including epsilon, is structural.
type StateMap struct {
	states []int
}

// NewStateMap builds the map from the input symbol table of net.
func NewStateMap(net fst.Network) (*StateMap, error) {
	isyms := net.InputSymbols()
	if isyms == nil {
		return nil, ErrNoInputSymbols
	}
	m := &StateMap{states: make([]int, isyms.MaxLabel()+1)}
	for i := range m.states {
		m.states[i] = NoState
	}
	for _, l := range isyms.Labels() {
		if l == fst.Epsilon {
			continue
		}
		sym, _ := isyms.Find(l)
		st, err := ParseStateLabel(sym)
		if err != nil {
			return nil, err
		}
		m.states[l] = st
	}
	return m, nil
}

// ParseStateLabel returns the acoustic state of sym, NoState for structural symbols.
func ParseStateLabel(sym string) (int, error) {
	if !strings.HasPrefix(sym, "S") {
		return NoState, nil
	}
	digits, _, _ := strings.Cut(sym[1:], ";")
	st, err := strconv.Atoi(digits)
	if err != nil || st < 0 {
		return NoState, errors.Wrapf(ErrBadStateLabel, "symbol %q", sym)
	}
	return st, nil
}

// State returns the acoustic state of label l.
func (m *StateMap) State(l fst.Label) int {
	if l < 0 || l >= len(m.states) {
		return NoState
	}
	return m.states[l]
}

// MaxState returns the largest acoustic state index, NoState if there is none.
func (m *StateMap) MaxState() int {
	mx := NoState
	for _, s := range m.states {
		mx = max(mx, s)
	}
	return mx
}
