package lattice

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ieee0824/spin-go/fst"
)

// HeaderLattice is the first line of a text lattice.
const HeaderLattice = "#FSTHeader lattice"

// WriteText prints l in the headered text format, start state first:
//
//	src dst isym osym (cost,acoustic,[start:end])
//	state (cost,acoustic,[start:end])
func WriteText(w io.Writer, l *Lattice) error {
	if l.start == fst.NoStateID {
		return ErrNoStart
	}
	bw := bufio.NewWriter(w)
	bw.WriteString(HeaderLattice)
	bw.WriteByte('\n')
	if err := l.writeState(bw, l.start, true); err != nil {
		return err
	}
	for s := range l.states {
		if s == l.start {
			continue
		}
		if err := l.writeState(bw, s, false); err != nil {
			return err
		}
	}
	return errors.Wrap(bw.Flush(), "write lattice")
}

func (l *Lattice) symbol(t *fst.SymbolTable, label fst.Label) (string, error) {
	if t == nil {
		return strconv.Itoa(label), nil
	}
	sym, ok := t.Find(label)
	if !ok {
		return "", errors.Errorf("lattice: label %d has no symbol", label)
	}
	return sym, nil
}

func (l *Lattice) writeState(bw *bufio.Writer, s fst.StateID, isStart bool) error {
	st := &l.states[s]
	for _, a := range st.arcs {
		isym, err := l.symbol(l.isyms, a.ILabel)
		if err != nil {
			return err
		}
		osym, err := l.symbol(l.osyms, a.OLabel)
		if err != nil {
			return err
		}
		bw.WriteString(strconv.Itoa(s) + "\t" + strconv.Itoa(a.NextState) + "\t" +
			isym + "\t" + osym + "\t" + a.Weight.String() + "\n")
	}
	if st.isFinal {
		bw.WriteString(strconv.Itoa(s) + "\t" + st.final.String() + "\n")
	} else if isStart && len(st.arcs) == 0 {
		bw.WriteString(strconv.Itoa(s) + "\t" + One.String() + "\n")
	}
	return nil
}

// ReadText parses the format written by WriteText. Symbols are interned into
// fresh tables; the first state mentioned becomes the start state.
func ReadText(r io.Reader) (*Lattice, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, errors.Wrap(err, "read lattice")
		}
		return nil, errors.Wrap(fst.ErrFormat, "empty lattice")
	}
	if strings.TrimSpace(sc.Text()) != HeaderLattice {
		return nil, errors.Wrapf(fst.ErrFormat, "unexpected lattice header %q", sc.Text())
	}

	l := New()
	isyms := fst.NewSymbolTable()
	osyms := fst.NewSymbolTable()
	ensure := func(s fst.StateID) {
		for len(l.states) <= s {
			l.AddState()
		}
	}
	lineNo := 1
	for sc.Scan() {
		lineNo++
		vs := strings.Fields(sc.Text())
		switch len(vs) {
		case 0:
			continue
		case 1, 2:
			s, err := strconv.Atoi(vs[0])
			if err != nil || s < 0 {
				return nil, errors.Wrapf(fst.ErrFormat, "line %d: bad state %q", lineNo, vs[0])
			}
			ensure(s)
			if l.start == fst.NoStateID {
				l.start = s
			}
			w := One
			if len(vs) == 2 {
				if w, err = ParseWeight(vs[1]); err != nil {
					return nil, errors.Wrapf(err, "line %d", lineNo)
				}
			}
			l.SetFinal(s, w)
		case 5:
			p, err := strconv.Atoi(vs[0])
			if err != nil || p < 0 {
				return nil, errors.Wrapf(fst.ErrFormat, "line %d: bad state %q", lineNo, vs[0])
			}
			n, err := strconv.Atoi(vs[1])
			if err != nil || n < 0 {
				return nil, errors.Wrapf(fst.ErrFormat, "line %d: bad state %q", lineNo, vs[1])
			}
			w, err := ParseWeight(vs[4])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			ensure(p)
			ensure(n)
			if l.start == fst.NoStateID {
				l.start = p
			}
			l.AddArc(p, Arc{ILabel: isyms.Add(vs[2]), OLabel: osyms.Add(vs[3]), Weight: w, NextState: n})
		default:
			return nil, errors.Wrapf(fst.ErrFormat, "line %d: expected 1, 2 or 5 fields", lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read lattice")
	}
	l.isyms, l.osyms = isyms, osyms
	return l, nil
}
