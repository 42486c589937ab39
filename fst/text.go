package fst

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// HeaderStandard is the first line of a text network with tropical weights.
const HeaderStandard = "#FSTHeader standard"

// ErrFormat is returned for malformed text automata.
var ErrFormat = errors.New("fst: invalid text format")

// ReadText parses a headered text network.
//
//	#FSTHeader standard
//	src dst isym [osym [weight]]
//	state [finalweight]
//
// The first state mentioned becomes the start state. Symbols are interned into
// fresh input/output tables with <eps> bound to label 0.
func ReadText(r io.Reader) (*VectorFst, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, errors.Wrap(err, "read network")
		}
		return nil, errors.Wrap(ErrFormat, "empty input")
	}
	header := strings.Fields(sc.Text())
	if len(header) < 2 || header[0] != "#FSTHeader" {
		return nil, errors.Wrap(ErrFormat, "headerless text network is not supported")
	}
	if header[1] != "standard" {
		return nil, errors.Wrapf(ErrFormat, "unknown fst type %q", header[1])
	}

	f := NewVectorFst()
	isyms := NewSymbolTable()
	osyms := NewSymbolTable()
	start := NoStateID
	lineNo := 1
	for sc.Scan() {
		lineNo++
		vs := strings.Fields(sc.Text())
		switch {
		case len(vs) == 0:
			continue
		case len(vs) < 3:
			s, err := parseState(vs[0])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			f.ensureState(s)
			if start == NoStateID {
				start = s
			}
			w := float32(0)
			if len(vs) == 2 {
				if w, err = ParseWeight(vs[1]); err != nil {
					return nil, errors.Wrapf(err, "line %d", lineNo)
				}
			}
			f.SetFinal(s, w)
		case len(vs) < 6:
			p, err := parseState(vs[0])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			n, err := parseState(vs[1])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", lineNo)
			}
			if start == NoStateID {
				start = p
			}
			f.ensureState(p)
			f.ensureState(n)
			osym := vs[2]
			if len(vs) >= 4 {
				osym = vs[3]
			}
			arc := Arc{
				ILabel:    isyms.Add(vs[2]),
				OLabel:    osyms.Add(osym),
				NextState: n,
			}
			if len(vs) == 5 {
				if arc.Weight, err = ParseWeight(vs[4]); err != nil {
					return nil, errors.Wrapf(err, "line %d", lineNo)
				}
			}
			f.AddArc(p, arc)
		default:
			return nil, errors.Wrapf(ErrFormat, "line %d: too many fields", lineNo)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read network")
	}
	f.SetStart(start)
	f.SetInputSymbols(isyms)
	f.SetOutputSymbols(osyms)
	return f, nil
}

func parseState(s string) (StateID, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return NoStateID, errors.Wrapf(ErrFormat, "bad state id %q", s)
	}
	return v, nil
}

// ParseWeight parses a tropical weight ("Infinity" and "inf" are accepted).
func ParseWeight(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrFormat, "bad weight %q", s)
	}
	return float32(v), nil
}

// FormatWeight renders a tropical weight with the shortest exact representation.
func FormatWeight(w float32) string {
	return strconv.FormatFloat(float64(w), 'g', -1, 32)
}

// WriteText prints net in ReadText format, start state first.
func WriteText(w io.Writer, net Network) error {
	start := net.Start()
	if start == NoStateID {
		return errors.New("fst: initial state is not specified")
	}
	isyms, osyms := net.InputSymbols(), net.OutputSymbols()
	if isyms == nil || osyms == nil {
		return errors.New("fst: symbol tables are required for text output")
	}
	bw := bufio.NewWriter(w)
	bw.WriteString(HeaderStandard)
	bw.WriteByte('\n')
	writeState := func(s StateID, isStart bool) error {
		arcs := net.Arcs(s)
		for _, a := range arcs {
			isym, ok := isyms.Find(a.ILabel)
			if !ok {
				return errors.Errorf("fst: input label %d has no symbol", a.ILabel)
			}
			osym, ok := osyms.Find(a.OLabel)
			if !ok {
				return errors.Errorf("fst: output label %d has no symbol", a.OLabel)
			}
			bw.WriteString(strconv.Itoa(s) + "\t" + strconv.Itoa(a.NextState) + "\t" +
				isym + "\t" + osym + "\t" + FormatWeight(a.Weight) + "\n")
		}
		if fw := net.Final(s); IsFinal(fw) || (isStart && len(arcs) == 0) {
			bw.WriteString(strconv.Itoa(s) + "\t" + FormatWeight(fw) + "\n")
		}
		return nil
	}
	if err := writeState(start, true); err != nil {
		return err
	}
	for s := 0; s < net.NumStates(); s++ {
		if s == start {
			continue
		}
		if err := writeState(s, false); err != nil {
			return err
		}
	}
	return errors.Wrap(bw.Flush(), "write network")
}
