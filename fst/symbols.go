package fst

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// EpsilonSymbol is the symbol bound to label 0 in every table.
const EpsilonSymbol = "<eps>"

// SymbolTable is a bidirectional mapping between label ids and symbol strings.
type SymbolTable struct {
	syms   map[Label]string
	labels map[string]Label
	next   Label
}

// NewSymbolTable returns a table holding only <eps>.
func NewSymbolTable() *SymbolTable {
	t := &SymbolTable{
		syms:   make(map[Label]string),
		labels: make(map[string]Label),
	}
	t.AddWithLabel(EpsilonSymbol, Epsilon)
	return t
}

// Add interns sym and returns its label. Existing symbols keep their label.
func (t *SymbolTable) Add(sym string) Label {
	if l, ok := t.labels[sym]; ok {
		return l
	}
	l := t.next
	t.AddWithLabel(sym, l)
	return l
}

// AddWithLabel binds sym to an explicit label, replacing any previous binding
// of that label and of that symbol.
func (t *SymbolTable) AddWithLabel(sym string, l Label) {
	if old, ok := t.syms[l]; ok {
		delete(t.labels, old)
	}
	if old, ok := t.labels[sym]; ok {
		delete(t.syms, old)
	}
	t.syms[l] = sym
	t.labels[sym] = l
	if l >= t.next {
		t.next = l + 1
	}
}

// Find returns the symbol bound to l.
func (t *SymbolTable) Find(l Label) (string, bool) {
	s, ok := t.syms[l]
	return s, ok
}

// Lookup returns the label bound to sym.
func (t *SymbolTable) Lookup(sym string) (Label, bool) {
	l, ok := t.labels[sym]
	return l, ok
}

// Len returns the number of symbols, <eps> included.
func (t *SymbolTable) Len() int { return len(t.syms) }

// MaxLabel returns the largest label in use.
func (t *SymbolTable) MaxLabel() Label { return t.next - 1 }

// Labels returns all labels in ascending order.
func (t *SymbolTable) Labels() []Label {
	ls := make([]Label, 0, len(t.syms))
	for l := range t.syms {
		ls = append(ls, l)
	}
	sort.Ints(ls)
	return ls
}

// ReadSymbols parses "symbol label" lines. Blank lines are skipped.
func ReadSymbols(r io.Reader) (*SymbolTable, error) {
	t := NewSymbolTable()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, errors.Errorf("symbols line %d: expected 2 fields, got %d", lineNo, len(fields))
		}
		l, err := strconv.Atoi(fields[1])
		if err != nil || l < 0 {
			return nil, errors.Errorf("symbols line %d: bad label %q", lineNo, fields[1])
		}
		t.AddWithLabel(fields[0], l)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read symbols")
	}
	return t, nil
}

// WriteSymbols prints the table in ReadSymbols format.
func WriteSymbols(w io.Writer, t *SymbolTable) error {
	bw := bufio.NewWriter(w)
	for _, l := range t.Labels() {
		sym, _ := t.Find(l)
		bw.WriteString(sym)
		bw.WriteByte('\t')
		bw.WriteString(strconv.Itoa(l))
		bw.WriteByte('\n')
	}
	return errors.Wrap(bw.Flush(), "write symbols")
}
