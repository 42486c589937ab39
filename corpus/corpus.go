// Package corpus reads utterance features from, and writes decoding results
// to, YAML document streams.
//
// An input document is either one utterance or a list of them:
//
//	key: utt001
//	features:
//	  - [0.1, -0.2, 0.3]
//	  - [0.0, 0.4, -0.1]
//	+speaker: spk01
//
// Keys starting with "+" are sticky: they are copied unchanged into the
// corresponding output document.
package corpus

import (
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ieee0824/spin-go/lattice"
)

// StickyPrefix marks keys carried from input to output documents.
const StickyPrefix = "+"

// Utterance is one input document.
type Utterance struct {
	Key      string
	Features [][]float32 // [T][dim]
	Tags     map[string]any
}

// Reader streams utterances from YAML documents.
type Reader struct {
	dec     *yaml.Decoder
	pending []*yaml.Node
	doc     int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: yaml.NewDecoder(r)}
}

// Next returns the next utterance, or io.EOF after the last one.
func (r *Reader) Next() (*Utterance, error) {
	for len(r.pending) == 0 {
		var root yaml.Node
		if err := r.dec.Decode(&root); err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, errors.Wrapf(err, "corpus document %d", r.doc)
		}
		r.doc++
		node := &root
		if node.Kind == yaml.DocumentNode {
			if len(node.Content) == 0 {
				continue
			}
			node = node.Content[0]
		}
		switch node.Kind {
		case yaml.MappingNode:
			r.pending = append(r.pending, node)
		case yaml.SequenceNode:
			r.pending = append(r.pending, node.Content...)
		case yaml.ScalarNode:
			if node.Tag != "!!null" {
				return nil, errors.Errorf("corpus document %d: expected a mapping or a list", r.doc)
			}
		default:
			return nil, errors.Errorf("corpus document %d: expected a mapping or a list", r.doc)
		}
	}
	node := r.pending[0]
	r.pending = r.pending[1:]
	return parseUtterance(node)
}

func parseUtterance(node *yaml.Node) (*Utterance, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errors.Errorf("corpus line %d: utterance must be a mapping", node.Line)
	}
	u := &Utterance{}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		switch {
		case k.Value == "key":
			if err := v.Decode(&u.Key); err != nil {
				return nil, errors.Wrapf(err, "corpus line %d: key", v.Line)
			}
		case k.Value == "features":
			if err := v.Decode(&u.Features); err != nil {
				return nil, errors.Wrapf(err, "corpus line %d: features", v.Line)
			}
		case strings.HasPrefix(k.Value, StickyPrefix):
			var tag any
			if err := v.Decode(&tag); err != nil {
				return nil, errors.Wrapf(err, "corpus line %d: %s", v.Line, k.Value)
			}
			if u.Tags == nil {
				u.Tags = make(map[string]any)
			}
			u.Tags[k.Value] = tag
		default:
			return nil, errors.Errorf("corpus line %d: unknown field %q", k.Line, k.Value)
		}
	}
	if u.Key == "" {
		return nil, errors.Errorf("corpus line %d: utterance has no key", node.Line)
	}
	for t, row := range u.Features {
		if len(row) != len(u.Features[0]) {
			return nil, errors.Errorf("utterance %s: frame %d has %d values, want %d", u.Key, t, len(row), len(u.Features[0]))
		}
	}
	return u, nil
}

// ReadAll reads every utterance from r.
func ReadAll(r io.Reader) ([]*Utterance, error) {
	rd := NewReader(r)
	var utts []*Utterance
	for {
		u, err := rd.Next()
		if err == io.EOF {
			return utts, nil
		}
		if err != nil {
			return nil, err
		}
		utts = append(utts, u)
	}
}

// Result is one decoded utterance.
type Result struct {
	Key      string
	Tags     map[string]any
	Frames   int
	Elapsed  time.Duration
	BestCost float32
	Lattice  *lattice.Lattice
}

// Writer emits one YAML document per result.
type Writer struct {
	enc *yaml.Encoder
	tag string
}

// NewWriter returns a Writer storing lattices under tag.
func NewWriter(w io.Writer, tag string) *Writer {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	return &Writer{enc: enc, tag: tag}
}

// Write encodes res. Sticky tags come first in key order, followed by the
// decoding statistics and the lattice in text form.
func (w *Writer) Write(res *Result) error {
	var text strings.Builder
	if err := lattice.WriteText(&text, res.Lattice); err != nil {
		return errors.Wrapf(err, "utterance %s", res.Key)
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	add := func(key string, v any) error {
		var val yaml.Node
		if err := val.Encode(v); err != nil {
			return errors.Wrapf(err, "utterance %s: %s", res.Key, key)
		}
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &val)
		return nil
	}

	if err := add("key", res.Key); err != nil {
		return err
	}
	keys := make([]string, 0, len(res.Tags))
	for k := range res.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := add(k, res.Tags[k]); err != nil {
			return err
		}
	}
	if err := add(StickyPrefix+"num_frames", res.Frames); err != nil {
		return err
	}
	if err := add(StickyPrefix+"decode_msec", res.Elapsed.Milliseconds()); err != nil {
		return err
	}
	if err := add("best_cost", res.BestCost); err != nil {
		return err
	}
	if err := add(w.tag, text.String()); err != nil {
		return err
	}
	return errors.Wrapf(w.enc.Encode(doc), "utterance %s", res.Key)
}

// Close flushes the underlying encoder.
func (w *Writer) Close() error {
	return errors.Wrap(w.enc.Close(), "close corpus writer")
}
