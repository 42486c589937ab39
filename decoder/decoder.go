// Package decoder implements a time-synchronous beam search over a weighted
// search network. Hypotheses are expanded frame by frame against a frame
// scorer, pruned by beam and active-count limits, folded where they reconverge,
// and finally backtracked into a time-aligned lattice.
//
// A Decoder holds per-utterance state and reusable scratch buffers; it is not
// safe for concurrent or reentrant use. Decode independent utterances in
// parallel with one Decoder and one scorer each.
package decoder

import (
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/ieee0824/spin-go/fst"
	"github.com/ieee0824/spin-go/lattice"
	"github.com/ieee0824/spin-go/scorer"
)

// Decoder decodes one utterance at a time.
type Decoder struct {
	net    fst.Network
	scorer scorer.FrameScorer
	states *StateMap
	cfg    Config
	log    *slog.Logger

	gens      []Generation
	frames    int
	inputDone bool
	closed    bool
	stats     []FrameStats

	// scratch reused by every expansion
	candidates []Hypothesis
	trans      []Transition
	queue      []Transition
	primaryIdx map[fst.StateID]int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithConfig sets the search parameters.
func WithConfig(cfg Config) Option {
	return func(d *Decoder) {
		d.cfg = cfg
	}
}

// WithLogger sets the logger used for per-frame debug output.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.log = l
		}
	}
}

// New creates a decoder for net scored by sc.
func New(net fst.Network, sc scorer.FrameScorer, opts ...Option) (*Decoder, error) {
	d := &Decoder{
		net:        net,
		scorer:     sc,
		cfg:        DefaultConfig(),
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		primaryIdx: make(map[fst.StateID]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.cfg.Validate(); err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, errors.New("decoder: frame scorer is required")
	}
	if net.Start() == fst.NoStateID {
		return nil, ErrNoStart
	}
	states, err := NewStateMap(net)
	if err != nil {
		return nil, err
	}
	if mx := states.MaxState(); mx >= sc.StateCount() {
		return nil, errors.Wrapf(ErrStateRange, "state %d, scorer has %d", mx, sc.StateCount())
	}
	d.states = states
	return d, nil
}

// Config returns the search parameters in use.
func (d *Decoder) Config() Config { return d.cfg }

// StateMap returns the label to acoustic state mapping.
func (d *Decoder) StateMap() *StateMap { return d.states }

// PushInit discards any previous utterance and seeds generation 0 with a
// hypothesis resting in the network start state.
func (d *Decoder) PushInit() {
	seed := Hypothesis{
		Prev: noRef,
		Trans: Transition{
			From:   fst.NoStateID,
			Arcs:   []fst.Arc{{NextState: d.net.Start()}},
			Target: NoState,
		},
	}
	d.gens = append(d.gens[:0], Generation{seed})
	d.frames = 0
	d.inputDone = false
	d.closed = false
	d.stats = d.stats[:0]
}

// PushInput scores features ([T][dim]) and expands one generation per frame.
// It returns an error wrapping ErrNoHypothesis when the search is exhausted,
// and the scorer's error when the features do not fit the model.
func (d *Decoder) PushInput(features [][]float32) error {
	switch {
	case len(d.gens) == 0:
		return ErrNotInitialized
	case d.closed:
		return ErrClosed
	case d.inputDone:
		return ErrInputPushed
	}
	d.inputDone = true
	if err := d.scorer.SetFrames(features); err != nil {
		return errors.Wrap(err, "set frames")
	}
	for t := range features {
		if err := d.advance(t, false); err != nil {
			return errors.Wrapf(err, "frame %d", t)
		}
		d.frames++
	}
	return nil
}

// PushFinal closes the utterance with the network's final weights. It returns
// ErrNoHypothesis when no surviving hypothesis can reach a final state.
func (d *Decoder) PushFinal() error {
	switch {
	case len(d.gens) == 0:
		return ErrNotInitialized
	case d.closed:
		return ErrClosed
	}
	if err := d.advance(d.frames, true); err != nil {
		return errors.Wrap(err, "final closure")
	}
	d.closed = true
	return nil
}

// NumFrames returns the number of frames expanded so far.
func (d *Decoder) NumFrames() int { return d.frames }

// NumGenerations returns the number of retained generations, seed and final included.
func (d *Decoder) NumGenerations() int { return len(d.gens) }

// Generation returns generation i. The slice must not be modified.
func (d *Decoder) Generation(i int) Generation { return d.gens[i] }

// Hypothesis resolves a predecessor reference.
func (d *Decoder) Hypothesis(r Ref) *Hypothesis { return &d.gens[r.Gen][r.Slot] }

// Stats returns the per-generation pruning counts of the current utterance.
func (d *Decoder) Stats() []FrameStats { return d.stats }

// Status classifies a decode.
type Status int

const (
	// StatusSuccess means a lattice was produced.
	StatusSuccess Status = iota
	// StatusExhausted means no hypothesis survived; the utterance should be skipped.
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Outcome is the result of Decode.
type Outcome struct {
	Status   Status
	Lattice  *lattice.Lattice // nil unless StatusSuccess
	BestCost float32          // cost of the best final hypothesis
	Frames   int
	// ExhaustedAt is the frame that had no survivor; Frames when the final
	// closure failed.
	ExhaustedAt int
	Elapsed     time.Duration
}

// Decode runs PushInit, PushInput, PushFinal and ExtractLattice on one
// utterance. Search exhaustion is reported through Outcome.Status; the error
// is reserved for fatal conditions.
func (d *Decoder) Decode(features [][]float32) (*Outcome, error) {
	begin := time.Now()
	out := &Outcome{Frames: len(features), ExhaustedAt: -1}
	d.PushInit()
	err := d.PushInput(features)
	if err == nil {
		err = d.PushFinal()
	}
	if err != nil {
		if errors.Is(err, ErrNoHypothesis) {
			out.Status = StatusExhausted
			out.ExhaustedAt = d.frames
			out.Elapsed = time.Since(begin)
			d.log.Info("no hypothesis", "frames", len(features), "exhausted_at", d.frames)
			return out, nil
		}
		return nil, err
	}
	lat, best, err := d.ExtractLattice(d.cfg.MaxBranch)
	if err != nil {
		return nil, err
	}
	out.Lattice = lat
	out.BestCost = best
	out.Elapsed = time.Since(begin)
	return out, nil
}
