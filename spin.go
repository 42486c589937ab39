// Package spin ties a search network and an acoustic model together into a
// Recognizer that decodes utterances into lattices.
package spin

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/ieee0824/spin-go/corpus"
	"github.com/ieee0824/spin-go/decoder"
	"github.com/ieee0824/spin-go/fst"
	"github.com/ieee0824/spin-go/scorer"
)

// ScorerType selects the acoustic model family.
type ScorerType string

const (
	ScorerGMM  ScorerType = "gmm"
	ScorerNNet ScorerType = "nnet"
)

// ScorerFactory returns a scorer with its own score cache.
type ScorerFactory func() scorer.FrameScorer

// Recognizer decodes utterances against one network and acoustic model.
// It is safe for concurrent use; every decode gets its own decoder and scorer.
type Recognizer struct {
	Net       fst.Network
	NewScorer ScorerFactory
	DecCfg    decoder.Config
	Workers   int // parallel decoders used by RecognizeAll
	logger    *slog.Logger
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithDecoderConfig sets custom decoder parameters.
func WithDecoderConfig(cfg decoder.Config) Option {
	return func(r *Recognizer) {
		r.DecCfg = cfg
	}
}

// WithWorkers sets the number of utterances decoded in parallel.
func WithWorkers(n int) Option {
	return func(r *Recognizer) {
		r.Workers = n
	}
}

// WithLogger passes l to every decoder.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recognizer) {
		r.logger = l
	}
}

// NewRecognizer loads a text network from graphPath and a model of type typ
// from modelPath.
func NewRecognizer(graphPath string, typ ScorerType, modelPath string, opts ...Option) (*Recognizer, error) {
	f, err := os.Open(graphPath)
	if err != nil {
		return nil, errors.Wrap(err, "open network")
	}
	defer f.Close()
	net, err := fst.ReadText(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load network %s", graphPath)
	}

	newScorer, err := LoadScorer(typ, modelPath)
	if err != nil {
		return nil, err
	}
	return NewRecognizerFromModels(net, newScorer, opts...), nil
}

// LoadScorer reads a gob-encoded model and returns a factory of scorers
// sharing it.
func LoadScorer(typ ScorerType, path string) (ScorerFactory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open acoustic model")
	}
	defer f.Close()

	switch typ {
	case ScorerGMM:
		m, err := scorer.LoadGMM(f)
		if err != nil {
			return nil, errors.Wrapf(err, "load gmm %s", path)
		}
		return func() scorer.FrameScorer { return scorer.NewGMMScorer(m) }, nil
	case ScorerNNet:
		m, err := scorer.LoadNNet(f)
		if err != nil {
			return nil, errors.Wrapf(err, "load nnet %s", path)
		}
		return func() scorer.FrameScorer { return scorer.NewNNetScorer(m) }, nil
	}
	return nil, errors.Errorf("unknown scorer type %q", typ)
}

// NewRecognizerFromModels creates a Recognizer from a loaded network.
func NewRecognizerFromModels(net fst.Network, newScorer ScorerFactory, opts ...Option) *Recognizer {
	r := &Recognizer{
		Net:       net,
		NewScorer: newScorer,
		DecCfg:    decoder.DefaultConfig(),
		Workers:   1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewDecoder returns a decoder with a fresh scorer.
func (r *Recognizer) NewDecoder() (*decoder.Decoder, error) {
	return decoder.New(r.Net, r.NewScorer(), decoder.WithConfig(r.DecCfg), decoder.WithLogger(r.logger))
}

// Recognize decodes a single utterance.
func (r *Recognizer) Recognize(features [][]float32) (*decoder.Outcome, error) {
	dec, err := r.NewDecoder()
	if err != nil {
		return nil, err
	}
	return dec.Decode(features)
}

// Result pairs an utterance with its outcome.
type Result struct {
	Utterance *corpus.Utterance
	Outcome   *decoder.Outcome
}

type slot struct {
	res  *Result
	err  error
	done chan struct{}
}

// RecognizeAll decodes utts on r.Workers goroutines and calls emit with the
// results in input order. Exhausted utterances are emitted like any other;
// a fatal decoding error, an emit error or ctx cancellation stops the run.
func (r *Recognizer) RecognizeAll(ctx context.Context, utts []*corpus.Utterance, emit func(*Result) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	slots := make([]slot, len(utts))
	for i := range slots {
		slots[i].done = make(chan struct{})
	}
	jobs := make(chan int)
	go func() {
		defer close(jobs)
		for i := range utts {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w, n := 0, max(1, min(r.Workers, len(utts))); w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, derr := r.NewDecoder()
			for i := range jobs {
				s := &slots[i]
				if derr != nil {
					s.err = derr
				} else {
					out, err := dec.Decode(utts[i].Features)
					s.res, s.err = &Result{Utterance: utts[i], Outcome: out}, err
				}
				close(s.done)
			}
		}()
	}

	var err error
	for i := range slots {
		if err = ctx.Err(); err != nil {
			break
		}
		select {
		case <-slots[i].done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			break
		}
		if slots[i].err != nil {
			err = errors.Wrapf(slots[i].err, "utterance %s", utts[i].Key)
			break
		}
		if err = emit(slots[i].res); err != nil {
			break
		}
	}
	cancel()
	wg.Wait()
	return err
}
