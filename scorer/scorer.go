// Package scorer provides per-frame acoustic scores for the decoder.
//
// A model (GMMModel, NNetModel) is read-only and may be shared; a scorer built
// from it holds the features and score cache of one utterance and must not be
// used by more than one decoder at a time.
package scorer

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrDimension is returned by SetFrames when the frames do not fit the model.
var ErrDimension = errors.New("scorer: feature dimension does not match the model")

// FrameScorer scores feature frames against acoustic states.
type FrameScorer interface {
	// SetFrames replaces the utterance being scored. frames is [T][dim].
	// It fails with ErrDimension when a frame does not fit the model.
	SetFrames(frames [][]float32) error
	// Score returns the log-likelihood-like score of frame t for state s.
	Score(t, s int) float32
	// StateCount returns the number of acoustic states.
	StateCount() int
}

// Table serves scores from a precomputed [T][S] matrix. SetFrames only checks
// the frame count.
type Table struct {
	scores [][]float32
	states int
}

// NewTable wraps scores. All rows must have the same length.
func NewTable(scores [][]float32) *Table {
	states := 0
	if len(scores) > 0 {
		states = len(scores[0])
	}
	return &Table{scores: scores, states: states}
}

// SetFrames fails if frames is longer than the table.
func (t *Table) SetFrames(frames [][]float32) error {
	if len(frames) > len(t.scores) {
		return errors.Errorf("scorer: %d frames but table holds %d", len(frames), len(t.scores))
	}
	return nil
}

// Score returns the stored score of state s at frame. Out-of-range indices panic.
func (t *Table) Score(frame, s int) float32 {
	checkRange(frame, len(t.scores), s, t.states)
	return t.scores[frame][s]
}

// StateCount returns the width of the table.
func (t *Table) StateCount() int { return t.states }

// checkFrames reports the first frame whose length differs from dim.
func checkFrames(frames [][]float32, dim int) error {
	for t, f := range frames {
		if len(f) != dim {
			return errors.Wrapf(ErrDimension, "frame %d has %d values, model expects %d", t, len(f), dim)
		}
	}
	return nil
}

func checkRange(t, frames, s, states int) {
	if t < 0 || t >= frames {
		panic(fmt.Sprintf("scorer: frame %d out of range [0,%d)", t, frames))
	}
	if s < 0 || s >= states {
		panic(fmt.Sprintf("scorer: state %d out of range [0,%d)", s, states))
	}
}
