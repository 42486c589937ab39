package scorer

import (
	"encoding/gob"
	"io"

	"github.com/pkg/errors"

	"github.com/ieee0824/spin-go/internal/blas"
	"github.com/ieee0824/spin-go/internal/mathutil"
)

// Layer is a fully-connected layer. W is [Out × In] row-major, B is [Out].
type Layer struct {
	W   []float32
	B   []float32
	In  int
	Out int
}

// NNetModel is a feed-forward network for acoustic state classification.
// Layers[0..N-2] use ReLU, Layers[N-1] is the output layer with log-softmax.
// The input is a window of 2*ContextLen+1 frames with edge replication.
type NNetModel struct {
	Layers     []Layer
	ContextLen int
	// LogPrior is log P(state); subtracting it turns log-posteriors into
	// pseudo log-likelihoods. Empty means no prior.
	LogPrior []float32
}

// InputDim returns the width of the first layer.
func (m *NNetModel) InputDim() int { return m.Layers[0].In }

// OutputDim returns the number of acoustic states.
func (m *NNetModel) OutputDim() int { return m.Layers[len(m.Layers)-1].Out }

// Validate checks layer shapes.
func (m *NNetModel) Validate() error {
	if len(m.Layers) == 0 {
		return errors.New("nnet: no layers")
	}
	if m.ContextLen < 0 {
		return errors.Errorf("nnet: negative context length %d", m.ContextLen)
	}
	prev := m.Layers[0].In
	for i, l := range m.Layers {
		if l.In != prev {
			return errors.Errorf("nnet: layer %d input %d does not match previous output %d", i, l.In, prev)
		}
		if len(l.W) != l.In*l.Out || len(l.B) != l.Out {
			return errors.Errorf("nnet: layer %d has inconsistent parameter sizes", i)
		}
		prev = l.Out
	}
	if len(m.LogPrior) != 0 && len(m.LogPrior) != m.OutputDim() {
		return errors.Errorf("nnet: prior has %d entries, want %d", len(m.LogPrior), m.OutputDim())
	}
	return nil
}

// Forward computes log-softmax outputs for a batch of input rows.
// input: flat [batchSize × InputDim]; output: flat [batchSize × OutputDim].
func (m *NNetModel) Forward(input []float32, batchSize int, output []float32) {
	prev := input
	prevDim := m.InputDim()
	last := len(m.Layers) - 1
	for i := range m.Layers {
		layer := &m.Layers[i]
		var dst []float32
		if i == last {
			dst = output
		} else {
			dst = make([]float32, batchSize*layer.Out)
		}

		blas.Sgemm(false, true, batchSize, layer.Out, prevDim,
			1.0, prev, prevDim, layer.W, prevDim, 0.0, dst, layer.Out)

		for r := 0; r < batchSize; r++ {
			row := dst[r*layer.Out : (r+1)*layer.Out]
			for j := range row {
				row[j] += layer.B[j]
			}
			if i == last {
				mathutil.LogSoftmax(row)
				continue
			}
			for j, v := range row {
				if v < 0 {
					row[j] = 0
				}
			}
		}
		prev = dst
		prevDim = layer.Out
	}
}

// NNetScorer runs the network once per utterance, on the first Score call.
type NNetScorer struct {
	model  *NNetModel
	frames [][]float32
	scores [][]float32
}

// NewNNetScorer creates a scorer backed by m.
func NewNNetScorer(m *NNetModel) *NNetScorer {
	return &NNetScorer{model: m}
}

// SetFrames replaces the utterance. The context window of the frames must
// match the input layer.
func (n *NNetScorer) SetFrames(frames [][]float32) error {
	n.frames, n.scores = nil, nil
	if len(frames) > 0 {
		win := 2*n.model.ContextLen + 1
		featDim := len(frames[0])
		if win*featDim != n.model.InputDim() {
			return errors.Wrapf(ErrDimension, "%d-frame window of dim %d does not match input %d",
				win, featDim, n.model.InputDim())
		}
		if err := checkFrames(frames, featDim); err != nil {
			return err
		}
	}
	n.frames = frames
	return nil
}

// StateCount returns the width of the output layer.
func (n *NNetScorer) StateCount() int { return n.model.OutputDim() }

// Score returns the prior-corrected log-posterior of state s at frame t. The
// network runs over the whole utterance on the first call.
func (n *NNetScorer) Score(t, s int) float32 {
	checkRange(t, len(n.frames), s, n.model.OutputDim())
	if n.scores == nil {
		n.feedForward()
	}
	return n.scores[t][s]
}

func (n *NNetScorer) feedForward() {
	T := len(n.frames)
	in := n.model.InputDim()
	out := n.model.OutputDim()
	featDim := len(n.frames[0])
	win := 2*n.model.ContextLen + 1

	input := make([]float32, T*in)
	for t := 0; t < T; t++ {
		off := t * in
		for w := 0; w < win; w++ {
			src := min(max(t-n.model.ContextLen+w, 0), T-1)
			copy(input[off+w*featDim:off+(w+1)*featDim], n.frames[src])
		}
	}

	flat := make([]float32, T*out)
	n.model.Forward(input, T, flat)

	n.scores = make([][]float32, T)
	for t := 0; t < T; t++ {
		row := flat[t*out : (t+1)*out : (t+1)*out]
		for i, lp := range n.model.LogPrior {
			row[i] -= lp
		}
		n.scores[t] = row
	}
}

type serializedNNet struct {
	Version    int
	ContextLen int
	Layers     []Layer
	LogPrior   []float32
}

// Save serializes the model with gob encoding.
func (m *NNetModel) Save(w io.Writer) error {
	sn := serializedNNet{Version: 1, ContextLen: m.ContextLen, Layers: m.Layers, LogPrior: m.LogPrior}
	return errors.Wrap(gob.NewEncoder(w).Encode(sn), "encode nnet")
}

// LoadNNet deserializes and validates a model.
func LoadNNet(r io.Reader) (*NNetModel, error) {
	var sn serializedNNet
	if err := gob.NewDecoder(r).Decode(&sn); err != nil {
		return nil, errors.Wrap(err, "decode nnet")
	}
	if sn.Version != 1 {
		return nil, errors.Errorf("nnet: unsupported version %d", sn.Version)
	}
	m := &NNetModel{ContextLen: sn.ContextLen, Layers: sn.Layers, LogPrior: sn.LogPrior}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
