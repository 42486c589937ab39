package scorer

import (
	"encoding/gob"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/ieee0824/spin-go/internal/blas"
	"github.com/ieee0824/spin-go/internal/mathutil"
)

// Gaussian is a single diagonal-covariance mixture component.
type Gaussian struct {
	Mean      []float32
	Variance  []float32
	LogWeight float32
}

// StateGMM is the mixture of one acoustic state.
type StateGMM struct {
	Components []Gaussian

	// Packed per-component data, built by precompute.
	invVar     []float32 // [k*dim]
	meanInvVar []float32 // [k*dim]
	bias       []float32 // [k] logWeight - logNorm - 0.5*sum(mean^2*invVar)
}

func (g *StateGMM) precompute(dim int) {
	k := len(g.Components)
	g.invVar = make([]float32, k*dim)
	g.meanInvVar = make([]float32, k*dim)
	g.bias = make([]float32, k)
	for c := range g.Components {
		comp := &g.Components[c]
		off := c * dim
		logNorm := float64(dim) / 2.0 * math.Log(2*math.Pi)
		quad := 0.0
		for d := 0; d < dim; d++ {
			iv := 1.0 / float64(comp.Variance[d])
			logNorm += 0.5 * math.Log(float64(comp.Variance[d]))
			quad += float64(comp.Mean[d]) * float64(comp.Mean[d]) * iv
			g.invVar[off+d] = float32(iv)
			g.meanInvVar[off+d] = float32(float64(comp.Mean[d]) * iv)
		}
		g.bias[c] = float32(float64(comp.LogWeight) - logNorm - 0.5*quad)
	}
}

// LogProb computes log P(x | state) = log sum_k w_k * N(x; mean_k, var_k).
func (g *StateGMM) LogProb(x []float32) float32 {
	logSum := float64(mathutil.LogZero)
	for c := range g.Components {
		comp := &g.Components[c]
		maha := 0.0
		logNorm := float64(len(x)) / 2.0 * math.Log(2*math.Pi)
		for d, xd := range x {
			diff := float64(xd - comp.Mean[d])
			maha += diff * diff / float64(comp.Variance[d])
			logNorm += 0.5 * math.Log(float64(comp.Variance[d]))
		}
		logSum = mathutil.LogAdd(logSum, float64(comp.LogWeight)-logNorm-0.5*maha)
	}
	return float32(logSum)
}

// GMMModel holds one mixture per acoustic state. It is read-only after
// Precompute and may back any number of scorers.
type GMMModel struct {
	Dim    int
	States []*StateGMM
}

// NewGMMModel validates the mixtures and precomputes the packed data.
func NewGMMModel(dim int, states []*StateGMM) (*GMMModel, error) {
	m := &GMMModel{Dim: dim, States: states}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.Precompute()
	return m, nil
}

// Precompute builds the packed component data. Must be called after the
// parameters change; NewGMMModel and LoadGMM call it.
func (m *GMMModel) Precompute() {
	for _, st := range m.States {
		st.precompute(m.Dim)
	}
}

func (m *GMMModel) maxComponents() int {
	k := 0
	for _, st := range m.States {
		k = max(k, len(st.Components))
	}
	return k
}

// Validate checks that every component matches the model dimension and has
// positive variances.
func (m *GMMModel) Validate() error {
	if m.Dim <= 0 {
		return errors.Errorf("gmm: invalid dimension %d", m.Dim)
	}
	for s, st := range m.States {
		if st == nil || len(st.Components) == 0 {
			return errors.Errorf("gmm: state %d has no components", s)
		}
		for c, comp := range st.Components {
			if len(comp.Mean) != m.Dim || len(comp.Variance) != m.Dim {
				return errors.Errorf("gmm: state %d component %d has wrong dimension", s, c)
			}
			for _, v := range comp.Variance {
				if !(v > 0) {
					return errors.Errorf("gmm: state %d component %d has non-positive variance", s, c)
				}
			}
		}
	}
	return nil
}

// gmmBatchSize is the number of frames scored per state on a cache miss.
const gmmBatchSize = 16

// GMMScorer scores frames with a GMMModel, caching every (frame, state) score
// of the current utterance.
type GMMScorer struct {
	model  *GMMModel
	frames [][]float32
	cache  [][]float32 // [T][S], NaN = not computed

	// batch workspace
	x, xsq, term1, term2, lp []float32
}

// NewGMMScorer creates a scorer backed by m.
func NewGMMScorer(m *GMMModel) *GMMScorer {
	return &GMMScorer{model: m}
}

// SetFrames resets the score cache for a new utterance. Every frame must have
// exactly Dim values.
func (g *GMMScorer) SetFrames(frames [][]float32) error {
	g.frames, g.cache = nil, nil
	if err := checkFrames(frames, g.model.Dim); err != nil {
		return err
	}
	g.frames = frames
	g.cache = mathutil.NewMatFill(len(frames), len(g.model.States), float32(math.NaN()))
	return nil
}

// StateCount returns the number of mixtures.
func (g *GMMScorer) StateCount() int { return len(g.model.States) }

// Score returns log P(frame t | state s), computing a batch of frames on a miss.
func (g *GMMScorer) Score(t, s int) float32 {
	checkRange(t, len(g.frames), s, len(g.model.States))
	if v := g.cache[t][s]; !math.IsNaN(float64(v)) {
		return v
	}
	bs := min(t+gmmBatchSize, len(g.frames)) - t
	g.scoreBatch(s, t, bs)
	return g.cache[t][s]
}

// scoreBatch fills cache[t0:t0+n][s] using
//
//	maha = sum(x^2*invVar) - 2*sum(x*mean*invVar) + sum(mean^2*invVar)
//	lp[t,k] = -0.5*(X^2 @ invVar^T) + X @ (mean*invVar)^T + bias[k]
func (g *GMMScorer) scoreBatch(s, t0, n int) {
	st := g.model.States[s]
	D := g.model.Dim
	K := len(st.Components)
	g.ensureWorkspace(n, D, g.model.maxComponents())

	x := g.x[:n*D]
	xsq := g.xsq[:n*D]
	for f := 0; f < n; f++ {
		copy(x[f*D:(f+1)*D], g.frames[t0+f])
	}
	for i, v := range x {
		xsq[i] = v * v
	}
	term1 := g.term1[:n*K]
	term2 := g.term2[:n*K]
	blas.Sgemm(false, true, n, K, D, 1.0, xsq, D, st.invVar, D, 0.0, term1, K)
	blas.Sgemm(false, true, n, K, D, 1.0, x, D, st.meanInvVar, D, 0.0, term2, K)

	for f := 0; f < n; f++ {
		row := g.lp[:K]
		for c := 0; c < K; c++ {
			row[c] = -0.5*term1[f*K+c] + term2[f*K+c] + st.bias[c]
		}
		g.cache[t0+f][s] = mathutil.LogSumExp(row)
	}
}

func (g *GMMScorer) ensureWorkspace(n, D, K int) {
	grow := func(buf []float32, size int) []float32 {
		if cap(buf) < size {
			return make([]float32, size)
		}
		return buf[:size]
	}
	g.x = grow(g.x, n*D)
	g.xsq = grow(g.xsq, n*D)
	g.term1 = grow(g.term1, n*K)
	g.term2 = grow(g.term2, n*K)
	g.lp = grow(g.lp, K)
}

// serializable types for gob encoding
type serializedGMM struct {
	Dim    int
	States [][]serializedGaussian
}

type serializedGaussian struct {
	Mean      []float32
	Variance  []float32
	LogWeight float32
}

// Save serializes the model with gob encoding.
func (m *GMMModel) Save(w io.Writer) error {
	sm := serializedGMM{Dim: m.Dim, States: make([][]serializedGaussian, len(m.States))}
	for s, st := range m.States {
		for _, c := range st.Components {
			sm.States[s] = append(sm.States[s], serializedGaussian(c))
		}
	}
	return errors.Wrap(gob.NewEncoder(w).Encode(sm), "encode gmm")
}

// LoadGMM deserializes, validates and precomputes a model.
func LoadGMM(r io.Reader) (*GMMModel, error) {
	var sm serializedGMM
	if err := gob.NewDecoder(r).Decode(&sm); err != nil {
		return nil, errors.Wrap(err, "decode gmm")
	}
	m := &GMMModel{Dim: sm.Dim, States: make([]*StateGMM, len(sm.States))}
	for s, comps := range sm.States {
		st := &StateGMM{Components: make([]Gaussian, len(comps))}
		for c, sc := range comps {
			st.Components[c] = Gaussian(sc)
		}
		m.States[s] = st
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.Precompute()
	return m, nil
}
