package feature

// Config selects the transforms applied to every utterance, in field order.
type Config struct {
	UseCMN        bool // cepstral mean normalization
	UseCVN        bool // variance normalization, after CMN
	UseDelta      bool
	UseDeltaDelta bool // requires UseDelta
	DeltaWindow   int  // regression half-width, 2 when zero
}

// Enabled reports whether Apply changes anything.
func (c Config) Enabled() bool {
	return c.UseCMN || c.UseCVN || c.UseDelta
}

// OutputDim returns the frame width produced from in-dimensional input.
func (c Config) OutputDim(in int) int {
	switch {
	case c.UseDelta && c.UseDeltaDelta:
		return 3 * in
	case c.UseDelta:
		return 2 * in
	}
	return in
}

// Apply runs the configured transforms. Normalization is done in place; the
// returned matrix holds the delta columns when they are enabled.
func (c Config) Apply(features [][]float32) [][]float32 {
	if len(features) == 0 {
		return features
	}
	if c.UseCMN {
		ApplyCMN(features)
	}
	if c.UseCVN {
		ApplyCVN(features)
	}
	win := c.DeltaWindow
	if win <= 0 {
		win = 2
	}
	if c.UseDelta && c.UseDeltaDelta {
		return AppendDeltas(features, win)
	}
	if c.UseDelta {
		d1 := Delta(features, win)
		out := make([][]float32, len(features))
		for t := range features {
			out[t] = append(append(make([]float32, 0, 2*len(d1[t])), features[t]...), d1[t]...)
		}
		return out
	}
	return features
}
