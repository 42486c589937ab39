package decoder

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds beam search parameters.
type Config struct {
	MaxActive     int     `yaml:"max_active"`     // hard cap on hypotheses kept per frame
	BeamWidth     float32 `yaml:"beam_width"`     // additive cost beam
	AcousticScale float32 `yaml:"acoustic_scale"` // multiplier applied to frame scores
	MaxBranch     int     `yaml:"max_branch"`     // hypotheses kept per merge point (>= 1)
}

// DefaultConfig returns the decoder defaults.
func DefaultConfig() Config {
	return Config{
		MaxActive:     10000,
		BeamWidth:     250.0,
		AcousticScale: 0.2,
		MaxBranch:     10,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.MaxActive < 1:
		return errors.Wrapf(ErrConfig, "max_active must be >= 1, got %d", c.MaxActive)
	case c.MaxBranch < 1:
		return errors.Wrapf(ErrConfig, "max_branch must be >= 1, got %d", c.MaxBranch)
	case math.IsNaN(float64(c.BeamWidth)) || c.BeamWidth < 0:
		return errors.Wrapf(ErrConfig, "beam_width must be >= 0, got %v", c.BeamWidth)
	case math.IsNaN(float64(c.AcousticScale)) || math.IsInf(float64(c.AcousticScale), 0):
		return errors.Wrapf(ErrConfig, "acoustic_scale must be finite, got %v", c.AcousticScale)
	}
	return nil
}

// LoadConfig reads a YAML document over DefaultConfig. Unknown keys are errors.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "decode decoder config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
