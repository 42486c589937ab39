package decoder

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader("beam_width: 15\nmax_active: 8000\n"))
	require.NoError(t, err)
	assert.Equal(t, Config{MaxActive: 8000, BeamWidth: 15, AcousticScale: 0.2, MaxBranch: 10}, cfg)

	cfg, err = LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(strings.NewReader("beam: 15\n"))
	assert.Error(t, err)

	_, err = LoadConfig(strings.NewReader("max_branch: 0\n"))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.MaxActive = 0 },
		func(c *Config) { c.MaxBranch = 0 },
		func(c *Config) { c.BeamWidth = -1 },
		func(c *Config) { c.BeamWidth = float32(math.NaN()) },
		func(c *Config) { c.AcousticScale = float32(math.Inf(1)) },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrConfig, "case %d", i)
	}
}
