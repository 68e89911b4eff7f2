package gacha

import (
	"fmt"
	"os"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/types"
	"gopkg.in/yaml.v3"
)

// WeightTable holds the base rarity weights for one draw mode. Weights are
// relative, not percentages; they only need to be positive.
type WeightTable struct {
	Common    int `yaml:"common"`
	Rare      int `yaml:"rare"`
	Epic      int `yaml:"epic"`
	Legendary int `yaml:"legendary"`
}

func (t WeightTable) valid() bool {
	return t.Common > 0 && t.Rare > 0 && t.Epic > 0 && t.Legendary > 0
}

// PityConfig controls the guaranteed-Legendary ramp.
type PityConfig struct {
	// Threshold is the hard pity: at this count the draw is forced Legendary.
	Threshold int `yaml:"threshold"`
	// SoftStart is the count where the Legendary probability begins ramping
	// linearly toward the guarantee. Must be < Threshold.
	SoftStart int `yaml:"soft_start"`
}

// Config is the full draw-engine configuration.
type Config struct {
	Modes map[string]WeightTable `yaml:"modes"`
	Pity  PityConfig             `yaml:"pity"`
}

// DefaultConfig returns the built-in tables: the standard mode and the event
// mode with boosted Legendary odds, hard pity at 50 with the ramp from 40.
func DefaultConfig() Config {
	return Config{
		Modes: map[string]WeightTable{
			"standard": {Common: 40, Rare: 30, Epic: 20, Legendary: 10},
			"event":    {Common: 35, Rare: 30, Epic: 20, Legendary: 15},
		},
		Pity: PityConfig{Threshold: 50, SoftStart: 40},
	}
}

// LoadConfig reads a YAML config file, falling back to defaults for anything
// the file leaves out. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read draw config: %w", err)
	}

	var overlay Config
	if err := yaml.Unmarshal(b, &overlay); err != nil {
		return Config{}, fmt.Errorf("parse draw config: %w", err)
	}

	for mode, table := range overlay.Modes {
		if !table.valid() {
			return Config{}, fmt.Errorf("%w: non-positive weight in mode %q", fault.Validation, mode)
		}
		cfg.Modes[mode] = table
	}
	if overlay.Pity.Threshold > 0 {
		cfg.Pity.Threshold = overlay.Pity.Threshold
	}
	if overlay.Pity.SoftStart > 0 {
		cfg.Pity.SoftStart = overlay.Pity.SoftStart
	}
	if cfg.Pity.SoftStart >= cfg.Pity.Threshold {
		return Config{}, fmt.Errorf("%w: pity soft_start %d must be below threshold %d", fault.Validation, cfg.Pity.SoftStart, cfg.Pity.Threshold)
	}
	return cfg, nil
}

func (t WeightTable) weightFor(r types.Rarity) float64 {
	switch r {
	case types.RarityCommon:
		return float64(t.Common)
	case types.RarityRare:
		return float64(t.Rare)
	case types.RarityEpic:
		return float64(t.Epic)
	case types.RarityLegendary:
		return float64(t.Legendary)
	}
	return 0
}
