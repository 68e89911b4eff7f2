package gacha

import (
	"fmt"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/types"
)

// ErrInvalidMode is returned when the requested mode has no weight table.
var ErrInvalidMode = fmt.Errorf("%w: unknown draw mode", fault.Validation)

var drawOrder = []types.Rarity{
	types.RarityCommon,
	types.RarityRare,
	types.RarityEpic,
	types.RarityLegendary,
}

// Outcome is the result of one draw. The engine is pure: persisting the card
// and the new pity counter is the caller's job.
type Outcome struct {
	Rarity  types.Rarity
	Name    string
	Power   int
	NewPity int
	Forced  bool // true when the hard pity forced Legendary
}

// Engine produces draw outcomes from the configured weight tables, the pity
// ramp and an injectable random source.
type Engine struct {
	cfg Config
	rng RandomSource
}

// NewEngine builds an engine. A nil rng falls back to the crypto source.
func NewEngine(cfg Config, rng RandomSource) *Engine {
	if rng == nil {
		rng = DefaultRNG()
	}
	return &Engine{cfg: cfg, rng: rng}
}

// Threshold exposes the hard-pity threshold for callers that report it.
func (e *Engine) Threshold() int {
	return e.cfg.Pity.Threshold
}

// Draw performs one draw at the given pity count. On a non-Legendary result
// the new pity is pity+1; Legendary resets it to 0.
func (e *Engine) Draw(mode, theme string, pity int) (Outcome, error) {
	table, ok := e.cfg.Modes[mode]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	var rarity types.Rarity
	forced := false
	if pity >= e.cfg.Pity.Threshold {
		// Hard pity short-circuits the sampler entirely.
		rarity = types.RarityLegendary
		forced = true
	} else {
		rarity = e.sample(table, pity)
	}

	newPity := pity + 1
	if rarity == types.RarityLegendary {
		newPity = 0
	}

	return Outcome{
		Rarity:  rarity,
		Name:    e.cardName(rarity, theme, mode),
		Power:   e.rollPower(rarity),
		NewPity: newPity,
		Forced:  forced,
	}, nil
}

// sample draws a rarity from the effective weighted distribution. Past the
// soft-start count the Legendary weight is rescaled so its probability ramps
// linearly toward 1 at the hard threshold; the other rarities keep their
// relative proportions.
func (e *Engine) sample(table WeightTable, pity int) types.Rarity {
	weights := make([]float64, len(drawOrder))
	var total float64
	for i, r := range drawOrder {
		weights[i] = table.weightFor(r)
		total += weights[i]
	}

	if ramp := e.legendaryRamp(pity); ramp > 0 {
		base := weights[len(weights)-1]
		rest := total - base
		pBase := base / total
		pEff := pBase + (1-pBase)*ramp
		if pEff >= 1 {
			return types.RarityLegendary
		}
		weights[len(weights)-1] = rest * pEff / (1 - pEff)
		total = rest + weights[len(weights)-1]
	}

	// Uniform draw over the cumulative-weight ranges.
	target := e.rng.Float64() * total
	var cum float64
	for i, w := range weights {
		cum += w
		if target < cum {
			return drawOrder[i]
		}
	}
	return drawOrder[len(drawOrder)-1]
}

// legendaryRamp returns the ramp progress in [0,1): 0 below the soft start,
// approaching 1 just before the hard threshold.
func (e *Engine) legendaryRamp(pity int) float64 {
	start := e.cfg.Pity.SoftStart
	end := e.cfg.Pity.Threshold
	if pity < start || end <= start {
		return 0
	}
	return float64(pity-start) / float64(end-start)
}

// Mint produces a card of a fixed rarity without sampling or touching pity.
// Used for direct-card grants (purchases, daily milestones).
func (e *Engine) Mint(rarity types.Rarity, theme string) Outcome {
	return Outcome{
		Rarity: rarity,
		Name:   e.cardName(rarity, theme, "direct"),
		Power:  e.rollPower(rarity),
	}
}

func (e *Engine) rollPower(rarity types.Rarity) int {
	base := 10 + e.rng.IntN(91) // 10..100
	switch rarity {
	case types.RarityLegendary:
		return base * 4
	case types.RarityEpic:
		return base * 2
	default:
		return base
	}
}
