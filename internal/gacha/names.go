package gacha

import (
	"strings"

	"github.com/chaosdeck/chaosdeck/internal/types"
)

// Flavor pools per rarity. The archetype is picked deterministically from
// (rarity, theme, mode); the epithet is the randomized flavor.
var rarityEpithets = map[types.Rarity][]string{
	types.RarityCommon:    {"Wandering", "Rusty", "Humble", "Stray", "Patchwork"},
	types.RarityRare:      {"Gleaming", "Swift", "Cunning", "Tempered", "Vigilant"},
	types.RarityEpic:      {"Stormforged", "Arcane", "Relentless", "Spectral", "Voltaic"},
	types.RarityLegendary: {"Eternal", "Worldbreaker", "Celestial", "Primordial", "Apex"},
}

var archetypes = []string{
	"Sentinel", "Duelist", "Warden", "Trickster", "Colossus",
	"Oracle", "Reaver", "Harbinger", "Champion", "Revenant",
}

// cardName builds "Epithet Archetype of Theme". The archetype index is a
// stable hash of (rarity, theme, mode) so the same combination always yields
// the same archetype; only the epithet varies per draw.
func (e *Engine) cardName(rarity types.Rarity, theme, mode string) string {
	epithets := rarityEpithets[rarity]
	epithet := epithets[e.rng.IntN(len(epithets))]
	archetype := archetypes[stableIndex(string(rarity)+"|"+theme+"|"+mode, len(archetypes))]

	if theme == "" {
		return epithet + " " + archetype
	}
	return epithet + " " + archetype + " of " + titleCase(theme)
}

func stableIndex(s string, n int) int {
	// FNV-1a, inlined; good enough for a flavor pick.
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return int(h % uint32(n))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
