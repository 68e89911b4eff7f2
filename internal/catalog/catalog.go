// Package catalog maps purchasable item ids to prices and reward specs.
// The catalog is read once at process start and immutable afterwards.
package catalog

import (
	"fmt"
	"os"
	"sort"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/types"
	"gopkg.in/yaml.v3"
)

// ErrUnknownItem is returned for an item id the catalog does not carry.
var ErrUnknownItem = fmt.Errorf("%w: unknown catalog item", fault.Validation)

// Item is one purchasable SKU. Prices are minor units (cents).
type Item struct {
	ID         string           `yaml:"id"`
	Name       string           `yaml:"name"`
	PriceCents int              `yaml:"price_cents"`
	Currency   string           `yaml:"currency"`
	Reward     types.RewardSpec `yaml:"reward"`
}

// Catalog is the immutable item set.
type Catalog struct {
	items map[string]Item
}

// Default returns the built-in store catalog.
func Default() *Catalog {
	items := []Item{
		{ID: "booster", Name: "Epic Booster Pack", PriceCents: 200, Currency: "usd",
			Reward: types.RewardSpec{Draws: &types.DrawsReward{Count: 5, Mode: "standard"}}},
		{ID: "legendary", Name: "Legendary Pack", PriceCents: 500, Currency: "usd",
			Reward: types.RewardSpec{DirectCards: &types.DirectCardsReward{Count: 3, Rarity: types.RarityLegendary}}},
		{ID: "event_booster", Name: "Event Booster", PriceCents: 100, Currency: "usd",
			Reward: types.RewardSpec{Draws: &types.DrawsReward{Count: 5, Mode: "event"}}},
		{ID: "streak_saver", Name: "Streak Saver", PriceCents: 50, Currency: "usd",
			Reward: types.RewardSpec{CooldownReset: "daily"}},
		{ID: "pity_booster", Name: "Pity Booster", PriceCents: 100, Currency: "usd",
			Reward: types.RewardSpec{PityDelta: -10}},
		{ID: "achievement_booster", Name: "Achievement Booster", PriceCents: 50, Currency: "usd",
			Reward: types.RewardSpec{Points: 250}},
		{ID: "fusion_crystal", Name: "Fusion Crystal", PriceCents: 100, Currency: "usd",
			Reward: types.RewardSpec{DirectCards: &types.DirectCardsReward{Count: 1, Rarity: types.RarityEpic, Theme: "fusion"}}},
		{ID: "quest", Name: "Custom Quest", PriceCents: 500, Currency: "usd",
			Reward: types.RewardSpec{Points: 400, BadgeID: "quest_patron"}},
		{ID: "premium", Name: "Premium Pass", PriceCents: 1000, Currency: "usd",
			Reward: types.RewardSpec{Points: 1000}},
	}

	c := &Catalog{items: make(map[string]Item, len(items))}
	for _, item := range items {
		c.items[item.ID] = item
	}
	return c
}

// Load reads a YAML catalog file. A missing file falls back to the built-in
// catalog; a present but invalid file is an error, never a silent fallback.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var file struct {
		Items []Item `yaml:"items"`
	}
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(file.Items) == 0 {
		return nil, fmt.Errorf("%w: catalog file has no items", fault.Validation)
	}

	c := &Catalog{items: make(map[string]Item, len(file.Items))}
	for _, item := range file.Items {
		if item.ID == "" || item.PriceCents <= 0 {
			return nil, fmt.Errorf("%w: catalog item %q needs an id and a positive price", fault.Validation, item.ID)
		}
		if item.Reward.Zero() {
			return nil, fmt.Errorf("%w: catalog item %q grants nothing", fault.Validation, item.ID)
		}
		c.items[item.ID] = item
	}
	return c, nil
}

// Item looks up one SKU.
func (c *Catalog) Item(id string) (Item, bool) {
	item, ok := c.items[id]
	return item, ok
}

// Items returns all SKUs sorted by id.
func (c *Catalog) Items() []Item {
	out := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
