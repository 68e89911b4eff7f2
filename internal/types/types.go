package types

import "time"

// Rarity is the ordered card rarity tier.
type Rarity string

const (
	RarityCommon    Rarity = "Common"
	RarityRare      Rarity = "Rare"
	RarityEpic      Rarity = "Epic"
	RarityLegendary Rarity = "Legendary"
)

var rarityTiers = map[Rarity]int{
	RarityCommon:    0,
	RarityRare:      1,
	RarityEpic:      2,
	RarityLegendary: 3,
}

// Tier returns the ordinal position of the rarity (Common=0 .. Legendary=3),
// or -1 for an unknown value.
func (r Rarity) Tier() int {
	tier, ok := rarityTiers[r]
	if !ok {
		return -1
	}
	return tier
}

// Valid reports whether r is one of the four known rarities.
func (r Rarity) Valid() bool {
	_, ok := rarityTiers[r]
	return ok
}

// NextTier returns the rarity one tier above r, capped at Legendary.
func (r Rarity) NextTier() Rarity {
	switch r {
	case RarityCommon:
		return RarityRare
	case RarityRare:
		return RarityEpic
	default:
		return RarityLegendary
	}
}

// Provenance records how a card entered the ledger.
type Provenance string

const (
	ProvenanceDrawn     Provenance = "drawn"
	ProvenanceFused     Provenance = "fused"
	ProvenancePurchased Provenance = "purchased"
)

// Card is an owned card. Immutable after creation except for the consumed
// flag, which flips exactly once when the card is spent as fusion input.
type Card struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Rarity    Rarity     `json:"rarity"`
	Theme     string     `json:"theme"`
	Name      string     `json:"name"`
	Power     int        `json:"power"`
	Origin    Provenance `json:"origin"`
	ImageURL  string     `json:"image_url,omitempty"`
	Consumed  bool       `json:"consumed"`
	CreatedAt time.Time  `json:"created_at"`
}

// PointsPerLevel converts accumulated points into a level.
const PointsPerLevel = 500

// User is one ledger row. Level is derived from points, never stored.
type User struct {
	ID          string    `json:"id"`
	Points      int       `json:"points"`
	LastDaily   string    `json:"last_daily,omitempty"` // UTC date, YYYY-MM-DD
	Streak      int       `json:"streak"`
	DailyCount  int       `json:"daily_count"`
	PityCount   int       `json:"pity_count"`
	FusionCount int       `json:"fusion_count"`
	DrawCount   int       `json:"draw_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Level derives the user's level from points.
func (u User) Level() int {
	return u.Points / PointsPerLevel
}

// CampaignStatus tracks a campaign's lifecycle.
type CampaignStatus string

const (
	CampaignActive    CampaignStatus = "active"
	CampaignCompleted CampaignStatus = "completed"
	CampaignAbandoned CampaignStatus = "abandoned"
)

// Campaign is one user's progress through a themed campaign.
type Campaign struct {
	ID      string         `json:"id"`
	UserID  string         `json:"user_id"`
	Theme   string         `json:"theme"`
	Step    int            `json:"step"`
	Choices []string       `json:"choices"`
	Status  CampaignStatus `json:"status"`
}

// BadgeGrant records that a user holds a badge. At most one per (user, badge).
type BadgeGrant struct {
	UserID    string    `json:"user_id"`
	BadgeID   string    `json:"badge_id"`
	GrantedAt time.Time `json:"granted_at"`
}

// CheckoutStatus is the checkout record state machine. pending transitions to
// fulfilled or failed exactly once and never reverts.
type CheckoutStatus string

const (
	CheckoutPending   CheckoutStatus = "pending"
	CheckoutFulfilled CheckoutStatus = "fulfilled"
	CheckoutFailed    CheckoutStatus = "failed"
)

// Checkout links a provider reference to a purchase awaiting confirmation.
type Checkout struct {
	Reference string         `json:"reference"`
	UserID    string         `json:"user_id"`
	ItemID    string         `json:"item_id"`
	Status    CheckoutStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ProcessedEvent is the idempotency marker for one provider event id.
// Its existence makes every later delivery of the same event a no-op.
type ProcessedEvent struct {
	EventID     string    `json:"event_id"`
	Outcome     string    `json:"outcome"`
	ProcessedAt time.Time `json:"processed_at"`
}

// DrawsReward grants N draws of a mode/theme.
type DrawsReward struct {
	Count int    `json:"count"`
	Mode  string `json:"mode"`
	Theme string `json:"theme"`
}

// DirectCardsReward grants N cards of a fixed rarity without drawing.
type DirectCardsReward struct {
	Count  int    `json:"count"`
	Rarity Rarity `json:"rarity"`
	Theme  string `json:"theme"`
}

// RewardSpec is an abstract grant, independent of its trigger. Any non-zero
// part applies; all parts of one spec land atomically.
type RewardSpec struct {
	Draws         *DrawsReward       `json:"draws,omitempty" yaml:"draws,omitempty"`
	DirectCards   *DirectCardsReward `json:"direct_cards,omitempty" yaml:"direct_cards,omitempty"`
	PityDelta     int                `json:"pity_delta,omitempty" yaml:"pity_delta,omitempty"`
	CooldownReset string             `json:"cooldown_reset,omitempty" yaml:"cooldown_reset,omitempty"`
	Points        int                `json:"points,omitempty" yaml:"points,omitempty"`
	BadgeID       string             `json:"badge_id,omitempty" yaml:"badge_id,omitempty"`
}

// Zero reports whether the spec grants nothing.
func (r RewardSpec) Zero() bool {
	return r.Draws == nil && r.DirectCards == nil && r.PityDelta == 0 &&
		r.CooldownReset == "" && r.Points == 0 && r.BadgeID == ""
}

// GrantResult summarizes an applied grant for the notification layer.
type GrantResult struct {
	UserID        string   `json:"user_id"`
	Cards         []Card   `json:"cards,omitempty"`
	PointsTotal   int      `json:"points_total"`
	Level         int      `json:"level"`
	PityCount     int      `json:"pity_count"`
	BadgesGranted []string `json:"badges_granted,omitempty"`
}
