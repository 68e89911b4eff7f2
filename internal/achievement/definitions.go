// Package achievement evaluates the static badge predicate set against a
// user's ledger state and grants anything newly satisfied. One pass per
// mutation: badge rewards applied during a pass never trigger re-evaluation
// within the same pass, so a badge can never cascade into another badge.
package achievement

// Requirement selects which ledger figure a definition checks.
type Requirement string

const (
	ReqCards     Requirement = "cards"     // un-consumed owned cards
	ReqLegendary Requirement = "legendary" // un-consumed Legendary cards
	ReqDraws     Requirement = "draws"     // lifetime draw count
	ReqStreak    Requirement = "streak"    // current daily streak
	ReqCampaigns Requirement = "campaigns" // completed campaigns
	ReqFusions   Requirement = "fusions"   // lifetime successful fusions
	ReqDailies   Requirement = "dailies"   // lifetime daily claims
)

// Definition is one static badge. Points may be zero (pure badges).
type Definition struct {
	ID          string
	Name        string
	Requirement Requirement
	Value       int
	Points      int
}

// Definitions is the static catalog, read-only at runtime.
var Definitions = []Definition{
	{ID: "first_pull", Name: "First Pull", Requirement: ReqCards, Value: 1, Points: 50},
	{ID: "card_collector", Name: "Card Collector", Requirement: ReqCards, Value: 25, Points: 200},
	{ID: "legendary_hunter", Name: "Legendary Hunter", Requirement: ReqLegendary, Value: 5, Points: 500},
	{ID: "streak_master", Name: "Streak Master", Requirement: ReqStreak, Value: 7, Points: 300},
	{ID: "campaign_veteran", Name: "Campaign Veteran", Requirement: ReqCampaigns, Value: 3, Points: 400},
	{ID: "fusion_expert", Name: "Fusion Expert", Requirement: ReqFusions, Value: 5, Points: 600},
	{ID: "chaos_puller", Name: "Chaos Puller", Requirement: ReqCards, Value: 100, Points: 1000},
	{ID: "daily_warrior", Name: "Daily Warrior", Requirement: ReqDailies, Value: 30, Points: 800},

	// Pure badges, no point reward.
	{ID: "pull_master", Name: "Pull Master", Requirement: ReqDraws, Value: 50},
	{ID: "campaign_conqueror", Name: "Campaign Conqueror", Requirement: ReqCampaigns, Value: 1},
}
