package reward

import (
	"database/sql"
	"fmt"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/ledger"
	"github.com/chaosdeck/chaosdeck/internal/types"
)

// ErrDailyClaimed is returned when today's reward was already taken.
var ErrDailyClaimed = fmt.Errorf("%w: daily reward already claimed", fault.Precondition)

const (
	dailyBasePoints     = 100
	dailyStreakBonusCap = 500
	dailyDateLayout     = "2006-01-02"
)

// ClaimDaily grants the once-per-UTC-day reward. Claiming on consecutive days
// extends the streak; a missed day resets it to 1. Streak milestones add a
// card: Rare at 7 days, Legendary at 30.
func (d *Dispatcher) ClaimDaily(userID, theme string) (types.GrantResult, error) {
	var result types.GrantResult
	err := d.store.WithUser(userID, func(tx *sql.Tx) error {
		user, err := ledger.GetOrCreateUserTx(tx, userID)
		if err != nil {
			return err
		}

		now := d.now().UTC()
		today := now.Format(dailyDateLayout)
		if user.LastDaily == today {
			return ErrDailyClaimed
		}

		streak := 1
		yesterday := now.AddDate(0, 0, -1).Format(dailyDateLayout)
		if user.LastDaily == yesterday {
			streak = user.Streak + 1
		}

		bonus := streak * 25
		if bonus > dailyStreakBonusCap {
			bonus = dailyStreakBonusCap
		}
		points := dailyBasePoints + bonus

		if err := ledger.RecordDailyClaimTx(tx, userID, today, streak); err != nil {
			return err
		}
		if _, err := ledger.AddPointsTx(tx, userID, points); err != nil {
			return err
		}

		result = types.GrantResult{UserID: userID}
		switch streak {
		case 7:
			card, err := d.mintCardTx(tx, userID, types.RarityRare, theme, types.ProvenanceDrawn)
			if err != nil {
				return err
			}
			result.Cards = append(result.Cards, card)
		case 30:
			card, err := d.mintCardTx(tx, userID, types.RarityLegendary, theme, types.ProvenanceDrawn)
			if err != nil {
				return err
			}
			result.Cards = append(result.Cards, card)
		}

		result, err = d.finishTx(tx, userID, result)
		return err
	})
	if err != nil {
		return types.GrantResult{}, err
	}
	return result, nil
}
