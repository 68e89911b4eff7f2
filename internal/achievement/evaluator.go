package achievement

import (
	"database/sql"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/ledger"
	"github.com/chaosdeck/chaosdeck/internal/shared/logger"
	"github.com/chaosdeck/chaosdeck/internal/types"
	"go.uber.org/zap"
)

// Result is one evaluation pass's output.
type Result struct {
	Granted       []types.BadgeGrant
	PointsAwarded int
}

// Evaluator runs the predicate set inside an existing ledger transaction.
type Evaluator struct {
	now func() time.Time
}

// NewEvaluator builds an evaluator using wall-clock time.
func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now}
}

// EvaluateTx checks every definition against the user's current state and
// grants the satisfied ones that are missing. Point rewards are applied
// directly inside the same transaction; the figures a predicate reads were
// snapshotted before any grant, so a badge's own points cannot satisfy a
// later predicate in the same pass. Repeated calls with unchanged state grant
// nothing: the (user, badge) uniqueness insert is the idempotency gate.
func (e *Evaluator) EvaluateTx(tx *sql.Tx, userID string) (Result, error) {
	user, err := ledger.GetOrCreateUserTx(tx, userID)
	if err != nil {
		return Result{}, err
	}

	cards, err := ledger.CountCardsTx(tx, userID, "")
	if err != nil {
		return Result{}, err
	}
	legendary, err := ledger.CountCardsTx(tx, userID, types.RarityLegendary)
	if err != nil {
		return Result{}, err
	}
	campaigns, err := ledger.CountCompletedCampaignsTx(tx, userID)
	if err != nil {
		return Result{}, err
	}

	figures := map[Requirement]int{
		ReqCards:     cards,
		ReqLegendary: legendary,
		ReqDraws:     user.DrawCount,
		ReqStreak:    user.Streak,
		ReqCampaigns: campaigns,
		ReqFusions:   user.FusionCount,
		ReqDailies:   user.DailyCount,
	}

	var result Result
	grantedAt := e.now().UTC()
	for _, def := range Definitions {
		if figures[def.Requirement] < def.Value {
			continue
		}

		inserted, err := ledger.GrantBadgeTx(tx, userID, def.ID, grantedAt)
		if err != nil {
			return Result{}, err
		}
		if !inserted {
			continue
		}

		if def.Points > 0 {
			if _, err := ledger.AddPointsTx(tx, userID, def.Points); err != nil {
				return Result{}, err
			}
			result.PointsAwarded += def.Points
		}
		result.Granted = append(result.Granted, types.BadgeGrant{
			UserID:    userID,
			BadgeID:   def.ID,
			GrantedAt: grantedAt,
		})
		logger.Info("Badge granted",
			zap.String("user_id", userID),
			zap.String("badge_id", def.ID),
			zap.Int("points", def.Points))
	}

	return result, nil
}
