// Package fusion consumes two owned cards and atomically produces one
// upgraded card. The consume step is compare-and-swap: a concurrent fusion
// spending the same card makes this one fail loudly instead of
// double-spending.
package fusion

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/achievement"
	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/gacha"
	"github.com/chaosdeck/chaosdeck/internal/ledger"
	"github.com/chaosdeck/chaosdeck/internal/shared/logger"
	"github.com/chaosdeck/chaosdeck/internal/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

var (
	// ErrNotOwned is returned when either input does not belong to the user.
	ErrNotOwned = fmt.Errorf("%w: card not owned", fault.Precondition)

	// ErrAlreadyConsumed is returned when either input was already spent.
	ErrAlreadyConsumed = fmt.Errorf("%w: card already consumed", fault.Precondition)

	// ErrIncompatible is returned on a fusion rule mismatch.
	ErrIncompatible = fmt.Errorf("%w: cards are not compatible", fault.Precondition)
)

// Result is one successful fusion.
type Result struct {
	Card          types.Card `json:"card"`
	BadgesGranted []string   `json:"badges_granted,omitempty"`
}

// Engine performs fusions against the ledger.
type Engine struct {
	store     *ledger.Store
	gacha     *gacha.Engine
	evaluator *achievement.Evaluator
	newID     func() (string, error)
	now       func() time.Time
}

// NewEngine wires the fusion engine.
func NewEngine(store *ledger.Store, gachaEngine *gacha.Engine, evaluator *achievement.Evaluator) *Engine {
	return &Engine{
		store:     store,
		gacha:     gachaEngine,
		evaluator: evaluator,
		newID:     func() (string, error) { return gonanoid.New() },
		now:       time.Now,
	}
}

// Fuse consumes cardA and cardB and creates the upgraded output, all in one
// transaction. The output is one rarity tier above the inputs (capped at
// Legendary) and always stronger than the stronger input, so fusing is
// strictly better than holding duplicates.
func (e *Engine) Fuse(userID, cardAID, cardBID string) (Result, error) {
	if cardAID == cardBID {
		return Result{}, fmt.Errorf("%w: cannot fuse a card with itself", ErrIncompatible)
	}

	var result Result
	err := e.store.WithUser(userID, func(tx *sql.Tx) error {
		cardA, err := e.loadOwnedTx(tx, userID, cardAID)
		if err != nil {
			return err
		}
		cardB, err := e.loadOwnedTx(tx, userID, cardBID)
		if err != nil {
			return err
		}

		if cardA.Rarity.Tier() != cardB.Rarity.Tier() {
			return fmt.Errorf("%w: %s cannot fuse with %s", ErrIncompatible, cardA.Rarity, cardB.Rarity)
		}

		for _, id := range []string{cardAID, cardBID} {
			consumed, err := ledger.ConsumeCardTx(tx, id)
			if err != nil {
				return err
			}
			if !consumed {
				return fmt.Errorf("%w: %s", ErrAlreadyConsumed, id)
			}
		}

		outRarity := cardA.Rarity.NextTier()
		outcome := e.gacha.Mint(outRarity, "fusion")

		id, err := e.newID()
		if err != nil {
			return fmt.Errorf("%w: generate card id: %w", fault.Store, err)
		}
		fused := types.Card{
			ID:        id,
			UserID:    userID,
			Rarity:    outRarity,
			Theme:     "fusion",
			Name:      outcome.Name,
			Power:     fusedPower(cardA.Power, cardB.Power, outRarity),
			Origin:    types.ProvenanceFused,
			CreatedAt: e.now().UTC(),
		}
		if err := ledger.InsertCardTx(tx, fused); err != nil {
			return err
		}
		if err := ledger.IncrementFusionCountTx(tx, userID); err != nil {
			return err
		}

		pass, err := e.evaluator.EvaluateTx(tx, userID)
		if err != nil {
			return err
		}
		result = Result{Card: fused}
		for _, g := range pass.Granted {
			result.BadgesGranted = append(result.BadgesGranted, g.BadgeID)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	logger.Info("Fusion completed",
		zap.String("user_id", userID),
		zap.String("card_id", result.Card.ID),
		zap.String("rarity", string(result.Card.Rarity)),
		zap.Int("power", result.Card.Power))
	return result, nil
}

func (e *Engine) loadOwnedTx(tx *sql.Tx, userID, cardID string) (types.Card, error) {
	card, err := ledger.GetCardTx(tx, cardID)
	if err == ledger.ErrNotFound {
		return types.Card{}, fmt.Errorf("%w: %s", ErrNotOwned, cardID)
	}
	if err != nil {
		return types.Card{}, err
	}
	if card.UserID != userID {
		return types.Card{}, fmt.Errorf("%w: %s", ErrNotOwned, cardID)
	}
	if card.Consumed {
		return types.Card{}, fmt.Errorf("%w: %s", ErrAlreadyConsumed, cardID)
	}
	return card, nil
}

// fusedPower escalates instead of averaging: the output strictly beats the
// stronger input.
func fusedPower(a, b int, rarity types.Rarity) int {
	hi, lo := a, b
	if b > a {
		hi, lo = b, a
	}
	return hi + (lo+1)/2 + 10*(rarity.Tier()+1)
}
