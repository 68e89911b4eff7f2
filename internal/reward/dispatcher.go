// Package reward translates abstract grants into ledger mutations. It is the
// single mutation entry point shared by in-game actions and payment
// fulfillment: "what does an Epic Booster actually do" is answered here and
// nowhere else.
package reward

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
	// ErrRateLimited is returned when a cooldown has not expired yet.
	ErrRateLimited = fmt.Errorf("%w: cooldown active", fault.Precondition)

	// ErrEmptyGrant is returned for a reward spec that grants nothing.
	ErrEmptyGrant = fmt.Errorf("%w: empty reward spec", fault.Validation)
)

// CooldownDraw is the named cooldown checked before interactive draws.
const CooldownDraw = "draw"

// Dispatcher applies reward specs atomically and runs the achievement pass.
type Dispatcher struct {
	store        *ledger.Store
	engine       *gacha.Engine
	evaluator    *achievement.Evaluator
	drawCooldown time.Duration
	newID        func() (string, error)
	now          func() time.Time
}

// NewDispatcher wires the dispatcher. drawCooldown throttles interactive
// draws; zero disables the throttle.
func NewDispatcher(store *ledger.Store, engine *gacha.Engine, evaluator *achievement.Evaluator, drawCooldown time.Duration) *Dispatcher {
	return &Dispatcher{
		store:        store,
		engine:       engine,
		evaluator:    evaluator,
		drawCooldown: drawCooldown,
		newID:        func() (string, error) { return gonanoid.New() },
		now:          time.Now,
	}
}

// Grant applies one reward spec as a single atomic unit and returns the
// summary. origin records how granted cards entered the ledger.
func (d *Dispatcher) Grant(userID string, spec types.RewardSpec, origin types.Provenance) (types.GrantResult, error) {
	var result types.GrantResult
	err := d.store.WithUser(userID, func(tx *sql.Tx) error {
		var err error
		result, err = d.GrantTx(tx, userID, spec, origin)
		return err
	})
	if err != nil {
		return types.GrantResult{}, err
	}
	return result, nil
}

// GrantTx is Grant inside an existing per-user transaction. The payment
// processor uses it to make the reward, the checkout transition and the
// processed-event marker one logical unit.
func (d *Dispatcher) GrantTx(tx *sql.Tx, userID string, spec types.RewardSpec, origin types.Provenance) (types.GrantResult, error) {
	if spec.Zero() {
		return types.GrantResult{}, ErrEmptyGrant
	}

	user, err := ledger.GetOrCreateUserTx(tx, userID)
	if err != nil {
		return types.GrantResult{}, err
	}

	result := types.GrantResult{UserID: userID}

	if spec.Draws != nil {
		pity := user.PityCount
		for i := 0; i < spec.Draws.Count; i++ {
			card, newPity, err := d.drawCardTx(tx, userID, spec.Draws.Mode, spec.Draws.Theme, pity, origin)
			if err != nil {
				return types.GrantResult{}, err
			}
			pity = newPity
			result.Cards = append(result.Cards, card)
		}
		if err := ledger.SetPityTx(tx, userID, pity); err != nil {
			return types.GrantResult{}, err
		}
	}

	if spec.DirectCards != nil {
		if !spec.DirectCards.Rarity.Valid() {
			return types.GrantResult{}, fmt.Errorf("%w: unknown rarity %q", fault.Validation, spec.DirectCards.Rarity)
		}
		for i := 0; i < spec.DirectCards.Count; i++ {
			card, err := d.mintCardTx(tx, userID, spec.DirectCards.Rarity, spec.DirectCards.Theme, origin)
			if err != nil {
				return types.GrantResult{}, err
			}
			result.Cards = append(result.Cards, card)
		}
	}

	if spec.PityDelta != 0 {
		if err := ledger.AdjustPityTx(tx, userID, spec.PityDelta); err != nil {
			return types.GrantResult{}, err
		}
	}

	if spec.CooldownReset != "" {
		if err := d.resetCooldownTx(tx, userID, spec.CooldownReset); err != nil {
			return types.GrantResult{}, err
		}
	}

	if spec.Points != 0 {
		if _, err := ledger.AddPointsTx(tx, userID, spec.Points); err != nil {
			return types.GrantResult{}, err
		}
	}

	if spec.BadgeID != "" {
		inserted, err := ledger.GrantBadgeTx(tx, userID, spec.BadgeID, d.now().UTC())
		if err != nil {
			return types.GrantResult{}, err
		}
		if inserted {
			result.BadgesGranted = append(result.BadgesGranted, spec.BadgeID)
		}
	}

	return d.finishTx(tx, userID, result)
}

// Draw performs one interactive draw, gated by the draw cooldown.
func (d *Dispatcher) Draw(userID, mode, theme string) (types.GrantResult, error) {
	var result types.GrantResult
	err := d.store.WithUser(userID, func(tx *sql.Tx) error {
		user, err := ledger.GetOrCreateUserTx(tx, userID)
		if err != nil {
			return err
		}

		now := d.now()
		if expires, ok, err := ledger.GetCooldownTx(tx, userID, CooldownDraw); err != nil {
			return err
		} else if ok && now.Before(expires) {
			return fmt.Errorf("%w: draw available at %s", ErrRateLimited, expires.UTC().Format(time.RFC3339))
		}

		card, newPity, err := d.drawCardTx(tx, userID, mode, theme, user.PityCount, types.ProvenanceDrawn)
		if err != nil {
			return err
		}
		if err := ledger.SetPityTx(tx, userID, newPity); err != nil {
			return err
		}

		if d.drawCooldown > 0 {
			if err := ledger.SetCooldownTx(tx, userID, CooldownDraw, now.Add(d.drawCooldown)); err != nil {
				return err
			}
		}

		result = types.GrantResult{UserID: userID, Cards: []types.Card{card}}
		result, err = d.finishTx(tx, userID, result)
		return err
	})
	if err != nil {
		return types.GrantResult{}, err
	}
	return result, nil
}

// drawCardTx runs the draw engine once and persists the card before anything
// is returned; a draw never yields a card without a ledger record.
func (d *Dispatcher) drawCardTx(tx *sql.Tx, userID, mode, theme string, pity int, origin types.Provenance) (types.Card, int, error) {
	outcome, err := d.engine.Draw(mode, theme, pity)
	if err != nil {
		return types.Card{}, 0, err
	}

	id, err := d.newID()
	if err != nil {
		return types.Card{}, 0, fmt.Errorf("%w: generate card id: %w", fault.Store, err)
	}
	card := types.Card{
		ID:        id,
		UserID:    userID,
		Rarity:    outcome.Rarity,
		Theme:     theme,
		Name:      outcome.Name,
		Power:     outcome.Power,
		Origin:    origin,
		CreatedAt: d.now().UTC(),
	}
	if err := ledger.InsertCardTx(tx, card); err != nil {
		return types.Card{}, 0, err
	}
	if err := ledger.IncrementDrawCountTx(tx, userID); err != nil {
		return types.Card{}, 0, err
	}

	if outcome.Forced {
		logger.Info("Pity guarantee triggered",
			zap.String("user_id", userID),
			zap.String("mode", mode),
			zap.Int("pity", pity))
	}
	return card, outcome.NewPity, nil
}

func (d *Dispatcher) mintCardTx(tx *sql.Tx, userID string, rarity types.Rarity, theme string, origin types.Provenance) (types.Card, error) {
	outcome := d.engine.Mint(rarity, theme)

	id, err := d.newID()
	if err != nil {
		return types.Card{}, fmt.Errorf("%w: generate card id: %w", fault.Store, err)
	}
	card := types.Card{
		ID:        id,
		UserID:    userID,
		Rarity:    rarity,
		Theme:     theme,
		Name:      outcome.Name,
		Power:     outcome.Power,
		Origin:    origin,
		CreatedAt: d.now().UTC(),
	}
	if err := ledger.InsertCardTx(tx, card); err != nil {
		return types.Card{}, err
	}
	return card, nil
}

func (d *Dispatcher) resetCooldownTx(tx *sql.Tx, userID, action string) error {
	if action == "daily" {
		return ledger.ClearDailyTx(tx, userID)
	}
	return ledger.ClearCooldownTx(tx, userID, action)
}

// finishTx runs the achievement pass and fills in the user totals.
func (d *Dispatcher) finishTx(tx *sql.Tx, userID string, result types.GrantResult) (types.GrantResult, error) {
	pass, err := d.evaluator.EvaluateTx(tx, userID)
	if err != nil {
		return types.GrantResult{}, err
	}
	for _, g := range pass.Granted {
		result.BadgesGranted = append(result.BadgesGranted, g.BadgeID)
	}

	user, err := ledger.GetOrCreateUserTx(tx, userID)
	if err != nil {
		return types.GrantResult{}, err
	}
	result.PointsTotal = user.Points
	result.Level = user.Level()
	result.PityCount = user.PityCount
	return result, nil
}
