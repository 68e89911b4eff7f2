// Package campaign tracks a user's progress through themed story campaigns.
// The story text itself is the asset generator's problem; the core stores the
// step index and the accumulated choices only.
package campaign

import (
	"database/sql"
	"fmt"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/ledger"
	"github.com/chaosdeck/chaosdeck/internal/reward"
	"github.com/chaosdeck/chaosdeck/internal/shared/logger"
	"github.com/chaosdeck/chaosdeck/internal/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyActive is returned when the user already runs a campaign on
	// this theme; one active campaign per user per theme.
	ErrAlreadyActive = fmt.Errorf("%w: campaign already active for theme", fault.Precondition)

	// ErrNoActive is returned when there is nothing to advance or abandon.
	ErrNoActive = fmt.Errorf("%w: no active campaign for theme", fault.Precondition)
)

// totalSteps is the fixed campaign length.
const totalSteps = 5

// Completion loot.
var completionReward = types.RewardSpec{
	Points:      150,
	DirectCards: &types.DirectCardsReward{Count: 1, Rarity: types.RarityEpic},
}

// Service runs campaign state transitions against the ledger.
type Service struct {
	store      *ledger.Store
	dispatcher *reward.Dispatcher
	newID      func() (string, error)
}

// NewService wires the campaign service.
func NewService(store *ledger.Store, dispatcher *reward.Dispatcher) *Service {
	return &Service{store: store, dispatcher: dispatcher, newID: func() (string, error) { return gonanoid.New() }}
}

// Start begins a campaign for (user, theme).
func (s *Service) Start(userID, theme string) (types.Campaign, error) {
	if theme == "" {
		return types.Campaign{}, fmt.Errorf("%w: missing theme", fault.Validation)
	}

	var created types.Campaign
	err := s.store.WithUser(userID, func(tx *sql.Tx) error {
		if _, err := ledger.GetOrCreateUserTx(tx, userID); err != nil {
			return err
		}
		if _, err := ledger.GetActiveCampaignTx(tx, userID, theme); err == nil {
			return fmt.Errorf("%w: %q", ErrAlreadyActive, theme)
		} else if err != ledger.ErrNotFound {
			return err
		}

		id, err := s.newID()
		if err != nil {
			return fmt.Errorf("%w: generate campaign id: %w", fault.Store, err)
		}
		created = types.Campaign{
			ID:      id,
			UserID:  userID,
			Theme:   theme,
			Step:    0,
			Choices: []string{},
			Status:  types.CampaignActive,
		}
		return ledger.CreateCampaignTx(tx, created)
	})
	if err != nil {
		return types.Campaign{}, err
	}

	logger.Info("Campaign started",
		zap.String("user_id", userID),
		zap.String("campaign_id", created.ID),
		zap.String("theme", theme))
	return created, nil
}

// Advance records one choice. Reaching the final step completes the campaign
// and grants the completion loot in the same transaction.
func (s *Service) Advance(userID, theme, choice string) (types.Campaign, *types.GrantResult, error) {
	var (
		updated types.Campaign
		grant   *types.GrantResult
	)
	err := s.store.WithUser(userID, func(tx *sql.Tx) error {
		c, err := ledger.GetActiveCampaignTx(tx, userID, theme)
		if err == ledger.ErrNotFound {
			return fmt.Errorf("%w: %q", ErrNoActive, theme)
		}
		if err != nil {
			return err
		}

		c.Step++
		c.Choices = append(c.Choices, choice)
		if c.Step >= totalSteps {
			c.Status = types.CampaignCompleted
		}
		if err := ledger.UpdateCampaignTx(tx, c); err != nil {
			return err
		}

		if c.Status == types.CampaignCompleted {
			spec := completionReward
			spec.DirectCards = &types.DirectCardsReward{Count: 1, Rarity: types.RarityEpic, Theme: theme}
			g, err := s.dispatcher.GrantTx(tx, userID, spec, types.ProvenanceDrawn)
			if err != nil {
				return err
			}
			grant = &g
		}
		updated = c
		return nil
	})
	if err != nil {
		return types.Campaign{}, nil, err
	}

	if updated.Status == types.CampaignCompleted {
		logger.Info("Campaign completed",
			zap.String("user_id", userID),
			zap.String("campaign_id", updated.ID),
			zap.Int("steps", updated.Step))
	}
	return updated, grant, nil
}

// Abandon ends the active campaign without loot.
func (s *Service) Abandon(userID, theme string) error {
	return s.store.WithUser(userID, func(tx *sql.Tx) error {
		c, err := ledger.GetActiveCampaignTx(tx, userID, theme)
		if err == ledger.ErrNotFound {
			return fmt.Errorf("%w: %q", ErrNoActive, theme)
		}
		if err != nil {
			return err
		}
		c.Status = types.CampaignAbandoned
		return ledger.UpdateCampaignTx(tx, c)
	})
}
