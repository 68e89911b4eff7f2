package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/types"
)

// CreateCampaignTx starts a campaign. One active campaign per user per theme;
// a second start for the same theme fails the uniqueness probe first.
func CreateCampaignTx(tx *sql.Tx, c types.Campaign) error {
	choices, err := json.Marshal(c.Choices)
	if err != nil {
		return fmt.Errorf("%w: marshal choices: %w", fault.Store, err)
	}
	_, err = tx.Exec(`
		INSERT INTO campaigns (id, user_id, theme, step, choices, status) VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Theme, c.Step, string(choices), string(c.Status))
	if err != nil {
		return fmt.Errorf("%w: insert campaign: %w", fault.Store, err)
	}
	return nil
}

// GetActiveCampaignTx loads the active campaign for (user, theme).
func GetActiveCampaignTx(tx *sql.Tx, userID, theme string) (types.Campaign, error) {
	var c types.Campaign
	var choices, status string
	err := tx.QueryRow(`
		SELECT id, user_id, theme, step, choices, status FROM campaigns
		WHERE user_id = ? AND theme = ? AND status = 'active'
	`, userID, theme).Scan(&c.ID, &c.UserID, &c.Theme, &c.Step, &choices, &status)
	if err == sql.ErrNoRows {
		return types.Campaign{}, ErrNotFound
	}
	if err != nil {
		return types.Campaign{}, fmt.Errorf("%w: query campaign: %w", fault.Store, err)
	}
	if err := json.Unmarshal([]byte(choices), &c.Choices); err != nil {
		return types.Campaign{}, fmt.Errorf("%w: unmarshal choices: %w", fault.Store, err)
	}
	c.Status = types.CampaignStatus(status)
	return c, nil
}

// UpdateCampaignTx writes back step, choices and status.
func UpdateCampaignTx(tx *sql.Tx, c types.Campaign) error {
	choices, err := json.Marshal(c.Choices)
	if err != nil {
		return fmt.Errorf("%w: marshal choices: %w", fault.Store, err)
	}
	_, err = tx.Exec(`
		UPDATE campaigns SET step = ?, choices = ?, status = ? WHERE id = ?
	`, c.Step, string(choices), string(c.Status), c.ID)
	if err != nil {
		return fmt.Errorf("%w: update campaign: %w", fault.Store, err)
	}
	return nil
}

// CountCompletedCampaignsTx counts a user's completed campaigns.
func CountCompletedCampaignsTx(tx *sql.Tx, userID string) (int, error) {
	var n int
	err := tx.QueryRow(`SELECT COUNT(*) FROM campaigns WHERE user_id = ? AND status = 'completed'`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count campaigns: %w", fault.Store, err)
	}
	return n, nil
}
