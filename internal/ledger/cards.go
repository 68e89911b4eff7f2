package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/types"
)

// InsertCardTx persists a newly created card.
func InsertCardTx(tx *sql.Tx, card types.Card) error {
	createdAt := card.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := tx.Exec(`
		INSERT INTO cards (id, user_id, rarity, theme, name, power, origin, image_url, consumed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`, card.ID, card.UserID, string(card.Rarity), card.Theme, card.Name, card.Power, string(card.Origin), card.ImageURL, createdAt)
	if err != nil {
		return fmt.Errorf("%w: insert card: %w", fault.Store, err)
	}
	return nil
}

// GetCardTx loads one card regardless of consumed state.
func GetCardTx(tx *sql.Tx, cardID string) (types.Card, error) {
	var c types.Card
	var consumed int
	err := tx.QueryRow(`
		SELECT id, user_id, rarity, theme, name, power, origin, image_url, consumed, created_at
		FROM cards WHERE id = ?
	`, cardID).Scan(&c.ID, &c.UserID, &c.Rarity, &c.Theme, &c.Name, &c.Power, &c.Origin, &c.ImageURL, &consumed, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return types.Card{}, ErrNotFound
	}
	if err != nil {
		return types.Card{}, fmt.Errorf("%w: query card: %w", fault.Store, err)
	}
	c.Consumed = consumed != 0
	return c, nil
}

// ConsumeCardTx flips the consumed flag, compare-and-swap style. It reports
// false when the card was already consumed by a concurrent fusion, so the
// caller can fail loudly instead of double-spending.
func ConsumeCardTx(tx *sql.Tx, cardID string) (bool, error) {
	res, err := tx.Exec(`UPDATE cards SET consumed = 1 WHERE id = ? AND consumed = 0`, cardID)
	if err != nil {
		return false, fmt.Errorf("%w: consume card: %w", fault.Store, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: consume card rows: %w", fault.Store, err)
	}
	return n == 1, nil
}

// CountCardsTx counts un-consumed cards for a user, optionally by rarity.
// Pass an empty rarity to count everything.
func CountCardsTx(tx *sql.Tx, userID string, rarity types.Rarity) (int, error) {
	var (
		n   int
		err error
	)
	if rarity == "" {
		err = tx.QueryRow(`SELECT COUNT(*) FROM cards WHERE user_id = ? AND consumed = 0`, userID).Scan(&n)
	} else {
		err = tx.QueryRow(`SELECT COUNT(*) FROM cards WHERE user_id = ? AND consumed = 0 AND rarity = ?`, userID, string(rarity)).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: count cards: %w", fault.Store, err)
	}
	return n, nil
}

// ListCards returns a user's un-consumed cards, newest first.
func (s *Store) ListCards(userID string) ([]types.Card, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, rarity, theme, name, power, origin, image_url, consumed, created_at
		FROM cards WHERE user_id = ? AND consumed = 0
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list cards: %w", fault.Store, err)
	}
	defer rows.Close()

	cards := []types.Card{}
	for rows.Next() {
		var c types.Card
		var consumed int
		if err := rows.Scan(&c.ID, &c.UserID, &c.Rarity, &c.Theme, &c.Name, &c.Power, &c.Origin, &c.ImageURL, &consumed, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan card: %w", fault.Store, err)
		}
		c.Consumed = consumed != 0
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate cards: %w", fault.Store, err)
	}
	return cards, nil
}

// SetCardImage attaches a generated asset URL after the fact. The card record
// itself never waits on asset generation.
func (s *Store) SetCardImage(userID, cardID, imageURL string) error {
	return s.WithUser(userID, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE cards SET image_url = ? WHERE id = ? AND user_id = ?`, imageURL, cardID, userID); err != nil {
			return fmt.Errorf("%w: set card image: %w", fault.Store, err)
		}
		return nil
	})
}
