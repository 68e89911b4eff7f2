package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/types"
)

// GrantBadgeTx inserts a badge grant. The (user, badge) primary key makes the
// insert idempotent; it reports whether a new grant was actually created.
func GrantBadgeTx(tx *sql.Tx, userID, badgeID string, grantedAt time.Time) (bool, error) {
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO badges (user_id, badge_id, granted_at) VALUES (?, ?, ?)
	`, userID, badgeID, grantedAt)
	if err != nil {
		return false, fmt.Errorf("%w: grant badge: %w", fault.Store, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: grant badge rows: %w", fault.Store, err)
	}
	return n == 1, nil
}

// HasBadgeTx reports whether the user already holds the badge.
func HasBadgeTx(tx *sql.Tx, userID, badgeID string) (bool, error) {
	var one int
	err := tx.QueryRow(`SELECT 1 FROM badges WHERE user_id = ? AND badge_id = ?`, userID, badgeID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: query badge: %w", fault.Store, err)
	}
	return true, nil
}

// ListBadges returns all badge grants for a user, oldest first.
func (s *Store) ListBadges(userID string) ([]types.BadgeGrant, error) {
	rows, err := s.db.Query(`
		SELECT user_id, badge_id, granted_at FROM badges WHERE user_id = ? ORDER BY granted_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list badges: %w", fault.Store, err)
	}
	defer rows.Close()

	grants := []types.BadgeGrant{}
	for rows.Next() {
		var g types.BadgeGrant
		if err := rows.Scan(&g.UserID, &g.BadgeID, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("%w: scan badge: %w", fault.Store, err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate badges: %w", fault.Store, err)
	}
	return grants, nil
}
