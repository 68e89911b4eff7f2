package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/types"
)

// GetOrCreateUserTx loads the user row, creating it on first interaction.
func GetOrCreateUserTx(tx *sql.Tx, userID string) (types.User, error) {
	if _, err := tx.Exec(`INSERT OR IGNORE INTO users (user_id) VALUES (?)`, userID); err != nil {
		return types.User{}, fmt.Errorf("%w: create user: %w", fault.Store, err)
	}
	return getUserTx(tx, userID)
}

func getUserTx(tx *sql.Tx, userID string) (types.User, error) {
	var u types.User
	err := tx.QueryRow(`
		SELECT user_id, points, last_daily, streak, daily_count, pity_count, fusion_count, draw_count, created_at
		FROM users WHERE user_id = ?
	`, userID).Scan(
		&u.ID, &u.Points, &u.LastDaily, &u.Streak, &u.DailyCount,
		&u.PityCount, &u.FusionCount, &u.DrawCount, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return types.User{}, ErrNotFound
	}
	if err != nil {
		return types.User{}, fmt.Errorf("%w: query user: %w", fault.Store, err)
	}
	return u, nil
}

// GetUser reads one user row outside any transaction.
func (s *Store) GetUser(userID string) (types.User, error) {
	var u types.User
	err := s.db.QueryRow(`
		SELECT user_id, points, last_daily, streak, daily_count, pity_count, fusion_count, draw_count, created_at
		FROM users WHERE user_id = ?
	`, userID).Scan(
		&u.ID, &u.Points, &u.LastDaily, &u.Streak, &u.DailyCount,
		&u.PityCount, &u.FusionCount, &u.DrawCount, &u.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return types.User{}, ErrNotFound
	}
	if err != nil {
		return types.User{}, fmt.Errorf("%w: query user: %w", fault.Store, err)
	}
	return u, nil
}

// AddPointsTx adds delta points and returns the new total.
func AddPointsTx(tx *sql.Tx, userID string, delta int) (int, error) {
	if _, err := tx.Exec(`UPDATE users SET points = points + ? WHERE user_id = ?`, delta, userID); err != nil {
		return 0, fmt.Errorf("%w: add points: %w", fault.Store, err)
	}
	var total int
	if err := tx.QueryRow(`SELECT points FROM users WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("%w: read points: %w", fault.Store, err)
	}
	return total, nil
}

// SetPityTx overwrites the pity counter.
func SetPityTx(tx *sql.Tx, userID string, pity int) error {
	if pity < 0 {
		pity = 0
	}
	if _, err := tx.Exec(`UPDATE users SET pity_count = ? WHERE user_id = ?`, pity, userID); err != nil {
		return fmt.Errorf("%w: set pity: %w", fault.Store, err)
	}
	return nil
}

// AdjustPityTx applies a delta to the pity counter, floored at zero.
func AdjustPityTx(tx *sql.Tx, userID string, delta int) error {
	if _, err := tx.Exec(`UPDATE users SET pity_count = MAX(0, pity_count + ?) WHERE user_id = ?`, delta, userID); err != nil {
		return fmt.Errorf("%w: adjust pity: %w", fault.Store, err)
	}
	return nil
}

// IncrementDrawCountTx bumps the lifetime draw counter.
func IncrementDrawCountTx(tx *sql.Tx, userID string) error {
	if _, err := tx.Exec(`UPDATE users SET draw_count = draw_count + 1 WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("%w: increment draw count: %w", fault.Store, err)
	}
	return nil
}

// IncrementFusionCountTx bumps the lifetime fusion counter.
func IncrementFusionCountTx(tx *sql.Tx, userID string) error {
	if _, err := tx.Exec(`UPDATE users SET fusion_count = fusion_count + 1 WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("%w: increment fusion count: %w", fault.Store, err)
	}
	return nil
}

// RecordDailyClaimTx stores the claim date, new streak and claim count.
func RecordDailyClaimTx(tx *sql.Tx, userID, date string, streak int) error {
	_, err := tx.Exec(`
		UPDATE users SET last_daily = ?, streak = ?, daily_count = daily_count + 1
		WHERE user_id = ?
	`, date, streak, userID)
	if err != nil {
		return fmt.Errorf("%w: record daily claim: %w", fault.Store, err)
	}
	return nil
}

// ClearDailyTx resets the daily-claim timestamp so the next claim succeeds
// immediately. The streak is preserved; that is the whole point of the
// streak_saver item.
func ClearDailyTx(tx *sql.Tx, userID string) error {
	if _, err := tx.Exec(`UPDATE users SET last_daily = '' WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("%w: clear daily claim: %w", fault.Store, err)
	}
	return nil
}

// GetCooldownTx returns the expiry of a named cooldown, if set.
func GetCooldownTx(tx *sql.Tx, userID, action string) (time.Time, bool, error) {
	var expires time.Time
	err := tx.QueryRow(`SELECT expires_at FROM cooldowns WHERE user_id = ? AND action = ?`, userID, action).Scan(&expires)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: query cooldown: %w", fault.Store, err)
	}
	return expires, true, nil
}

// SetCooldownTx upserts a named cooldown expiry.
func SetCooldownTx(tx *sql.Tx, userID, action string, expires time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO cooldowns (user_id, action, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id, action) DO UPDATE SET expires_at = excluded.expires_at
	`, userID, action, expires)
	if err != nil {
		return fmt.Errorf("%w: set cooldown: %w", fault.Store, err)
	}
	return nil
}

// ClearCooldownTx removes a named cooldown.
func ClearCooldownTx(tx *sql.Tx, userID, action string) error {
	if _, err := tx.Exec(`DELETE FROM cooldowns WHERE user_id = ? AND action = ?`, userID, action); err != nil {
		return fmt.Errorf("%w: clear cooldown: %w", fault.Store, err)
	}
	return nil
}
