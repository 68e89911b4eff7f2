package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/types"
)

// CreateCheckout persists a pending checkout record keyed by the provider
// reference. Issued at purchase-intent time, before any notification arrives.
func (s *Store) CreateCheckout(c types.Checkout) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO checkouts (reference, user_id, item_id, status) VALUES (?, ?, ?, ?)
		`, c.Reference, c.UserID, c.ItemID, string(types.CheckoutPending))
		if err != nil {
			return fmt.Errorf("%w: insert checkout: %w", fault.Store, err)
		}
		return nil
	})
}

// GetCheckout reads one checkout record.
func (s *Store) GetCheckout(reference string) (types.Checkout, error) {
	var c types.Checkout
	var status string
	err := s.db.QueryRow(`
		SELECT reference, user_id, item_id, status, created_at, updated_at
		FROM checkouts WHERE reference = ?
	`, reference).Scan(&c.Reference, &c.UserID, &c.ItemID, &status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return types.Checkout{}, ErrNotFound
	}
	if err != nil {
		return types.Checkout{}, fmt.Errorf("%w: query checkout: %w", fault.Store, err)
	}
	c.Status = types.CheckoutStatus(status)
	return c, nil
}

// GetCheckoutTx reads one checkout record inside a transaction.
func GetCheckoutTx(tx *sql.Tx, reference string) (types.Checkout, error) {
	var c types.Checkout
	var status string
	err := tx.QueryRow(`
		SELECT reference, user_id, item_id, status, created_at, updated_at
		FROM checkouts WHERE reference = ?
	`, reference).Scan(&c.Reference, &c.UserID, &c.ItemID, &status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return types.Checkout{}, ErrNotFound
	}
	if err != nil {
		return types.Checkout{}, fmt.Errorf("%w: query checkout: %w", fault.Store, err)
	}
	c.Status = types.CheckoutStatus(status)
	return c, nil
}

// TransitionCheckoutTx moves a checkout from pending to the given terminal
// status, compare-and-swap style. It reports false when the record was not in
// pending, which makes duplicate deliveries harmless: fulfilled and failed
// are never left.
func TransitionCheckoutTx(tx *sql.Tx, reference string, to types.CheckoutStatus) (bool, error) {
	res, err := tx.Exec(`
		UPDATE checkouts SET status = ?, updated_at = ? WHERE reference = ? AND status = 'pending'
	`, string(to), time.Now().UTC(), reference)
	if err != nil {
		return false, fmt.Errorf("%w: transition checkout: %w", fault.Store, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: transition checkout rows: %w", fault.Store, err)
	}
	return n == 1, nil
}
