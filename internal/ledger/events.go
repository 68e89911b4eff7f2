package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/types"
)

// GetProcessedEvent reads the idempotency marker for a provider event id.
func (s *Store) GetProcessedEvent(eventID string) (types.ProcessedEvent, error) {
	var e types.ProcessedEvent
	err := s.db.QueryRow(`
		SELECT event_id, outcome, processed_at FROM processed_events WHERE event_id = ?
	`, eventID).Scan(&e.EventID, &e.Outcome, &e.ProcessedAt)
	if err == sql.ErrNoRows {
		return types.ProcessedEvent{}, ErrNotFound
	}
	if err != nil {
		return types.ProcessedEvent{}, fmt.Errorf("%w: query processed event: %w", fault.Store, err)
	}
	return e, nil
}

// GetProcessedEventTx is GetProcessedEvent inside a transaction, used for the
// double check under the user lock before applying a reward.
func GetProcessedEventTx(tx *sql.Tx, eventID string) (types.ProcessedEvent, error) {
	var e types.ProcessedEvent
	err := tx.QueryRow(`
		SELECT event_id, outcome, processed_at FROM processed_events WHERE event_id = ?
	`, eventID).Scan(&e.EventID, &e.Outcome, &e.ProcessedAt)
	if err == sql.ErrNoRows {
		return types.ProcessedEvent{}, ErrNotFound
	}
	if err != nil {
		return types.ProcessedEvent{}, fmt.Errorf("%w: query processed event: %w", fault.Store, err)
	}
	return e, nil
}

// InsertProcessedEventTx writes the idempotency marker. The primary key makes
// a second insert for the same event id report false, never an error.
func InsertProcessedEventTx(tx *sql.Tx, eventID, outcome string) (bool, error) {
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO processed_events (event_id, outcome, processed_at) VALUES (?, ?, ?)
	`, eventID, outcome, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("%w: insert processed event: %w", fault.Store, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: insert processed event rows: %w", fault.Store, err)
	}
	return n == 1, nil
}

// RecordEventOutcome writes a marker outside any reward transaction, for
// events that carry no reward (failed payments resolved without a checkout,
// unknown-but-well-signed event types).
func (s *Store) RecordEventOutcome(eventID, outcome string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := InsertProcessedEventTx(tx, eventID, outcome)
		return err
	})
}
