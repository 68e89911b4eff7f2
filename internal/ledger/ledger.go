// Package ledger is the durable store behind every other component: user
// accounts, owned cards, campaign progress, badge grants, checkout records
// and processed-event markers. All mutation of a user's state goes through
// WithUser, which serializes writers per user id.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/shared/logger"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("ledger: record not found")

// busyRetries bounds internal retries on transient sqlite contention.
const busyRetries = 3

// Store wraps the sqlite database and the per-user write locks.
type Store struct {
	db    *sql.DB
	locks sync.Map // user id -> *sync.Mutex
}

// Open opens (or creates) the database at dbPath and ensures the schema.
func Open(dbPath string) (*Store, error) {
	// WAL and busy timeout guard against writer contention.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", fault.Store, err)
	}

	// sqlite is a single-writer store; one connection avoids lock churn.
	db.SetMaxOpenConns(1)

	if err := setupSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func setupSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id TEXT PRIMARY KEY,
			points INTEGER NOT NULL DEFAULT 0,
			last_daily TEXT NOT NULL DEFAULT '',
			streak INTEGER NOT NULL DEFAULT 0,
			daily_count INTEGER NOT NULL DEFAULT 0,
			pity_count INTEGER NOT NULL DEFAULT 0,
			fusion_count INTEGER NOT NULL DEFAULT 0,
			draw_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS cards (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			rarity TEXT NOT NULL,
			theme TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			power INTEGER NOT NULL,
			origin TEXT NOT NULL,
			image_url TEXT NOT NULL DEFAULT '',
			consumed INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_user ON cards(user_id, consumed)`,
		`CREATE TABLE IF NOT EXISTS cooldowns (
			user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			PRIMARY KEY (user_id, action)
		)`,
		`CREATE TABLE IF NOT EXISTS campaigns (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			theme TEXT NOT NULL,
			step INTEGER NOT NULL DEFAULT 0,
			choices TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_user ON campaigns(user_id, theme, status)`,
		`CREATE TABLE IF NOT EXISTS badges (
			user_id TEXT NOT NULL,
			badge_id TEXT NOT NULL,
			granted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, badge_id)
		)`,
		`CREATE TABLE IF NOT EXISTS checkouts (
			reference TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS processed_events (
			event_id TEXT PRIMARY KEY,
			outcome TEXT NOT NULL,
			processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			logger.Error("Failed to create schema", zap.Error(err))
			return fmt.Errorf("%w: create schema: %w", fault.Store, err)
		}
	}
	return nil
}

func (s *Store) userLock(userID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// WithUser runs fn inside a transaction while holding userID's write lock.
// A draw and a concurrent purchase fulfillment for the same user can never
// interleave. Transient sqlite contention is retried a bounded number of
// times; after that the error surfaces as a fault.Store.
func (s *Store) WithUser(userID string, fn func(tx *sql.Tx) error) error {
	mu := s.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	return s.withTx(fn)
}

// withTx runs fn inside a transaction with bounded retry on busy errors.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		tx, err := s.db.Begin()
		if err != nil {
			if isBusy(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("%w: begin transaction: %w", fault.Store, err)
		}

		if err := fn(tx); err != nil {
			tx.Rollback()
			if isBusy(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isBusy(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("%w: commit transaction: %w", fault.Store, err)
		}
		return nil
	}
	return fmt.Errorf("%w: transaction retries exhausted: %w", fault.Store, lastErr)
}

func isBusy(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked
	}
	return false
}
