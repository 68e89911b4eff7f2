package fusion

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/achievement"
	"github.com/chaosdeck/chaosdeck/internal/gacha"
	"github.com/chaosdeck/chaosdeck/internal/ledger"
	"github.com/chaosdeck/chaosdeck/internal/types"
)

func newTestEngine(t *testing.T) (*Engine, *ledger.Store) {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	gachaEngine := gacha.NewEngine(gacha.DefaultConfig(), gacha.NewSeededRNG(3))
	return NewEngine(store, gachaEngine, achievement.NewEvaluator()), store
}

func seedCard(t *testing.T, store *ledger.Store, id, userID string, rarity types.Rarity, power int) {
	t.Helper()
	err := store.WithUser(userID, func(tx *sql.Tx) error {
		if _, err := ledger.GetOrCreateUserTx(tx, userID); err != nil {
			return err
		}
		return ledger.InsertCardTx(tx, types.Card{
			ID: id, UserID: userID, Rarity: rarity, Name: "Seed", Power: power,
			Origin: types.ProvenanceDrawn, CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		t.Fatalf("seed card: %v", err)
	}
}

func TestFuseUpgradesTier(t *testing.T) {
	e, store := newTestEngine(t)
	seedCard(t, store, "a", "alice", types.RarityRare, 50)
	seedCard(t, store, "b", "alice", types.RarityRare, 30)

	result, err := e.Fuse("alice", "a", "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Card.Rarity != types.RarityEpic {
		t.Fatalf("unexpected rarity: got=%v want=%v", result.Card.Rarity, types.RarityEpic)
	}
	// hi + (lo+1)/2 + 10*(tier+1) = 50 + 15 + 30
	if result.Card.Power != 95 {
		t.Fatalf("unexpected power: got=%d want=95", result.Card.Power)
	}
	if result.Card.Power <= 50 {
		t.Fatal("fused card must beat the stronger input")
	}
	if result.Card.Origin != types.ProvenanceFused {
		t.Fatalf("unexpected origin: got=%v want=%v", result.Card.Origin, types.ProvenanceFused)
	}

	// Both inputs are spent; only the output remains.
	cards, err := store.ListCards("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 1 || cards[0].ID != result.Card.ID {
		t.Fatalf("unexpected remaining cards: %+v", cards)
	}

	user, err := store.GetUser("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.FusionCount != 1 {
		t.Fatalf("unexpected fusion count: got=%d want=1", user.FusionCount)
	}
}

func TestFuseLegendariesStayLegendary(t *testing.T) {
	e, store := newTestEngine(t)
	seedCard(t, store, "a", "alice", types.RarityLegendary, 300)
	seedCard(t, store, "b", "alice", types.RarityLegendary, 200)

	result, err := e.Fuse("alice", "a", "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Card.Rarity != types.RarityLegendary {
		t.Fatalf("unexpected rarity: got=%v want=%v", result.Card.Rarity, types.RarityLegendary)
	}
	if result.Card.Power <= 300 {
		t.Fatalf("fused card must beat the stronger input: got=%d", result.Card.Power)
	}
}

func TestFuseRejectsMixedTiers(t *testing.T) {
	e, store := newTestEngine(t)
	seedCard(t, store, "a", "alice", types.RarityCommon, 20)
	seedCard(t, store, "b", "alice", types.RarityRare, 30)

	if _, err := e.Fuse("alice", "a", "b"); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("unexpected error: got=%v want=%v", err, ErrIncompatible)
	}
}

func TestFuseRejectsSelfFusion(t *testing.T) {
	e, store := newTestEngine(t)
	seedCard(t, store, "a", "alice", types.RarityRare, 30)

	if _, err := e.Fuse("alice", "a", "a"); !errors.Is(err, ErrIncompatible) {
		t.Fatalf("unexpected error: got=%v want=%v", err, ErrIncompatible)
	}
}

func TestFuseRejectsForeignCard(t *testing.T) {
	e, store := newTestEngine(t)
	seedCard(t, store, "a", "alice", types.RarityRare, 30)
	seedCard(t, store, "b", "bob", types.RarityRare, 30)

	if _, err := e.Fuse("alice", "a", "b"); !errors.Is(err, ErrNotOwned) {
		t.Fatalf("unexpected error: got=%v want=%v", err, ErrNotOwned)
	}

	// The failed attempt must not have spent alice's card.
	cards, err := store.ListCards("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("unexpected card count: got=%d want=1", len(cards))
	}
}

func TestFuseRejectsConsumedCard(t *testing.T) {
	e, store := newTestEngine(t)
	seedCard(t, store, "a", "alice", types.RarityRare, 50)
	seedCard(t, store, "b", "alice", types.RarityRare, 30)
	seedCard(t, store, "c", "alice", types.RarityRare, 40)

	if _, err := e.Fuse("alice", "a", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// "a" is spent now; reusing it must fail and leave "c" intact.
	if _, err := e.Fuse("alice", "a", "c"); !errors.Is(err, ErrAlreadyConsumed) {
		t.Fatalf("unexpected error: got=%v want=%v", err, ErrAlreadyConsumed)
	}

	cards, err := store.ListCards("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The fused output plus the untouched "c".
	if len(cards) != 2 {
		t.Fatalf("unexpected card count: got=%d want=2", len(cards))
	}
}

func TestFusedPowerBeatsInputs(t *testing.T) {
	cases := []struct{ a, b int }{{10, 10}, {100, 1}, {1, 100}, {400, 399}}
	for _, tc := range cases {
		got := fusedPower(tc.a, tc.b, types.RarityEpic)
		hi := tc.a
		if tc.b > hi {
			hi = tc.b
		}
		if got <= hi {
			t.Fatalf("fusedPower(%d,%d) = %d, not above %d", tc.a, tc.b, got, hi)
		}
	}
}
