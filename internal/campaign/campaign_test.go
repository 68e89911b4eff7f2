package campaign

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/chaosdeck/chaosdeck/internal/achievement"
	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/gacha"
	"github.com/chaosdeck/chaosdeck/internal/ledger"
	"github.com/chaosdeck/chaosdeck/internal/reward"
	"github.com/chaosdeck/chaosdeck/internal/types"
)

func newTestService(t *testing.T) (*Service, *ledger.Store) {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := gacha.NewEngine(gacha.DefaultConfig(), gacha.NewSeededRNG(5))
	dispatcher := reward.NewDispatcher(store, engine, achievement.NewEvaluator(), 0)
	return NewService(store, dispatcher), store
}

func TestCampaignCompletion(t *testing.T) {
	s, store := newTestService(t)

	c, err := s.Start("alice", "space")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != types.CampaignActive || c.Step != 0 {
		t.Fatalf("unexpected campaign: %+v", c)
	}

	var grant *types.GrantResult
	for i := 0; i < 5; i++ {
		c, grant, err = s.Advance("alice", "space", fmt.Sprintf("choice-%d", i))
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if i < 4 {
			if c.Status != types.CampaignActive {
				t.Fatalf("step %d: campaign ended early: %+v", i, c)
			}
			if grant != nil {
				t.Fatalf("step %d: premature completion grant", i)
			}
		}
	}

	if c.Status != types.CampaignCompleted {
		t.Fatalf("unexpected status: got=%v want=%v", c.Status, types.CampaignCompleted)
	}
	if len(c.Choices) != 5 {
		t.Fatalf("unexpected choices: %v", c.Choices)
	}
	if grant == nil {
		t.Fatal("completion grant missing")
	}
	if len(grant.Cards) != 1 || grant.Cards[0].Rarity != types.RarityEpic {
		t.Fatalf("unexpected completion cards: %+v", grant.Cards)
	}
	if grant.Cards[0].Theme != "space" {
		t.Fatalf("unexpected completion card theme: %q", grant.Cards[0].Theme)
	}

	user, err := store.GetUser("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 150 completion points plus first_pull (50) from the completion card;
	// campaign_conqueror is a pure badge.
	if user.Points != 200 {
		t.Fatalf("unexpected points: got=%d want=200", user.Points)
	}

	badges, err := store.ListBadges("alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var hasConqueror bool
	for _, b := range badges {
		if b.BadgeID == "campaign_conqueror" {
			hasConqueror = true
		}
	}
	if !hasConqueror {
		t.Fatalf("campaign_conqueror badge missing: %+v", badges)
	}

	// The campaign is over; advancing again needs a fresh start.
	if _, _, err := s.Advance("alice", "space", "late"); !errors.Is(err, ErrNoActive) {
		t.Fatalf("unexpected error: got=%v want=%v", err, ErrNoActive)
	}
}

func TestStartRejectsSecondActiveCampaign(t *testing.T) {
	s, _ := newTestService(t)

	if _, err := s.Start("alice", "space"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Start("alice", "space"); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("unexpected error: got=%v want=%v", err, ErrAlreadyActive)
	}

	// A different theme is a separate campaign.
	if _, err := s.Start("alice", "ocean"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStartRejectsEmptyTheme(t *testing.T) {
	s, _ := newTestService(t)

	if _, err := s.Start("alice", ""); !errors.Is(err, fault.Validation) {
		t.Fatalf("unexpected error: got=%v want validation fault", err)
	}
}

func TestAbandon(t *testing.T) {
	s, _ := newTestService(t)

	if _, err := s.Start("alice", "space"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Abandon("alice", "space"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Abandoning clears the way for a fresh campaign on the same theme.
	if _, err := s.Start("alice", "space"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Abandon("alice", "ocean"); !errors.Is(err, ErrNoActive) {
		t.Fatalf("unexpected error: got=%v want=%v", err, ErrNoActive)
	}
}
