package payment

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chaosdeck/chaosdeck/internal/catalog"
	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/ledger"
	"github.com/chaosdeck/chaosdeck/internal/types"
)

func newCheckoutStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateCheckout(t *testing.T) {
	store := newCheckoutStore(t)
	provider := LocalProvider{BaseURL: "https://pay.example.com/c/"}

	intent, err := CreateCheckout(store, provider, catalog.Default(), "alice", "booster")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(intent.Reference, "cs_") {
		t.Fatalf("unexpected reference: %q", intent.Reference)
	}
	if !strings.Contains(intent.URL, intent.Reference) {
		t.Fatalf("URL does not carry the reference: %q", intent.URL)
	}
	if len(intent.QRPNG) == 0 {
		t.Fatal("expected a QR code")
	}

	c, err := store.GetCheckout(intent.Reference)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != types.CheckoutPending || c.UserID != "alice" || c.ItemID != "booster" {
		t.Fatalf("unexpected checkout record: %+v", c)
	}
}

func TestCreateCheckoutUnknownItem(t *testing.T) {
	store := newCheckoutStore(t)

	_, err := CreateCheckout(store, LocalProvider{BaseURL: "https://pay.example.com"}, catalog.Default(), "alice", "nope")
	if !errors.Is(err, catalog.ErrUnknownItem) {
		t.Fatalf("unexpected error: got=%v want=%v", err, catalog.ErrUnknownItem)
	}
}

func TestCreateCheckoutMissingUser(t *testing.T) {
	store := newCheckoutStore(t)

	_, err := CreateCheckout(store, LocalProvider{BaseURL: "https://pay.example.com"}, catalog.Default(), "", "booster")
	if !errors.Is(err, fault.Validation) {
		t.Fatalf("unexpected error: got=%v want validation fault", err)
	}
}
