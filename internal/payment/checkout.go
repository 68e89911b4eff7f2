package payment

import (
	"fmt"
	"strings"

	"github.com/chaosdeck/chaosdeck/internal/catalog"
	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/ledger"
	"github.com/chaosdeck/chaosdeck/internal/shared/logger"
	"github.com/chaosdeck/chaosdeck/internal/types"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// CheckoutIntent is what the front end needs to send the buyer to the
// provider: the reference we will match the notification against, the
// redirect URL and a QR code for it.
type CheckoutIntent struct {
	Reference string `json:"reference"`
	URL       string `json:"url"`
	QRPNG     []byte `json:"qr_png,omitempty"`
}

// ProviderClient creates checkout sessions with the payment provider.
// The provider itself is an external collaborator; the core only needs the
// reference and redirect URL back.
type ProviderClient interface {
	CreateSession(userID string, item catalog.Item) (reference, url string, err error)
}

// LocalProvider mints provider-shaped references locally. Stands in for the
// real provider in development and tests.
type LocalProvider struct {
	BaseURL string
}

func (p LocalProvider) CreateSession(userID string, item catalog.Item) (string, string, error) {
	reference := "cs_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	base := strings.TrimRight(p.BaseURL, "/")
	return reference, fmt.Sprintf("%s/%s", base, reference), nil
}

// CreateCheckout validates the item, asks the provider for a session and
// persists the pending checkout record keyed by the provider reference.
func CreateCheckout(store *ledger.Store, provider ProviderClient, cat *catalog.Catalog, userID, itemID string) (CheckoutIntent, error) {
	if userID == "" {
		return CheckoutIntent{}, fmt.Errorf("%w: missing user id", fault.Validation)
	}
	item, ok := cat.Item(itemID)
	if !ok {
		return CheckoutIntent{}, fmt.Errorf("%w: %q", catalog.ErrUnknownItem, itemID)
	}

	reference, url, err := provider.CreateSession(userID, item)
	if err != nil {
		return CheckoutIntent{}, fmt.Errorf("create provider session: %w", err)
	}

	if err := store.CreateCheckout(types.Checkout{
		Reference: reference,
		UserID:    userID,
		ItemID:    itemID,
	}); err != nil {
		return CheckoutIntent{}, err
	}

	// The QR is cosmetic; a failure to render it never blocks the purchase.
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		logger.Warn("Failed to render checkout QR", zap.Error(err), zap.String("reference", reference))
		png = nil
	}

	logger.Info("Checkout created",
		zap.String("reference", reference),
		zap.String("user_id", userID),
		zap.String("item_id", itemID),
		zap.Int("price_cents", item.PriceCents))
	return CheckoutIntent{Reference: reference, URL: url, QRPNG: png}, nil
}
