package webserver

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/chaosdeck/chaosdeck/internal/payment"
)

type checkoutRequest struct {
	UserID string `json:"user_id"`
	ItemID string `json:"item_id"`
}

type checkoutResponse struct {
	Reference string `json:"reference"`
	URL       string `json:"url"`
	QRPNG     string `json:"qr_png,omitempty"`
}

// handleCheckout creates a pending checkout and returns the redirect URL
// plus a QR code for it.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	intent, err := payment.CreateCheckout(s.store, s.provider, s.catalog, req.UserID, req.ItemID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := checkoutResponse{Reference: intent.Reference, URL: intent.URL}
	if len(intent.QRPNG) > 0 {
		resp.QRPNG = base64.StdEncoding.EncodeToString(intent.QRPNG)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCatalog lists the purchasable items.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.catalog.Items())
}
