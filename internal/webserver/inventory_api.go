package webserver

import (
	"net/http"

	"github.com/chaosdeck/chaosdeck/internal/types"
)

type inventoryResponse struct {
	UserID string             `json:"user_id"`
	Points int                `json:"points"`
	Level  int                `json:"level"`
	Pity   int                `json:"pity"`
	Streak int                `json:"streak"`
	Cards  []types.Card       `json:"cards"`
	Badges []types.BadgeGrant `json:"badges"`
}

// handleInventory returns the user's profile, unconsumed cards and badges.
func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUser(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	cards, err := s.store.ListCards(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	badges, err := s.store.ListBadges(userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, inventoryResponse{
		UserID: user.ID,
		Points: user.Points,
		Level:  user.Level(),
		Pity:   user.PityCount,
		Streak: user.Streak,
		Cards:  cards,
		Badges: badges,
	})
}
