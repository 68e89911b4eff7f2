package webserver

import (
	"encoding/json"
	"net/http"
)

type drawRequest struct {
	UserID string `json:"user_id"`
	Mode   string `json:"mode"`
	Theme  string `json:"theme"`
}

// handleDraw performs one gacha draw for the user.
func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req drawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Mode == "" {
		req.Mode = "standard"
	}

	result, err := s.dispatcher.Draw(req.UserID, req.Mode, req.Theme)
	if err != nil {
		writeError(w, err)
		return
	}

	s.afterGrant(result)
	writeJSON(w, http.StatusOK, result)
}

type fuseRequest struct {
	UserID  string `json:"user_id"`
	CardAID string `json:"card_a_id"`
	CardBID string `json:"card_b_id"`
}

// handleFuse consumes two same-tier cards and mints the next-tier output.
func (s *Server) handleFuse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req fuseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	result, err := s.fusion.Fuse(req.UserID, req.CardAID, req.CardBID)
	if err != nil {
		writeError(w, err)
		return
	}

	go s.generateCardAsset(result.Card)
	writeJSON(w, http.StatusOK, result)
}

type dailyRequest struct {
	UserID string `json:"user_id"`
	Theme  string `json:"theme"`
}

// handleDaily claims the once-per-day streak bonus.
func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req dailyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	result, err := s.dispatcher.ClaimDaily(req.UserID, req.Theme)
	if err != nil {
		writeError(w, err)
		return
	}

	s.afterGrant(result)
	writeJSON(w, http.StatusOK, result)
}
