package webserver

import (
	"encoding/json"
	"net/http"

	"github.com/chaosdeck/chaosdeck/internal/types"
)

type campaignRequest struct {
	UserID string `json:"user_id"`
	Theme  string `json:"theme"`
	Choice string `json:"choice"`
}

type campaignResponse struct {
	Campaign types.Campaign     `json:"campaign"`
	Grant    *types.GrantResult `json:"grant,omitempty"`
}

func decodeCampaignRequest(w http.ResponseWriter, r *http.Request) (campaignRequest, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return campaignRequest{}, false
	}
	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return campaignRequest{}, false
	}
	if req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return campaignRequest{}, false
	}
	return req, true
}

func (s *Server) handleCampaignStart(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCampaignRequest(w, r)
	if !ok {
		return
	}

	c, err := s.campaigns.Start(req.UserID, req.Theme)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaignResponse{Campaign: c})
}

func (s *Server) handleCampaignAdvance(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCampaignRequest(w, r)
	if !ok {
		return
	}

	c, grant, err := s.campaigns.Advance(req.UserID, req.Theme, req.Choice)
	if err != nil {
		writeError(w, err)
		return
	}
	if grant != nil {
		s.afterGrant(*grant)
	}
	writeJSON(w, http.StatusOK, campaignResponse{Campaign: c, Grant: grant})
}

func (s *Server) handleCampaignAbandon(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCampaignRequest(w, r)
	if !ok {
		return
	}

	if err := s.campaigns.Abandon(req.UserID, req.Theme); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
}
