// Package webserver exposes the HTTP surface: the provider webhook, the
// gameplay API and the notification WebSocket.
package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/assetgen"
	"github.com/chaosdeck/chaosdeck/internal/campaign"
	"github.com/chaosdeck/chaosdeck/internal/catalog"
	"github.com/chaosdeck/chaosdeck/internal/fault"
	"github.com/chaosdeck/chaosdeck/internal/fusion"
	"github.com/chaosdeck/chaosdeck/internal/ledger"
	"github.com/chaosdeck/chaosdeck/internal/notification"
	"github.com/chaosdeck/chaosdeck/internal/payment"
	"github.com/chaosdeck/chaosdeck/internal/reward"
	"github.com/chaosdeck/chaosdeck/internal/shared/logger"
	"github.com/chaosdeck/chaosdeck/internal/types"
	"go.uber.org/zap"
)

// Server bundles the handlers' collaborators.
type Server struct {
	store      *ledger.Store
	catalog    *catalog.Catalog
	dispatcher *reward.Dispatcher
	fusion     *fusion.Engine
	campaigns  *campaign.Service
	processor  *payment.Processor
	provider   payment.ProviderClient
	assets     assetgen.Generator
	hub        *notification.Hub

	httpServer *http.Server
}

// New wires a server. The hub's Run loop is started here.
func New(store *ledger.Store, cat *catalog.Catalog, dispatcher *reward.Dispatcher, fus *fusion.Engine, campaigns *campaign.Service, processor *payment.Processor, provider payment.ProviderClient, assets assetgen.Generator) *Server {
	s := &Server{
		store:      store,
		catalog:    cat,
		dispatcher: dispatcher,
		fusion:     fus,
		campaigns:  campaigns,
		processor:  processor,
		provider:   provider,
		assets:     assets,
		hub:        notification.NewHub(),
	}
	go s.hub.Run()
	return s
}

// corsMiddleware adds CORS headers to HTTP handlers
func corsMiddleware(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Stripe-Signature")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler(w, r)
	}
}

// Routes builds the route table. Exposed for tests.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/webhook", s.handleWebhook)

	mux.HandleFunc("/api/checkout", corsMiddleware(s.handleCheckout))
	mux.HandleFunc("/api/catalog", corsMiddleware(s.handleCatalog))
	mux.HandleFunc("/api/draw", corsMiddleware(s.handleDraw))
	mux.HandleFunc("/api/fuse", corsMiddleware(s.handleFuse))
	mux.HandleFunc("/api/daily", corsMiddleware(s.handleDaily))
	mux.HandleFunc("/api/campaign/start", corsMiddleware(s.handleCampaignStart))
	mux.HandleFunc("/api/campaign/advance", corsMiddleware(s.handleCampaignAdvance))
	mux.HandleFunc("/api/campaign/abandon", corsMiddleware(s.handleCampaignAbandon))
	mux.HandleFunc("/api/inventory", corsMiddleware(s.handleInventory))

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.hub.HandleWS)

	return mux
}

// Start serves until Shutdown is called.
func (s *Server) Start(port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("Web server starting", zap.Int("port", port))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// afterGrant runs the post-commit side effects of a grant: asset generation
// for freshly minted cards and the WebSocket fanout. Failures here never
// touch the ledger.
func (s *Server) afterGrant(result types.GrantResult) {
	for _, card := range result.Cards {
		go s.generateCardAsset(card)
	}
	s.hub.BroadcastGrant(result)
}

func (s *Server) generateCardAsset(card types.Card) {
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	url, err := s.assets.Generate(ctx, card.Rarity, card.Theme, card.Name)
	if err != nil {
		if !errors.Is(err, assetgen.ErrGenerationFailed) {
			logger.Warn("Card asset generation failed", zap.Error(err), zap.String("card_id", card.ID))
		}
		return
	}
	if err := s.store.SetCardImage(card.UserID, card.ID, url); err != nil {
		logger.Warn("Failed to store card image", zap.Error(err), zap.String("card_id", card.ID))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the fault taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, reward.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, fault.Validation):
		status = http.StatusBadRequest
	case errors.Is(err, fault.Precondition):
		status = http.StatusConflict
	case errors.Is(err, fault.Security):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		http.Error(w, "Internal server error", status)
		return
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
