package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/achievement"
	"github.com/chaosdeck/chaosdeck/internal/assetgen"
	"github.com/chaosdeck/chaosdeck/internal/campaign"
	"github.com/chaosdeck/chaosdeck/internal/catalog"
	"github.com/chaosdeck/chaosdeck/internal/env"
	"github.com/chaosdeck/chaosdeck/internal/fusion"
	"github.com/chaosdeck/chaosdeck/internal/gacha"
	"github.com/chaosdeck/chaosdeck/internal/ledger"
	"github.com/chaosdeck/chaosdeck/internal/payment"
	"github.com/chaosdeck/chaosdeck/internal/reward"
	"github.com/chaosdeck/chaosdeck/internal/shared/logger"
	"github.com/chaosdeck/chaosdeck/internal/webserver"
	"go.uber.org/zap"
)

func main() {
	logger.Init(false)
	defer logger.Sync()

	logger.Info("Starting chaosdeck server")

	env.LoadEnv()
	if env.Value.DebugMode {
		logger.Init(true)
		logger.Info("Debug mode enabled")
	}

	if dir := filepath.Dir(env.Value.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal("Failed to create data directory", zap.Error(err))
		}
	}

	store, err := ledger.Open(env.Value.DBPath)
	if err != nil {
		logger.Fatal("Failed to open ledger database", zap.Error(err))
	}
	defer store.Close()

	drawCfg, err := gacha.LoadConfig(env.Value.DrawConfigPath)
	if err != nil {
		logger.Fatal("Failed to load draw config", zap.Error(err))
	}
	cat, err := catalog.Load(env.Value.CatalogPath)
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.Error(err))
	}

	gachaEngine := gacha.NewEngine(drawCfg, gacha.DefaultRNG())
	evaluator := achievement.NewEvaluator()
	dispatcher := reward.NewDispatcher(store, gachaEngine, evaluator, env.Value.DrawCooldown)
	fusionEngine := fusion.NewEngine(store, gachaEngine, evaluator)
	campaigns := campaign.NewService(store, dispatcher)
	processor := payment.NewProcessor(store, cat, dispatcher, env.Value.WebhookSecret, env.Value.WebhookTolerance)
	provider := payment.LocalProvider{BaseURL: env.Value.CheckoutBaseURL}
	assets := assetgen.NewClient(env.Value.AssetGenURL, env.Value.AssetGenAPIKey)

	server := webserver.New(store, cat, dispatcher, fusionEngine, campaigns, processor, provider, assets)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(env.Value.ServerPort)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Fatal("Web server failed", zap.Error(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
