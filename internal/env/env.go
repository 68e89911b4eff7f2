package env

import (
	"os"
	"strconv"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/shared/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Env holds all process configuration. Populated once by LoadEnv.
type Env struct {
	ServerPort        int
	DBPath            string
	WebhookSecret     string
	WebhookTolerance  time.Duration
	CheckoutBaseURL   string
	AssetGenURL       string
	AssetGenAPIKey    string
	DrawCooldown      time.Duration
	DrawConfigPath    string
	CatalogPath       string
	DebugMode         bool
}

// Value is the loaded configuration. Zero until LoadEnv runs.
var Value Env

// LoadEnv reads .env (if present) and the process environment into Value.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using process environment", zap.Error(err))
	}

	Value = Env{
		ServerPort:       getInt("SERVER_PORT", 8080),
		DBPath:           getString("DB_PATH", "./data/chaosdeck.db"),
		WebhookSecret:    getString("STRIPE_WEBHOOK_SECRET", ""),
		WebhookTolerance: getDuration("WEBHOOK_TOLERANCE", 5*time.Minute),
		CheckoutBaseURL:  getString("CHECKOUT_BASE_URL", "https://checkout.stripe.com/c/pay"),
		AssetGenURL:      getString("ASSET_GEN_URL", ""),
		AssetGenAPIKey:   getString("ASSET_GEN_API_KEY", ""),
		DrawCooldown:     getDuration("DRAW_COOLDOWN", 10*time.Second),
		DrawConfigPath:   getString("DRAW_CONFIG_PATH", ""),
		CatalogPath:      getString("CATALOG_PATH", ""),
		DebugMode:        getBool("DEBUG_MODE", false),
	}

	if Value.WebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET is not set; webhook verification will reject all events")
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("Invalid integer in environment", zap.String("key", key), zap.String("value", v))
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("Invalid duration in environment", zap.String("key", key), zap.String("value", v))
		return fallback
	}
	return d
}
