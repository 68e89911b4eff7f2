// Package assetgen talks to the external image generator. The asset is
// cosmetic: a card is always recorded first, and a generation failure only
// means the card keeps an empty image URL. Never called inside a ledger
// transaction.
package assetgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chaosdeck/chaosdeck/internal/types"
)

// ErrGenerationFailed is returned when the generator cannot produce an asset.
var ErrGenerationFailed = fmt.Errorf("asset generation failed")

// Generator produces an image reference for a card.
type Generator interface {
	Generate(ctx context.Context, rarity types.Rarity, theme, name string) (string, error)
}

// Disabled is the no-op generator used when no endpoint is configured.
type Disabled struct{}

func (Disabled) Generate(ctx context.Context, rarity types.Rarity, theme, name string) (string, error) {
	return "", ErrGenerationFailed
}

// Client calls an HTTP generation endpoint.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

// NewClient builds a generator client. An empty url yields Disabled.
func NewClient(url, apiKey string) Generator {
	if url == "" {
		return Disabled{}
	}
	return &Client{
		url:    url,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type generateResponse struct {
	URL string `json:"url"`
}

func (c *Client) Generate(ctx context.Context, rarity types.Rarity, theme, name string) (string, error) {
	prompt := fmt.Sprintf("Single trading card, %s rarity, themed %q, titled %q, glowing %s borders, anime style",
		rarity, theme, name, rarity)
	body, err := json.Marshal(generateRequest{Prompt: prompt, Width: 512, Height: 768})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrGenerationFailed, resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.URL == "" {
		return "", fmt.Errorf("%w: bad response", ErrGenerationFailed)
	}
	return out.URL, nil
}
