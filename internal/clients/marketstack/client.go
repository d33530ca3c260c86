// Package marketstack provides a MarketStack end-of-day quote client.
// Free tier allows 1000 calls/month; last in the fallback chain.
package marketstack

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
)

const baseURL = "http://api.marketstack.com/v1"

// Client is a MarketStack API client
type Client struct {
	client    *http.Client
	accessKey string
	log       zerolog.Logger
}

// NewClient creates a new MarketStack client. An empty accessKey falls back to
// the demo key.
func NewClient(accessKey string, log zerolog.Logger) *Client {
	if accessKey == "" {
		accessKey = "demo"
	}
	return &Client{
		client:    &http.Client{Timeout: 10 * time.Second},
		accessKey: accessKey,
		log:       log.With().Str("client", "marketstack").Logger(),
	}
}

// eodResponse represents the eod/latest response
type eodResponse struct {
	Data []struct {
		Symbol string  `json:"symbol"`
		Close  float64 `json:"close"`
		Date   string  `json:"date"`
	} `json:"data"`
}

// GetCurrentPrice fetches the latest end-of-day close for a symbol.
func (c *Client) GetCurrentPrice(symbol string) (*domain.Quote, error) {
	endpoint := fmt.Sprintf("%s/eod/latest?access_key=%s&symbols=%s",
		baseURL, url.QueryEscape(c.accessKey), url.QueryEscape(symbol))

	resp, err := c.client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var eod eodResponse
	if err := json.NewDecoder(resp.Body).Decode(&eod); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(eod.Data) == 0 || eod.Data[0].Close <= 0 {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}

	lastUpdated := "Current"
	if eod.Data[0].Date != "" {
		lastUpdated = eod.Data[0].Date
	}

	return &domain.Quote{
		Symbol:      symbol,
		Price:       eod.Data[0].Close,
		LastUpdated: lastUpdated,
		Source:      "MarketStack",
	}, nil
}
