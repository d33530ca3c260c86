// Package twelvedata provides a Twelve Data price client.
// Free tier allows 8 calls/minute; used as the first fallback after Yahoo.
package twelvedata

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
)

const baseURL = "https://api.twelvedata.com"

// Client is a Twelve Data API client
type Client struct {
	client *http.Client
	apiKey string
	log    zerolog.Logger
}

// NewClient creates a new Twelve Data client. An empty apiKey falls back to
// the demo key, which covers a handful of major symbols.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	if apiKey == "" {
		apiKey = "demo"
	}
	return &Client{
		client: &http.Client{Timeout: 10 * time.Second},
		apiKey: apiKey,
		log:    log.With().Str("client", "twelvedata").Logger(),
	}
}

// priceResponse represents the /price endpoint response
type priceResponse struct {
	Price string `json:"price"`
}

// GetCurrentPrice fetches the current price for a symbol.
// The free price endpoint does not include change data.
func (c *Client) GetCurrentPrice(symbol string) (*domain.Quote, error) {
	endpoint := fmt.Sprintf("%s/price?symbol=%s&apikey=%s",
		baseURL, url.QueryEscape(symbol), url.QueryEscape(c.apiKey))

	resp, err := c.client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var pr priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if pr.Price == "" || pr.Price == "N/A" {
		return nil, fmt.Errorf("no price for %s", symbol)
	}

	price, err := strconv.ParseFloat(pr.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q for %s: %w", pr.Price, symbol, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("non-positive price for %s", symbol)
	}

	return &domain.Quote{
		Symbol:      symbol,
		Price:       price,
		LastUpdated: "Current",
		Source:      "Twelve Data",
	}, nil
}
