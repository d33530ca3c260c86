// Package fmp provides a Financial Modeling Prep quote client.
// Free tier allows 250 calls/day.
package fmp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
)

const baseURL = "https://financialmodelingprep.com/api/v3"

// Client is a Financial Modeling Prep API client
type Client struct {
	client *http.Client
	apiKey string
	log    zerolog.Logger
}

// NewClient creates a new FMP client. An empty apiKey falls back to the demo key.
func NewClient(apiKey string, log zerolog.Logger) *Client {
	if apiKey == "" {
		apiKey = "demo"
	}
	return &Client{
		client: &http.Client{Timeout: 10 * time.Second},
		apiKey: apiKey,
		log:    log.With().Str("client", "fmp").Logger(),
	}
}

// shortQuote represents one entry of the quote-short response
type shortQuote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// GetCurrentPrice fetches the current price for a symbol via quote-short.
func (c *Client) GetCurrentPrice(symbol string) (*domain.Quote, error) {
	endpoint := fmt.Sprintf("%s/quote-short/%s?apikey=%s",
		baseURL, url.PathEscape(symbol), url.QueryEscape(c.apiKey))

	resp, err := c.client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var quotes []shortQuote
	if err := json.NewDecoder(resp.Body).Decode(&quotes); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(quotes) == 0 || quotes[0].Price <= 0 {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}

	return &domain.Quote{
		Symbol:      symbol,
		Price:       quotes[0].Price,
		LastUpdated: "Current",
		Source:      "Financial Modeling Prep",
	}, nil
}
