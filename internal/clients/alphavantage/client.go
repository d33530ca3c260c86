// Package alphavantage provides an Alpha Vantage GLOBAL_QUOTE client.
package alphavantage

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
)

const baseURL = "https://www.alphavantage.co/query"

// Client is an Alpha Vantage API client
type Client struct {
	client *http.Client
	apiKey string
	log    zerolog.Logger
}

// NewClient creates a new Alpha Vantage client. An empty apiKey falls back to
// the demo key (very limited symbol coverage).
func NewClient(apiKey string, log zerolog.Logger) *Client {
	if apiKey == "" {
		apiKey = "demo"
	}
	return &Client{
		client: &http.Client{Timeout: 10 * time.Second},
		apiKey: apiKey,
		log:    log.With().Str("client", "alphavantage").Logger(),
	}
}

// globalQuoteResponse represents the GLOBAL_QUOTE response.
// Alpha Vantage prefixes field names with ordinal numbers.
type globalQuoteResponse struct {
	GlobalQuote struct {
		Price            string `json:"05. price"`
		LatestTradingDay string `json:"07. latest trading day"`
		Change           string `json:"09. change"`
		ChangePercent    string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// GetCurrentPrice fetches the latest quote for a symbol.
func (c *Client) GetCurrentPrice(symbol string) (*domain.Quote, error) {
	endpoint := fmt.Sprintf("%s?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		baseURL, url.QueryEscape(symbol), url.QueryEscape(c.apiKey))

	resp, err := c.client.Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var gq globalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&gq); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if gq.GlobalQuote.Price == "" {
		return nil, fmt.Errorf("no quote for %s", symbol)
	}

	price, err := strconv.ParseFloat(gq.GlobalQuote.Price, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q for %s: %w", gq.GlobalQuote.Price, symbol, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("non-positive price for %s", symbol)
	}

	change, _ := strconv.ParseFloat(gq.GlobalQuote.Change, 64)
	changePct, _ := strconv.ParseFloat(strings.TrimSuffix(gq.GlobalQuote.ChangePercent, "%"), 64)

	return &domain.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePct,
		LastUpdated:   gq.GlobalQuote.LatestTradingDay,
		Source:        "Alpha Vantage",
	}, nil
}
