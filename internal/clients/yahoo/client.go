// Package yahoo provides a Yahoo Finance API client.
// Yahoo is the primary market data source: quotes, daily history, and symbol search.
package yahoo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
)

const baseURL = "https://query1.finance.yahoo.com"

// Browser-like user agent; Yahoo rejects default Go clients.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Client is a Yahoo Finance API client
type Client struct {
	client *http.Client
	log    zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// chartResponse represents the response from the Yahoo chart API
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string   `json:"currency"`
				ExchangeName       string   `json:"exchangeName"`
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				PreviousClose      *float64 `json:"previousClose"`
				RegularMarketTime  int64    `json:"regularMarketTime"`
				MarketState        string   `json:"marketState"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// GetCurrentPrice fetches the current quote for a symbol from the chart API meta.
func (c *Client) GetCurrentPrice(symbol string) (*domain.Quote, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", baseURL, url.PathEscape(symbol))

	var resp chartResponse
	if err := c.getJSON(endpoint, &resp); err != nil {
		return nil, err
	}

	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no chart data found for %s", symbol)
	}

	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice == nil || *meta.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("invalid price data for %s", symbol)
	}

	price := *meta.RegularMarketPrice
	prevClose := price
	if meta.PreviousClose != nil && *meta.PreviousClose > 0 {
		prevClose = *meta.PreviousClose
	}

	change := price - prevClose
	changePct := 0.0
	if prevClose > 0 {
		changePct = change / prevClose * 100
	}

	lastUpdated := "Live"
	if meta.RegularMarketTime > 0 {
		lastUpdated = time.Unix(meta.RegularMarketTime, 0).Format("3:04 PM")
	}

	return &domain.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePct,
		PrevClose:     prevClose,
		Currency:      meta.Currency,
		Exchange:      meta.ExchangeName,
		MarketStatus:  marketStatus(meta.MarketState),
		LastUpdated:   lastUpdated,
		Source:        "Yahoo Finance",
	}, nil
}

// GetDailyHistory fetches daily OHLCV rows covering the last daysBack days.
// Rows with a null close are dropped; null open/high/low fall back to the close.
func (c *Client) GetDailyHistory(symbol string, daysBack int) ([]domain.PricePoint, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -daysBack)

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		baseURL, url.PathEscape(symbol), start.Unix(), end.Unix())

	var resp chartResponse
	if err := c.getJSON(endpoint, &resp); err != nil {
		return nil, err
	}

	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("no historical data found for %s", symbol)
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("no quote indicators for %s", symbol)
	}
	quote := result.Indicators.Quote[0]

	points := make([]domain.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == nil {
			continue
		}
		closePrice := *quote.Close[i]

		p := domain.PricePoint{
			Symbol: symbol,
			Date:   time.Unix(ts, 0).UTC().Format(domain.DateLayout),
			Open:   closePrice,
			High:   closePrice,
			Low:    closePrice,
			Close:  closePrice,
		}
		if i < len(quote.Open) && quote.Open[i] != nil {
			p.Open = *quote.Open[i]
		}
		if i < len(quote.High) && quote.High[i] != nil {
			p.High = *quote.High[i]
		}
		if i < len(quote.Low) && quote.Low[i] != nil {
			p.Low = *quote.Low[i]
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			p.Volume = *quote.Volume[i]
		}
		points = append(points, p)
	}

	return points, nil
}

// searchResponse represents the response from the Yahoo search API
type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		LongName  string `json:"longname"`
		ShortName string `json:"shortname"`
		Exchange  string `json:"exchange"`
		TypeDisp  string `json:"typeDisp"`
	} `json:"quotes"`
}

// Search finds equity symbols matching a query. Only equities are returned,
// capped at 10 results.
func (c *Client) Search(query string) ([]domain.SymbolMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=10&newsCount=0",
		baseURL, url.QueryEscape(query))

	var resp searchResponse
	if err := c.getJSON(endpoint, &resp); err != nil {
		return nil, err
	}

	var results []domain.SymbolMatch
	for _, q := range resp.Quotes {
		if q.TypeDisp != "Equity" {
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		region := "Other"
		if strings.HasSuffix(q.Exchange, "Q") || strings.Contains(q.Exchange, "NAS") {
			region = "United States"
		}
		results = append(results, domain.SymbolMatch{
			Symbol:   q.Symbol,
			Name:     name,
			Exchange: q.Exchange,
			Type:     q.TypeDisp,
			Region:   region,
		})
		if len(results) >= 10 {
			break
		}
	}

	return results, nil
}

// marketStatus converts a Yahoo market state to a display label.
func marketStatus(state string) string {
	switch state {
	case "REGULAR":
		return "Open"
	case "PRE":
		return "Pre-Market"
	case "POST":
		return "Post-Market"
	default:
		return "Closed"
	}
}

// getJSON performs a GET request and decodes the JSON response into out.
func (c *Client) getJSON(endpoint string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
