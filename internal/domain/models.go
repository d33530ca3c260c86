// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical date format for transaction and price dates.
const DateLayout = "2006-01-02"

// DefaultPortfolioName is used when a transaction does not name a portfolio.
const DefaultPortfolioName = "My Investment Portfolio"

// Side represents the direction of a transaction
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// maxNotesLength mirrors the transaction form limit.
const maxNotesLength = 500

// Stock represents a tracked security
type Stock struct {
	ID          int64     `json:"id"`
	Symbol      string    `json:"symbol"`
	CompanyName string    `json:"company_name"`
	Sector      *string   `json:"sector,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PricePoint represents a daily OHLCV price row for a symbol
type PricePoint struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// Transaction represents a buy or sell record in the ledger
type Transaction struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"user_id"`
	PortfolioName string    `json:"portfolio_name"`
	Symbol        string    `json:"symbol"`
	CompanyName   string    `json:"company_name,omitempty"`
	Side          Side      `json:"side"`
	Quantity      float64   `json:"quantity"`
	PricePerShare float64   `json:"price_per_share"`
	Date          string    `json:"date"` // YYYY-MM-DD
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// TotalValue returns quantity * price per share.
func (t Transaction) TotalValue() float64 {
	return t.Quantity * t.PricePerShare
}

// Validate checks transaction fields before database insertion.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if t.Side != SideBuy && t.Side != SideSell {
		return fmt.Errorf("side must be BUY or SELL, got %q", t.Side)
	}
	if t.Quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	if t.PricePerShare <= 0 {
		return fmt.Errorf("price must be positive")
	}
	date, err := time.Parse(DateLayout, t.Date)
	if err != nil {
		return fmt.Errorf("invalid transaction date %q: %w", t.Date, err)
	}
	if date.After(time.Now()) {
		return fmt.Errorf("transaction date cannot be in the future")
	}
	if len(t.Notes) > maxNotesLength {
		return fmt.Errorf("notes cannot exceed %d characters", maxNotesLength)
	}
	return nil
}

// Position represents a derived net holding of a stock.
// Positions are never stored; they are summed from the transaction ledger.
type Position struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"company_name"`
	Sector      *string `json:"sector,omitempty"`
	Quantity    float64 `json:"quantity"`
	AvgCost     float64 `json:"avg_cost"`
	TotalCost   float64 `json:"total_cost"`

	// Enriched with market data when available
	CurrentPrice *float64 `json:"current_price,omitempty"`
	CurrentValue *float64 `json:"current_value,omitempty"`
	GainLoss     *float64 `json:"gain_loss,omitempty"`
	GainLossPct  *float64 `json:"gain_loss_pct,omitempty"`
	PriceSource  string   `json:"price_source,omitempty"`
}

// Quote represents a current price snapshot from a market data provider
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	PrevClose     float64 `json:"prev_close,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	Exchange      string  `json:"exchange,omitempty"`
	MarketStatus  string  `json:"market_status,omitempty"`
	LastUpdated   string  `json:"last_updated,omitempty"`
	Source        string  `json:"source"`
}

// SymbolMatch represents a symbol search result
type SymbolMatch struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Type     string `json:"type"`
	Region   string `json:"region"`
}

// User represents an account holder
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
