// Package portfolio derives positions and valuations from the transaction
// ledger. Nothing here is stored; every view is recomputed from transactions.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
)

// TransactionSource supplies ledger rows. Implemented by the ledger
// repository.
type TransactionSource interface {
	ListByUser(userID int64, portfolioName string) ([]domain.Transaction, error)
	Recent(userID int64, limit int) ([]domain.Transaction, error)
}

// QuoteSource supplies current prices. Implemented by the market data
// service.
type QuoteSource interface {
	GetMultipleQuotes(symbols []string) map[string]*domain.Quote
}

// StockInfo supplies sector and company metadata. Implemented by the
// universe repository.
type StockInfo interface {
	GetBySymbol(symbol string) (*domain.Stock, error)
}

// Summary aggregates ledger totals for a user's portfolio.
type Summary struct {
	TotalInvested    float64 `json:"total_invested"`
	TotalReceived    float64 `json:"total_received"`
	NetInvested      float64 `json:"net_invested"`
	CurrentValue     float64 `json:"current_value"`
	TotalGainLoss    float64 `json:"total_gain_loss"`
	TotalGainLossPct float64 `json:"total_gain_loss_pct"`
	Companies        int     `json:"companies"`
	Transactions     int     `json:"transactions"`
}

// Holding is a position with valuation and ownership details for display.
type Holding struct {
	Symbol         string   `json:"symbol"`
	CompanyName    string   `json:"company_name"`
	Sector         *string  `json:"sector,omitempty"`
	Quantity       float64  `json:"quantity"`
	EntryPrice     float64  `json:"entry_price"`
	TotalCost      float64  `json:"total_cost"`
	CurrentPrice   *float64 `json:"current_price,omitempty"`
	CurrentValue   *float64 `json:"current_value,omitempty"`
	PerformancePct *float64 `json:"performance_pct,omitempty"`
	WeightPct      float64  `json:"weight_pct"`
	FirstPurchase  string   `json:"first_purchase"`
	TimeOwned      string   `json:"time_owned"`
	PriceSource    string   `json:"price_source,omitempty"`
}

// Dashboard is the combined payload the main view renders from.
type Dashboard struct {
	Summary            Summary              `json:"summary"`
	Positions          []domain.Position    `json:"positions"`
	Holdings           []Holding            `json:"holdings"`
	RecentTransactions []domain.Transaction `json:"recent_transactions"`
}

// Service computes portfolio views
type Service struct {
	transactions TransactionSource
	quotes       QuoteSource
	stocks       StockInfo
	log          zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(transactions TransactionSource, quotes QuoteSource, stocks StockInfo, log zerolog.Logger) *Service {
	return &Service{
		transactions: transactions,
		quotes:       quotes,
		stocks:       stocks,
		log:          log.With().Str("service", "portfolio").Logger(),
	}
}

// GetPositions derives net positions from the user's ledger. Sells reduce
// cost basis at the running average cost. Positions that net out to zero or
// below are dropped.
func (s *Service) GetPositions(userID int64, portfolioName string) ([]domain.Position, error) {
	transactions, err := s.transactions.ListByUser(userID, portfolioName)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	return derivePositions(transactions), nil
}

// GetSummary returns ledger totals plus current valuation when prices are
// available.
func (s *Service) GetSummary(userID int64, portfolioName string) (*Summary, error) {
	transactions, err := s.transactions.ListByUser(userID, portfolioName)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	summary := &Summary{Transactions: len(transactions)}
	for _, tx := range transactions {
		switch tx.Side {
		case domain.SideBuy:
			summary.TotalInvested += tx.TotalValue()
		case domain.SideSell:
			summary.TotalReceived += tx.TotalValue()
		}
	}
	summary.NetInvested = summary.TotalInvested - summary.TotalReceived

	positions := derivePositions(transactions)
	summary.Companies = len(positions)

	s.enrichPositions(positions)

	var totalCost, currentValue float64
	valued := false
	for i := range positions {
		if positions[i].CurrentValue == nil {
			continue
		}
		valued = true
		totalCost += positions[i].TotalCost
		currentValue += *positions[i].CurrentValue
	}
	if valued {
		summary.CurrentValue = round2(currentValue)
		summary.TotalGainLoss = round2(currentValue - totalCost)
		if totalCost > 0 {
			summary.TotalGainLossPct = round2((currentValue - totalCost) / totalCost * 100)
		}
	}

	summary.TotalInvested = round2(summary.TotalInvested)
	summary.TotalReceived = round2(summary.TotalReceived)
	summary.NetInvested = round2(summary.NetInvested)

	return summary, nil
}

// GetHoldings returns enriched holdings with weights and ownership duration.
func (s *Service) GetHoldings(userID int64, portfolioName string) ([]Holding, error) {
	transactions, err := s.transactions.ListByUser(userID, portfolioName)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	return s.buildHoldings(transactions), nil
}

// GetDashboard assembles the combined dashboard payload.
func (s *Service) GetDashboard(userID int64, portfolioName string) (*Dashboard, error) {
	transactions, err := s.transactions.ListByUser(userID, portfolioName)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	positions := derivePositions(transactions)
	s.enrichPositions(positions)

	summary, err := s.GetSummary(userID, portfolioName)
	if err != nil {
		return nil, err
	}

	recent, err := s.transactions.Recent(userID, 10)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent transactions: %w", err)
	}
	if recent == nil {
		recent = []domain.Transaction{}
	}

	holdings := s.buildHoldings(transactions)

	return &Dashboard{
		Summary:            *summary,
		Positions:          positions,
		Holdings:           holdings,
		RecentTransactions: recent,
	}, nil
}

// derivePositions folds the ledger into net positions, oldest first so the
// average cost tracks purchase order.
func derivePositions(transactions []domain.Transaction) []domain.Position {
	ordered := make([]domain.Transaction, len(transactions))
	copy(ordered, transactions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Date != ordered[j].Date {
			return ordered[i].Date < ordered[j].Date
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	type running struct {
		quantity    float64
		totalCost   float64
		companyName string
	}
	books := make(map[string]*running)

	for _, tx := range ordered {
		book, ok := books[tx.Symbol]
		if !ok {
			book = &running{}
			books[tx.Symbol] = book
		}
		if tx.CompanyName != "" {
			book.companyName = tx.CompanyName
		}

		switch tx.Side {
		case domain.SideBuy:
			book.quantity += tx.Quantity
			book.totalCost += tx.TotalValue()
		case domain.SideSell:
			if book.quantity > 0 {
				avgCost := book.totalCost / book.quantity
				book.totalCost -= tx.Quantity * avgCost
			}
			book.quantity -= tx.Quantity
			if book.quantity <= 0 {
				book.quantity = 0
				book.totalCost = 0
			}
		}
	}

	var positions []domain.Position
	for symbol, book := range books {
		if book.quantity <= 1e-9 {
			continue
		}
		positions = append(positions, domain.Position{
			Symbol:      symbol,
			CompanyName: book.companyName,
			Quantity:    book.quantity,
			AvgCost:     round2(book.totalCost / book.quantity),
			TotalCost:   round2(book.totalCost),
		})
	}

	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})

	return positions
}

// enrichPositions attaches current prices and gain/loss where quotes are
// available. Failed symbols keep nil valuation fields.
func (s *Service) enrichPositions(positions []domain.Position) {
	if s.quotes == nil || len(positions) == 0 {
		return
	}

	symbols := make([]string, len(positions))
	for i := range positions {
		symbols[i] = positions[i].Symbol
	}

	quotes := s.quotes.GetMultipleQuotes(symbols)

	for i := range positions {
		p := &positions[i]

		if s.stocks != nil {
			if stock, err := s.stocks.GetBySymbol(p.Symbol); err == nil && stock != nil {
				p.Sector = stock.Sector
				if p.CompanyName == "" {
					p.CompanyName = stock.CompanyName
				}
			}
		}

		quote, ok := quotes[p.Symbol]
		if !ok || quote == nil {
			continue
		}

		price := quote.Price
		value := round2(price * p.Quantity)
		gain := round2(value - p.TotalCost)
		p.CurrentPrice = &price
		p.CurrentValue = &value
		p.GainLoss = &gain
		if p.TotalCost > 0 {
			pct := round2(gain / p.TotalCost * 100)
			p.GainLossPct = &pct
		}
		p.PriceSource = quote.Source
	}
}

func (s *Service) buildHoldings(transactions []domain.Transaction) []Holding {
	positions := derivePositions(transactions)
	s.enrichPositions(positions)

	firstPurchase := make(map[string]string)
	for _, tx := range transactions {
		if tx.Side != domain.SideBuy {
			continue
		}
		if existing, ok := firstPurchase[tx.Symbol]; !ok || tx.Date < existing {
			firstPurchase[tx.Symbol] = tx.Date
		}
	}

	var portfolioValue float64
	for i := range positions {
		if positions[i].CurrentValue != nil {
			portfolioValue += *positions[i].CurrentValue
		} else {
			portfolioValue += positions[i].TotalCost
		}
	}

	holdings := make([]Holding, 0, len(positions))
	for _, p := range positions {
		h := Holding{
			Symbol:        p.Symbol,
			CompanyName:   p.CompanyName,
			Sector:        p.Sector,
			Quantity:      p.Quantity,
			EntryPrice:    p.AvgCost,
			TotalCost:     p.TotalCost,
			CurrentPrice:  p.CurrentPrice,
			CurrentValue:  p.CurrentValue,
			FirstPurchase: firstPurchase[p.Symbol],
			PriceSource:   p.PriceSource,
		}

		if p.GainLossPct != nil {
			h.PerformancePct = p.GainLossPct
		}

		if portfolioValue > 0 {
			value := p.TotalCost
			if p.CurrentValue != nil {
				value = *p.CurrentValue
			}
			h.WeightPct = round2(value / portfolioValue * 100)
		}

		if h.FirstPurchase != "" {
			if first, err := time.Parse(domain.DateLayout, h.FirstPurchase); err == nil {
				h.TimeOwned = humanizeTimeOwned(time.Since(first))
			}
		}

		holdings = append(holdings, h)
	}

	return holdings
}

// humanizeTimeOwned renders an ownership duration the way the dashboard
// shows it: days under a month, months under a year, then years and months.
func humanizeTimeOwned(d time.Duration) string {
	days := int(d.Hours() / 24)
	if days < 0 {
		days = 0
	}

	switch {
	case days < 1:
		return "Today"
	case days == 1:
		return "1 day"
	case days < 30:
		return fmt.Sprintf("%d days", days)
	case days < 365:
		months := days / 30
		if months == 1 {
			return "1 month"
		}
		return fmt.Sprintf("%d months", months)
	default:
		years := days / 365
		months := (days % 365) / 30
		parts := []string{}
		if years == 1 {
			parts = append(parts, "1 year")
		} else {
			parts = append(parts, fmt.Sprintf("%d years", years))
		}
		if months == 1 {
			parts = append(parts, "1 month")
		} else if months > 1 {
			parts = append(parts, fmt.Sprintf("%d months", months))
		}
		return strings.Join(parts, ", ")
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
