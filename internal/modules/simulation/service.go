// Package simulation answers "what if I had invested X on date Y" questions
// against stored price history.
package simulation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/pkoukos/stockfolio/internal/domain"
)

// tradingDaysPerYear is used to annualize daily return volatility.
const tradingDaysPerYear = 252

// PriceSource supplies stored price history. Implemented by the history
// repository.
type PriceSource interface {
	GetFirstOnOrAfter(symbol, date string) (*domain.PricePoint, error)
	GetLastOnOrBefore(symbol, date string) (*domain.PricePoint, error)
	GetRange(symbol, startDate, endDate string) ([]domain.PricePoint, error)
}

// PriceUpdater backfills missing history from the provider chain before a
// simulation gives up on a symbol.
type PriceUpdater interface {
	UpdateStockPrices(symbol string, daysBack int) (int, error)
}

// Request describes a historical simulation
type Request struct {
	Symbols           []string `json:"symbols"`
	StartDate         string   `json:"start_date"`
	EndDate           string   `json:"end_date"`
	InitialInvestment float64  `json:"initial_investment"`
}

// SymbolResult is the outcome for one symbol in a simulation. A symbol with
// no usable price data carries an Error and zero values; the aggregate
// ignores it.
type SymbolResult struct {
	Symbol      string  `json:"symbol"`
	Invested    float64 `json:"invested"`
	StartDate   string  `json:"start_date,omitempty"`
	EndDate     string  `json:"end_date,omitempty"`
	StartPrice  float64 `json:"start_price,omitempty"`
	EndPrice    float64 `json:"end_price,omitempty"`
	Shares      float64 `json:"shares,omitempty"`
	FinalValue  float64 `json:"final_value"`
	GainLoss    float64 `json:"gain_loss"`
	GainLossPct float64 `json:"gain_loss_pct"`

	// Risk stats over the window's daily closes, when enough data exists
	AnnualizedVolatilityPct *float64 `json:"annualized_volatility_pct,omitempty"`
	MaxDrawdownPct          *float64 `json:"max_drawdown_pct,omitempty"`

	Error string `json:"error,omitempty"`
}

// Result is the aggregate simulation outcome
type Result struct {
	StartDate         string         `json:"start_date"`
	EndDate           string         `json:"end_date"`
	InitialInvestment float64        `json:"initial_investment"`
	AmountInvested    float64        `json:"amount_invested"`
	FinalValue        float64        `json:"final_value"`
	GainLoss          float64        `json:"gain_loss"`
	GainLossPct       float64        `json:"gain_loss_pct"`
	Symbols           []SymbolResult `json:"symbols"`
}

// Service runs historical simulations
type Service struct {
	prices  PriceSource
	updater PriceUpdater
	log     zerolog.Logger
}

// NewService creates a simulation service. updater may be nil; then only
// already-stored history is consulted.
func NewService(prices PriceSource, updater PriceUpdater, log zerolog.Logger) *Service {
	return &Service{
		prices:  prices,
		updater: updater,
		log:     log.With().Str("service", "simulation").Logger(),
	}
}

// Run splits the investment equally across symbols and values each slice
// from the first close at or after the start date to the last close at or
// before the end date. Symbols without data get an error entry; the rest of
// the simulation continues.
func (s *Service) Run(req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	perSymbol := req.InitialInvestment / float64(len(req.Symbols))

	result := &Result{
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		InitialInvestment: req.InitialInvestment,
	}

	for _, raw := range req.Symbols {
		symbol := strings.ToUpper(strings.TrimSpace(raw))
		sr := s.simulateSymbol(symbol, perSymbol, req.StartDate, req.EndDate)
		result.Symbols = append(result.Symbols, sr)

		if sr.Error != "" {
			continue
		}
		result.AmountInvested += sr.Invested
		result.FinalValue += sr.FinalValue
	}

	result.GainLoss = round2(result.FinalValue - result.AmountInvested)
	if result.AmountInvested > 0 {
		result.GainLossPct = round2(result.GainLoss / result.AmountInvested * 100)
	}
	result.AmountInvested = round2(result.AmountInvested)
	result.FinalValue = round2(result.FinalValue)

	return result, nil
}

func (s *Service) simulateSymbol(symbol string, invested float64, startDate, endDate string) SymbolResult {
	sr := SymbolResult{Symbol: symbol, Invested: round2(invested)}

	start, err := s.startPrice(symbol, startDate)
	if err != nil {
		sr.Error = err.Error()
		sr.Invested = 0
		return sr
	}

	end, err := s.prices.GetLastOnOrBefore(symbol, endDate)
	if err != nil || end == nil || end.Close <= 0 {
		sr.Error = fmt.Sprintf("no price data for %s at or before %s", symbol, endDate)
		sr.Invested = 0
		return sr
	}

	// The end close must not predate the start close; an inverted window
	// means the symbol only has data outside the simulation range.
	if end.Date < start.Date {
		sr.Error = fmt.Sprintf("no price data for %s between %s and %s", symbol, startDate, endDate)
		sr.Invested = 0
		return sr
	}

	shares := invested / start.Close

	sr.StartDate = start.Date
	sr.EndDate = end.Date
	sr.StartPrice = start.Close
	sr.EndPrice = end.Close
	sr.Shares = shares
	sr.FinalValue = round2(shares * end.Close)
	sr.GainLoss = round2(sr.FinalValue - invested)
	sr.GainLossPct = round2(sr.GainLoss / invested * 100)

	s.attachRiskStats(&sr, symbol, start.Date, end.Date)

	return sr
}

// startPrice finds the first close at or after the start date, backfilling
// history from the providers when nothing is stored yet.
func (s *Service) startPrice(symbol, startDate string) (*domain.PricePoint, error) {
	start, err := s.prices.GetFirstOnOrAfter(symbol, startDate)
	if err != nil {
		return nil, fmt.Errorf("failed to read price history for %s", symbol)
	}
	if start != nil && start.Close > 0 {
		return start, nil
	}

	if s.updater != nil {
		daysBack := daysSince(startDate) + 7
		if _, err := s.updater.UpdateStockPrices(symbol, daysBack); err != nil {
			s.log.Debug().Err(err).Str("symbol", symbol).Msg("History backfill failed")
		}
		start, err = s.prices.GetFirstOnOrAfter(symbol, startDate)
		if err == nil && start != nil && start.Close > 0 {
			return start, nil
		}
	}

	return nil, fmt.Errorf("no price data for %s at or after %s", symbol, startDate)
}

// attachRiskStats computes annualized volatility and max drawdown from the
// daily closes inside the window. Windows with fewer than 3 closes are left
// without stats.
func (s *Service) attachRiskStats(sr *SymbolResult, symbol, startDate, endDate string) {
	points, err := s.prices.GetRange(symbol, startDate, endDate)
	if err != nil || len(points) < 3 {
		return
	}

	returns := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Close
		if prev <= 0 {
			continue
		}
		returns = append(returns, points[i].Close/prev-1)
	}
	if len(returns) < 2 {
		return
	}

	vol := stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear) * 100
	vol = round2(vol)
	sr.AnnualizedVolatilityPct = &vol

	drawdown := round2(maxDrawdown(points) * 100)
	sr.MaxDrawdownPct = &drawdown
}

// maxDrawdown returns the largest peak-to-trough decline as a positive
// fraction.
func maxDrawdown(points []domain.PricePoint) float64 {
	var peak, worst float64
	for _, p := range points {
		if p.Close > peak {
			peak = p.Close
		}
		if peak > 0 {
			dd := (peak - p.Close) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

func validate(req Request) error {
	if len(req.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if req.InitialInvestment <= 0 {
		return fmt.Errorf("initial investment must be positive")
	}

	start, err := time.Parse(domain.DateLayout, req.StartDate)
	if err != nil {
		return fmt.Errorf("invalid start date %q", req.StartDate)
	}
	end, err := time.Parse(domain.DateLayout, req.EndDate)
	if err != nil {
		return fmt.Errorf("invalid end date %q", req.EndDate)
	}
	if !start.Before(end) {
		return fmt.Errorf("start date must be before end date")
	}

	return nil
}

func daysSince(date string) int {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return 365
	}
	return int(time.Since(t).Hours() / 24)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
