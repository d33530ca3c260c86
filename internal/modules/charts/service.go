// Package charts builds time series for the dashboard's graphs.
package charts

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	talib "github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
)

// Window identifies a chart time range
type Window string

const (
	Window1W Window = "1W"
	Window1M Window = "1M"
	Window6M Window = "6M"
	Window1Y Window = "1Y"
)

// windowSpec maps a window to its day span and SMA period. A zero SMA
// period means the window is too short for a meaningful overlay.
var windowSpec = map[Window]struct {
	days      int
	smaPeriod int
}{
	Window1W: {7, 0},
	Window1M: {30, 5},
	Window6M: {182, 20},
	Window1Y: {365, 50},
}

// PositionSource supplies derived positions. Implemented by the portfolio
// service.
type PositionSource interface {
	GetPositions(userID int64, portfolioName string) ([]domain.Position, error)
}

// PriceSource supplies stored price history. Implemented by the history
// repository.
type PriceSource interface {
	GetRange(symbol, startDate, endDate string) ([]domain.PricePoint, error)
}

// QuoteSource supplies current prices for allocation weighting.
type QuoteSource interface {
	GetMultipleQuotes(symbols []string) map[string]*domain.Quote
}

// StockInfo supplies sector metadata
type StockInfo interface {
	GetBySymbol(symbol string) (*domain.Stock, error)
}

// SeriesPoint is one date/value pair in a chart series
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// PortfolioSeries is the portfolio value chart payload
type PortfolioSeries struct {
	Window Window        `json:"window"`
	Points []SeriesPoint `json:"points"`
}

// StockSeries is a single stock's close series with an optional SMA overlay
type StockSeries struct {
	Symbol string        `json:"symbol"`
	Window Window        `json:"window"`
	Points []SeriesPoint `json:"points"`
	SMA    []SeriesPoint `json:"sma,omitempty"`
}

// SectorSlice is one sector's share of the portfolio
type SectorSlice struct {
	Sector string  `json:"sector"`
	Value  float64 `json:"value"`
	Pct    float64 `json:"pct"`
}

// Service computes chart series
type Service struct {
	positions PositionSource
	prices    PriceSource
	quotes    QuoteSource
	stocks    StockInfo
	log       zerolog.Logger
}

// NewService creates a new charts service
func NewService(positions PositionSource, prices PriceSource, quotes QuoteSource, stocks StockInfo, log zerolog.Logger) *Service {
	return &Service{
		positions: positions,
		prices:    prices,
		quotes:    quotes,
		stocks:    stocks,
		log:       log.With().Str("service", "charts").Logger(),
	}
}

// ParseWindow validates a window string, defaulting to 1M.
func ParseWindow(s string) (Window, error) {
	if s == "" {
		return Window1M, nil
	}
	w := Window(strings.ToUpper(s))
	if _, ok := windowSpec[w]; !ok {
		return "", fmt.Errorf("invalid window %q, want one of 1W, 1M, 6M, 1Y", s)
	}
	return w, nil
}

// PortfolioValue returns the portfolio's total value per trading date in the
// window. Current position quantities are applied across the whole range;
// symbols without a close on a date carry their last known price forward.
func (s *Service) PortfolioValue(userID int64, portfolioName string, window Window) (*PortfolioSeries, error) {
	positions, err := s.positions.GetPositions(userID, portfolioName)
	if err != nil {
		return nil, err
	}

	series := &PortfolioSeries{Window: window, Points: []SeriesPoint{}}
	if len(positions) == 0 {
		return series, nil
	}

	startDate, endDate := windowRange(window)

	// Collect each symbol's closes and the union of trading dates
	closesBySymbol := make(map[string]map[string]float64, len(positions))
	dateSet := make(map[string]struct{})
	for _, p := range positions {
		points, err := s.prices.GetRange(p.Symbol, startDate, endDate)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", p.Symbol).Msg("Failed to load chart prices")
			continue
		}
		closes := make(map[string]float64, len(points))
		for _, pt := range points {
			closes[pt.Date] = pt.Close
			dateSet[pt.Date] = struct{}{}
		}
		closesBySymbol[p.Symbol] = closes
	}

	dates := sortedDates(dateSet)
	lastKnown := make(map[string]float64, len(positions))

	for _, date := range dates {
		var total float64
		for _, p := range positions {
			if close, ok := closesBySymbol[p.Symbol][date]; ok {
				lastKnown[p.Symbol] = close
			}
			total += p.Quantity * lastKnown[p.Symbol]
		}
		series.Points = append(series.Points, SeriesPoint{Date: date, Value: round2(total)})
	}

	return series, nil
}

// StockSeries returns a symbol's close series with an SMA overlay when the
// window is long enough.
func (s *Service) StockSeries(symbol string, window Window) (*StockSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	startDate, endDate := windowRange(window)
	points, err := s.prices.GetRange(symbol, startDate, endDate)
	if err != nil {
		return nil, err
	}

	series := &StockSeries{Symbol: symbol, Window: window, Points: []SeriesPoint{}}

	closes := make([]float64, 0, len(points))
	for _, p := range points {
		series.Points = append(series.Points, SeriesPoint{Date: p.Date, Value: p.Close})
		closes = append(closes, p.Close)
	}

	period := windowSpec[window].smaPeriod
	if period > 0 && len(closes) >= period {
		sma := talib.Sma(closes, period)
		// talib pads the warmup with zeros; emit only the valid tail
		for i := period - 1; i < len(sma); i++ {
			series.SMA = append(series.SMA, SeriesPoint{Date: points[i].Date, Value: round2(sma[i])})
		}
	}

	return series, nil
}

// SectorAllocation breaks the portfolio down by sector, weighted by current
// value where quotes are available and by cost basis otherwise.
func (s *Service) SectorAllocation(userID int64, portfolioName string) ([]SectorSlice, error) {
	positions, err := s.positions.GetPositions(userID, portfolioName)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return []SectorSlice{}, nil
	}

	symbols := make([]string, len(positions))
	for i, p := range positions {
		symbols[i] = p.Symbol
	}

	var quotes map[string]*domain.Quote
	if s.quotes != nil {
		quotes = s.quotes.GetMultipleQuotes(symbols)
	}

	totals := make(map[string]float64)
	var portfolioValue float64
	for _, p := range positions {
		value := p.TotalCost
		if quote, ok := quotes[p.Symbol]; ok && quote != nil {
			value = quote.Price * p.Quantity
		}

		sector := "Unknown"
		if s.stocks != nil {
			if stock, err := s.stocks.GetBySymbol(p.Symbol); err == nil && stock != nil && stock.Sector != nil && *stock.Sector != "" {
				sector = *stock.Sector
			}
		}

		totals[sector] += value
		portfolioValue += value
	}

	slices := make([]SectorSlice, 0, len(totals))
	for sector, value := range totals {
		slice := SectorSlice{Sector: sector, Value: round2(value)}
		if portfolioValue > 0 {
			slice.Pct = round2(value / portfolioValue * 100)
		}
		slices = append(slices, slice)
	}

	sortSlicesByValue(slices)
	return slices, nil
}

func windowRange(window Window) (string, string) {
	spec := windowSpec[window]
	now := time.Now()
	return now.AddDate(0, 0, -spec.days).Format(domain.DateLayout), now.Format(domain.DateLayout)
}

func sortedDates(set map[string]struct{}) []string {
	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

func sortSlicesByValue(slices []SectorSlice) {
	sort.Slice(slices, func(i, j int) bool {
		return slices[i].Value > slices[j].Value
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
