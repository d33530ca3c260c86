package simulation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkoukos/stockfolio/internal/domain"
)

// fakePrices serves price history from an in-memory map of sorted rows
type fakePrices struct {
	rows map[string][]domain.PricePoint // symbol -> rows sorted by date asc
}

func (f *fakePrices) GetFirstOnOrAfter(symbol, date string) (*domain.PricePoint, error) {
	for _, p := range f.rows[symbol] {
		if p.Date >= date {
			row := p
			return &row, nil
		}
	}
	return nil, nil
}

func (f *fakePrices) GetLastOnOrBefore(symbol, date string) (*domain.PricePoint, error) {
	var found *domain.PricePoint
	for i := range f.rows[symbol] {
		if f.rows[symbol][i].Date <= date {
			found = &f.rows[symbol][i]
		}
	}
	return found, nil
}

func (f *fakePrices) GetRange(symbol, startDate, endDate string) ([]domain.PricePoint, error) {
	var out []domain.PricePoint
	for _, p := range f.rows[symbol] {
		if p.Date >= startDate && p.Date <= endDate {
			out = append(out, p)
		}
	}
	return out, nil
}

func row(symbol, date string, close float64) domain.PricePoint {
	return domain.PricePoint{Symbol: symbol, Date: date, Open: close, High: close, Low: close, Close: close}
}

func newTestService(rows map[string][]domain.PricePoint) *Service {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	return NewService(&fakePrices{rows: rows}, nil, log)
}

func TestRun_SingleSymbol(t *testing.T) {
	svc := newTestService(map[string][]domain.PricePoint{
		"AAPL": {
			row("AAPL", "2023-01-03", 100),
			row("AAPL", "2023-06-01", 120),
			row("AAPL", "2023-12-29", 150),
		},
	})

	result, err := svc.Run(Request{
		Symbols:           []string{"AAPL"},
		StartDate:         "2023-01-01",
		EndDate:           "2023-12-31",
		InitialInvestment: 1000,
	})

	require.NoError(t, err)
	require.Len(t, result.Symbols, 1)

	sr := result.Symbols[0]
	assert.Empty(t, sr.Error)
	// Start snaps forward to Jan 3, end snaps back to Dec 29
	assert.Equal(t, "2023-01-03", sr.StartDate)
	assert.Equal(t, "2023-12-29", sr.EndDate)
	assert.Equal(t, 100.0, sr.StartPrice)
	assert.Equal(t, 150.0, sr.EndPrice)
	assert.Equal(t, 10.0, sr.Shares)
	assert.Equal(t, 1500.0, sr.FinalValue)
	assert.Equal(t, 500.0, sr.GainLoss)
	assert.Equal(t, 50.0, sr.GainLossPct)

	assert.Equal(t, 1500.0, result.FinalValue)
	assert.Equal(t, 500.0, result.GainLoss)
	assert.Equal(t, 50.0, result.GainLossPct)
}

func TestRun_EqualSplit(t *testing.T) {
	svc := newTestService(map[string][]domain.PricePoint{
		"AAPL": {row("AAPL", "2023-01-02", 100), row("AAPL", "2023-12-29", 200)},
		"MSFT": {row("MSFT", "2023-01-02", 250), row("MSFT", "2023-12-29", 250)},
	})

	result, err := svc.Run(Request{
		Symbols:           []string{"aapl", "msft"},
		StartDate:         "2023-01-01",
		EndDate:           "2023-12-31",
		InitialInvestment: 1000,
	})

	require.NoError(t, err)
	require.Len(t, result.Symbols, 2)

	assert.Equal(t, 500.0, result.Symbols[0].Invested)
	assert.Equal(t, 500.0, result.Symbols[1].Invested)
	// AAPL doubles its 500, MSFT stays flat
	assert.Equal(t, 1500.0, result.FinalValue)
	assert.Equal(t, 50.0, result.GainLossPct)
}

func TestRun_MissingSymbolSkipped(t *testing.T) {
	svc := newTestService(map[string][]domain.PricePoint{
		"AAPL": {row("AAPL", "2023-01-02", 100), row("AAPL", "2023-12-29", 150)},
	})

	result, err := svc.Run(Request{
		Symbols:           []string{"AAPL", "NODATA"},
		StartDate:         "2023-01-01",
		EndDate:           "2023-12-31",
		InitialInvestment: 1000,
	})

	require.NoError(t, err)
	require.Len(t, result.Symbols, 2)

	assert.Empty(t, result.Symbols[0].Error)
	assert.NotEmpty(t, result.Symbols[1].Error)
	assert.Zero(t, result.Symbols[1].FinalValue)

	// Aggregate covers only the symbol with data
	assert.Equal(t, 500.0, result.AmountInvested)
	assert.Equal(t, 750.0, result.FinalValue)
	assert.Equal(t, 50.0, result.GainLossPct)
}

func TestRun_DataOnlyOutsideWindow(t *testing.T) {
	// All rows after the end date: start snaps to 2024, end has nothing
	svc := newTestService(map[string][]domain.PricePoint{
		"AAPL": {row("AAPL", "2024-06-03", 100)},
	})

	result, err := svc.Run(Request{
		Symbols:           []string{"AAPL"},
		StartDate:         "2023-01-01",
		EndDate:           "2023-12-31",
		InitialInvestment: 1000,
	})

	require.NoError(t, err)
	require.Len(t, result.Symbols, 1)
	assert.NotEmpty(t, result.Symbols[0].Error)
	assert.Zero(t, result.FinalValue)
}

func TestRun_RiskStats(t *testing.T) {
	svc := newTestService(map[string][]domain.PricePoint{
		"AAPL": {
			row("AAPL", "2023-01-02", 100),
			row("AAPL", "2023-01-03", 110),
			row("AAPL", "2023-01-04", 99),
			row("AAPL", "2023-01-05", 105),
			row("AAPL", "2023-01-06", 120),
		},
	})

	result, err := svc.Run(Request{
		Symbols:           []string{"AAPL"},
		StartDate:         "2023-01-01",
		EndDate:           "2023-01-31",
		InitialInvestment: 1000,
	})

	require.NoError(t, err)
	sr := result.Symbols[0]
	require.NotNil(t, sr.AnnualizedVolatilityPct)
	assert.Positive(t, *sr.AnnualizedVolatilityPct)

	require.NotNil(t, sr.MaxDrawdownPct)
	// Peak 110 down to 99 = 10%
	assert.Equal(t, 10.0, *sr.MaxDrawdownPct)
}

func TestRun_Validation(t *testing.T) {
	svc := newTestService(nil)

	tests := []struct {
		name string
		req  Request
	}{
		{"no symbols", Request{StartDate: "2023-01-01", EndDate: "2023-12-31", InitialInvestment: 1000}},
		{"zero investment", Request{Symbols: []string{"AAPL"}, StartDate: "2023-01-01", EndDate: "2023-12-31"}},
		{"bad start date", Request{Symbols: []string{"AAPL"}, StartDate: "01/01/2023", EndDate: "2023-12-31", InitialInvestment: 1000}},
		{"bad end date", Request{Symbols: []string{"AAPL"}, StartDate: "2023-01-01", EndDate: "soon", InitialInvestment: 1000}},
		{"start after end", Request{Symbols: []string{"AAPL"}, StartDate: "2023-12-31", EndDate: "2023-01-01", InitialInvestment: 1000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Run(tt.req)
			assert.Error(t, err)
		})
	}
}

func TestMaxDrawdown(t *testing.T) {
	points := []domain.PricePoint{
		row("X", "2023-01-01", 100),
		row("X", "2023-01-02", 80),
		row("X", "2023-01-03", 90),
		row("X", "2023-01-04", 60),
		row("X", "2023-01-05", 110),
	}

	// Peak 100 to trough 60
	assert.InDelta(t, 0.4, maxDrawdown(points), 1e-9)
	assert.Zero(t, maxDrawdown(nil))
}
