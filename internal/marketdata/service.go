package marketdata

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
)

// ErrNoData is returned when every provider in the chain failed to produce a
// usable price for a symbol.
var ErrNoData = errors.New("no price data available")

// QuoteProvider is a single market data source for current prices.
type QuoteProvider interface {
	GetCurrentPrice(symbol string) (*domain.Quote, error)
}

// HistoryProvider supplies daily OHLCV history (Yahoo in practice).
type HistoryProvider interface {
	GetDailyHistory(symbol string, daysBack int) ([]domain.PricePoint, error)
	Search(query string) ([]domain.SymbolMatch, error)
}

// StockStore is the subset of the universe repository needed for price updates.
// Declared here to avoid a dependency on the universe module.
type StockStore interface {
	GetOrCreate(symbol string) (*domain.Stock, error)
	UpdateCompanyInfo(symbol, companyName string, sector *string) error
}

// PriceStore is the subset of the history repository needed for price
// updates and the stored-close fallback.
type PriceStore interface {
	Upsert(p domain.PricePoint) error
	InsertMissing(points []domain.PricePoint) (int, error)
	GetLatest(symbol string) (*domain.PricePoint, error)
}

// namedProvider pairs a provider with the name used in logs.
type namedProvider struct {
	name     string
	provider QuoteProvider
}

// Service tries providers in a fixed order, catching failures and moving to
// the next. No backoff, no circuit breaking; a provider either answers with a
// positive price or the chain moves on.
type Service struct {
	providers []namedProvider
	history   HistoryProvider
	cache     *QuoteCache
	stocks    StockStore
	prices    PriceStore
	log       zerolog.Logger
}

// NewService creates a market data service with the standard provider order:
// Yahoo Finance, Twelve Data, Alpha Vantage, Financial Modeling Prep,
// MarketStack. The first provider must also implement HistoryProvider.
func NewService(
	history HistoryProvider,
	cache *QuoteCache,
	stocks StockStore,
	prices PriceStore,
	log zerolog.Logger,
) *Service {
	return &Service{
		history: history,
		cache:   cache,
		stocks:  stocks,
		prices:  prices,
		log:     log.With().Str("service", "marketdata").Logger(),
	}
}

// AddProvider appends a provider to the fallback chain.
func (s *Service) AddProvider(name string, p QuoteProvider) {
	s.providers = append(s.providers, namedProvider{name: name, provider: p})
}

// GetCurrentPrice returns the current price for a symbol, consulting the
// cache first, then each provider in order, then the stale cache.
// Returns ErrNoData when nothing can produce a price.
func (s *Service) GetCurrentPrice(symbol string) (*domain.Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	if s.cache != nil {
		cached, err := s.cache.GetFresh(symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	for _, np := range s.providers {
		quote, err := np.provider.GetCurrentPrice(symbol)
		if err != nil {
			s.log.Debug().
				Err(err).
				Str("provider", np.name).
				Str("symbol", symbol).
				Msg("Provider failed, trying next")
			continue
		}
		if quote == nil || quote.Price <= 0 {
			continue
		}

		if s.cache != nil {
			if err := s.cache.Store(quote, TTLCurrentPrice); err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache quote")
			}
		}

		s.log.Info().
			Str("provider", np.name).
			Str("symbol", symbol).
			Float64("price", quote.Price).
			Msg("Quote fetched")

		return quote, nil
	}

	// Stale cache beats nothing
	if s.cache != nil {
		stale, err := s.cache.GetStale(symbol)
		if err == nil && stale != nil {
			stale.Source = stale.Source + " (stale)"
			return stale, nil
		}
	}

	// Last resort: the newest stored close from the history database, so
	// holdings keep a valuation through a full provider outage
	if s.prices != nil {
		latest, err := s.prices.GetLatest(symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Stored close lookup failed")
		} else if latest != nil && latest.Close > 0 {
			return &domain.Quote{
				Symbol:      symbol,
				Price:       latest.Close,
				LastUpdated: latest.Date,
				Source:      fmt.Sprintf("Stored close (%s)", latest.Date),
			}, nil
		}
	}

	s.log.Warn().Str("symbol", symbol).Msg("No price data available from any source")
	return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
}

// GetMultipleQuotes fetches quotes for several symbols. Failed symbols are
// skipped; the batch continues.
func (s *Service) GetMultipleQuotes(symbols []string) map[string]*domain.Quote {
	quotes := make(map[string]*domain.Quote, len(symbols))
	for _, symbol := range symbols {
		quote, err := s.GetCurrentPrice(symbol)
		if err != nil {
			continue
		}
		quotes[quote.Symbol] = quote
	}
	return quotes
}

// SearchSymbols searches for symbols via Yahoo, falling back to a basic
// symbol-shaped guess for short alphabetic queries.
func (s *Service) SearchSymbols(query string) []domain.SymbolMatch {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	results, err := s.history.Search(query)
	if err != nil {
		s.log.Debug().Err(err).Str("query", query).Msg("Symbol search failed")
	}
	if len(results) > 0 {
		return results
	}

	upper := strings.ToUpper(query)
	if len(upper) <= 5 && isAlpha(upper) {
		return []domain.SymbolMatch{{
			Symbol:   upper,
			Name:     upper + " Corporation",
			Exchange: "NASDAQ",
			Type:     "Equity",
			Region:   "United States",
		}}
	}

	return nil
}

// GetDailyHistory fetches daily OHLCV rows for the last daysBack days.
func (s *Service) GetDailyHistory(symbol string, daysBack int) ([]domain.PricePoint, error) {
	return s.history.GetDailyHistory(symbol, daysBack)
}

// UpdateStockPrices refreshes stored prices for a symbol: today's row from
// the current quote, then historical rows from the daily history feed.
// Returns the number of price rows written.
func (s *Service) UpdateStockPrices(symbol string, daysBack int) (int, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	stock, err := s.stocks.GetOrCreate(symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve stock %s: %w", symbol, err)
	}
	if stock.CompanyName == "" {
		s.enrichCompanyInfo(symbol)
	}

	updated := 0

	// Today's quote becomes a flat OHLC row; historical rows below overwrite
	// nothing, so a later real OHLC row for today stays intact.
	quote, quoteErr := s.GetCurrentPrice(symbol)
	if quoteErr == nil {
		today := time.Now().Format(domain.DateLayout)
		err := s.prices.Upsert(domain.PricePoint{
			Symbol: symbol,
			Date:   today,
			Open:   quote.Price,
			High:   quote.Price,
			Low:    quote.Price,
			Close:  quote.Price,
		})
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to store today's price")
		} else {
			updated++
		}
	}

	points, histErr := s.history.GetDailyHistory(symbol, daysBack)
	if histErr != nil {
		s.log.Warn().Err(histErr).Str("symbol", symbol).Msg("Historical price update failed")
		if quoteErr != nil {
			return 0, fmt.Errorf("failed to update prices for %s: %w", symbol, quoteErr)
		}
		return updated, nil
	}

	inserted, err := s.prices.InsertMissing(points)
	if err != nil {
		return updated, fmt.Errorf("failed to store history for %s: %w", symbol, err)
	}

	return updated + inserted, nil
}

// enrichCompanyInfo fills a missing company name from the symbol search
// feed. Best effort; a failed lookup just leaves the name empty until the
// next sync.
func (s *Service) enrichCompanyInfo(symbol string) {
	matches, err := s.history.Search(symbol)
	if err != nil {
		s.log.Debug().Err(err).Str("symbol", symbol).Msg("Company info lookup failed")
		return
	}

	for _, m := range matches {
		if strings.EqualFold(m.Symbol, symbol) && m.Name != "" {
			if err := s.stocks.UpdateCompanyInfo(symbol, m.Name, nil); err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to store company info")
			}
			return
		}
	}
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return len(s) > 0
}
