package marketdata

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
)

// HeldSymbols lists the distinct symbols in a user's ledger. Implemented by
// the ledger repository; used as the stream default when no symbols are given.
type HeldSymbols interface {
	SymbolsForUser(userID int64) ([]string, error)
}

// Handlers contains HTTP handlers for market data
type Handlers struct {
	service *Service
	held    HeldSymbols
	log     zerolog.Logger
}

// NewHandlers creates a new market data handlers instance
func NewHandlers(service *Service, held HeldSymbols, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		held:    held,
		log:     log.With().Str("handler", "marketdata").Logger(),
	}
}

// RegisterRoutes registers market data routes. All require authentication.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/market", func(r chi.Router) {
		r.Get("/quote/{symbol}", h.HandleQuote)
		r.Get("/quotes", h.HandleQuotes)
		r.Get("/search", h.HandleSearch)
		r.Get("/history/{symbol}", h.HandleHistory)
		r.Get("/stream", h.HandleStream)
	})
}

// HandleQuote returns the current price for a symbol
// GET /api/market/quote/{symbol}
func (h *Handlers) HandleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.GetCurrentPrice(chi.URLParam(r, "symbol"))
	if err != nil {
		if errors.Is(err, ErrNoData) {
			h.writeError(w, http.StatusNotFound, "no price data available")
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, quote)
}

// HandleQuotes returns quotes for a comma-separated symbol list
// GET /api/market/quotes?symbols=AAPL,MSFT
func (h *Handlers) HandleQuotes(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "symbols parameter is required")
		return
	}

	h.writeJSON(w, http.StatusOK, h.service.GetMultipleQuotes(symbols))
}

// HandleSearch searches for symbols
// GET /api/market/search?q=apple
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "q parameter is required")
		return
	}

	results := h.service.SearchSymbols(query)
	if results == nil {
		results = []domain.SymbolMatch{}
	}
	h.writeJSON(w, http.StatusOK, results)
}

// HandleHistory returns stored-or-fetched daily history
// GET /api/market/history/{symbol}?days=90
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	days := 90
	if param := r.URL.Query().Get("days"); param != "" {
		if parsed, err := strconv.Atoi(param); err == nil && parsed > 0 {
			days = parsed
		}
	}

	points, err := h.service.GetDailyHistory(chi.URLParam(r, "symbol"), days)
	if err != nil {
		h.log.Warn().Err(err).Msg("History fetch failed")
		h.writeError(w, http.StatusBadGateway, "failed to fetch history")
		return
	}

	h.writeJSON(w, http.StatusOK, points)
}

func splitSymbols(raw string) []string {
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
