package charts

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/modules/auth"
)

// Handlers contains HTTP handlers for chart data
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new charts handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "charts").Logger(),
	}
}

// RegisterRoutes registers chart routes. All require authentication.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/charts", func(r chi.Router) {
		r.Get("/portfolio", h.HandlePortfolioValue)
		r.Get("/stock/{symbol}", h.HandleStockSeries)
		r.Get("/sectors", h.HandleSectorAllocation)
	})
}

// HandlePortfolioValue returns the portfolio value series
// GET /api/charts/portfolio?window=1M&portfolio=...
func (h *Handlers) HandlePortfolioValue(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	window, err := ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.service.PortfolioValue(user.ID, r.URL.Query().Get("portfolio"), window)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build portfolio series")
		h.writeError(w, http.StatusInternalServerError, "Failed to build portfolio series")
		return
	}

	h.writeJSON(w, http.StatusOK, series)
}

// HandleStockSeries returns a single stock's close series with SMA overlay
// GET /api/charts/stock/{symbol}?window=6M
func (h *Handlers) HandleStockSeries(w http.ResponseWriter, r *http.Request) {
	window, err := ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := h.service.StockSeries(chi.URLParam(r, "symbol"), window)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, series)
}

// HandleSectorAllocation returns the sector breakdown
// GET /api/charts/sectors?portfolio=...
func (h *Handlers) HandleSectorAllocation(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	slices, err := h.service.SectorAllocation(user.ID, r.URL.Query().Get("portfolio"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build sector allocation")
		h.writeError(w, http.StatusInternalServerError, "Failed to build sector allocation")
		return
	}

	h.writeJSON(w, http.StatusOK, slices)
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
