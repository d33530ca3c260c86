package portfolio

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
	"github.com/pkoukos/stockfolio/internal/modules/auth"
)

// Handlers contains HTTP handlers for portfolio views
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new portfolio handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers portfolio routes. All require authentication.
// The portfolio query parameter scopes every view to one named portfolio;
// omitted it covers all of the user's portfolios.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/positions", h.HandlePositions)
		r.Get("/summary", h.HandleSummary)
		r.Get("/holdings", h.HandleHoldings)
		r.Get("/dashboard", h.HandleDashboard)
	})
}

// HandlePositions returns derived net positions
// GET /api/portfolio/positions?portfolio=...
func (h *Handlers) HandlePositions(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	positions, err := h.service.GetPositions(user.ID, r.URL.Query().Get("portfolio"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute positions")
		h.writeError(w, http.StatusInternalServerError, "Failed to compute positions")
		return
	}

	if positions == nil {
		positions = []domain.Position{}
	}
	h.writeJSON(w, http.StatusOK, positions)
}

// HandleSummary returns portfolio totals
// GET /api/portfolio/summary?portfolio=...
func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	summary, err := h.service.GetSummary(user.ID, r.URL.Query().Get("portfolio"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute summary")
		h.writeError(w, http.StatusInternalServerError, "Failed to compute summary")
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// HandleHoldings returns detailed holdings
// GET /api/portfolio/holdings?portfolio=...
func (h *Handlers) HandleHoldings(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	holdings, err := h.service.GetHoldings(user.ID, r.URL.Query().Get("portfolio"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute holdings")
		h.writeError(w, http.StatusInternalServerError, "Failed to compute holdings")
		return
	}

	if holdings == nil {
		holdings = []Holding{}
	}
	h.writeJSON(w, http.StatusOK, holdings)
}

// HandleDashboard returns the combined dashboard payload
// GET /api/portfolio/dashboard?portfolio=...
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	dashboard, err := h.service.GetDashboard(user.ID, r.URL.Query().Get("portfolio"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build dashboard")
		h.writeError(w, http.StatusInternalServerError, "Failed to build dashboard")
		return
	}

	h.writeJSON(w, http.StatusOK, dashboard)
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
