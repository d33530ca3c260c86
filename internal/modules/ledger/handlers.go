package ledger

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
	"github.com/pkoukos/stockfolio/internal/modules/auth"
)

// Handlers contains HTTP handlers for the transaction ledger
type Handlers struct {
	repo *TransactionRepository
	log  zerolog.Logger
}

// NewHandlers creates a new ledger handlers instance
func NewHandlers(repo *TransactionRepository, log zerolog.Logger) *Handlers {
	return &Handlers{
		repo: repo,
		log:  log.With().Str("handler", "ledger").Logger(),
	}
}

// RegisterRoutes registers transaction routes. All require authentication.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleCreate)
		r.Get("/recent", h.HandleRecent)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
	r.Get("/portfolios", h.HandlePortfolioNames)
}

// transactionRequest is the create/update payload
type transactionRequest struct {
	PortfolioName string  `json:"portfolio_name"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      float64 `json:"quantity"`
	PricePerShare float64 `json:"price_per_share"`
	Date          string  `json:"date"`
	Notes         string  `json:"notes"`
}

// HandleCreate records a new transaction
// POST /api/transactions
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	tx := &domain.Transaction{
		UserID:        user.ID,
		PortfolioName: req.PortfolioName,
		Symbol:        req.Symbol,
		Side:          domain.Side(req.Side),
		Quantity:      req.Quantity,
		PricePerShare: req.PricePerShare,
		Date:          req.Date,
		Notes:         req.Notes,
	}

	if err := h.repo.Create(tx); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusCreated, tx)
}

// HandleList returns the user's transactions, optionally filtered by
// portfolio name
// GET /api/transactions?portfolio=...
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	transactions, err := h.repo.ListByUser(user.ID, r.URL.Query().Get("portfolio"))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		h.writeError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

// HandleRecent returns the user's most recent transactions
// GET /api/transactions/recent?limit=10
func (h *Handlers) HandleRecent(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit := 10
	if param := r.URL.Query().Get("limit"); param != "" {
		if parsed, err := strconv.Atoi(param); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	transactions, err := h.repo.Recent(user.ID, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get recent transactions")
		h.writeError(w, http.StatusInternalServerError, "Failed to get recent transactions")
		return
	}

	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

// HandleGet returns a single transaction
// GET /api/transactions/{id}
func (h *Handlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	tx, err := h.repo.GetByID(user.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Msg("Failed to get transaction")
		h.writeError(w, http.StatusInternalServerError, "Failed to get transaction")
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

// HandleUpdate replaces a transaction's fields
// PUT /api/transactions/{id}
func (h *Handlers) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	existing, err := h.repo.GetByID(user.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Failed to get transaction")
		return
	}

	tx := &domain.Transaction{
		ID:            existing.ID,
		UserID:        user.ID,
		PortfolioName: req.PortfolioName,
		Symbol:        req.Symbol,
		Side:          domain.Side(req.Side),
		Quantity:      req.Quantity,
		PricePerShare: req.PricePerShare,
		Date:          req.Date,
		Notes:         req.Notes,
	}
	if tx.PortfolioName == "" {
		tx.PortfolioName = existing.PortfolioName
	}

	if err := h.repo.Update(tx); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, tx)
}

// HandleDelete removes a transaction
// DELETE /api/transactions/{id}
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.repo.Delete(user.ID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		h.log.Error().Err(err).Msg("Failed to delete transaction")
		h.writeError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Transaction deleted"})
}

// HandlePortfolioNames returns the user's distinct portfolio names
// GET /api/portfolios
func (h *Handlers) HandlePortfolioNames(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	names, err := h.repo.PortfolioNames(user.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list portfolios")
		h.writeError(w, http.StatusInternalServerError, "Failed to list portfolios")
		return
	}

	if names == nil {
		names = []string{domain.DefaultPortfolioName}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"portfolios": names})
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
