package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/pkoukos/stockfolio/internal/config"
	"github.com/pkoukos/stockfolio/internal/database"
	"github.com/pkoukos/stockfolio/internal/domain"
	"github.com/pkoukos/stockfolio/internal/marketdata"
	"github.com/pkoukos/stockfolio/internal/modules/auth"
	"github.com/pkoukos/stockfolio/internal/modules/charts"
	"github.com/pkoukos/stockfolio/internal/modules/history"
	"github.com/pkoukos/stockfolio/internal/modules/ledger"
	"github.com/pkoukos/stockfolio/internal/modules/portfolio"
	"github.com/pkoukos/stockfolio/internal/modules/simulation"
	"github.com/pkoukos/stockfolio/internal/modules/universe"
	"github.com/pkoukos/stockfolio/internal/scheduler"
)

type fakeHistory struct{}

func (f *fakeHistory) GetDailyHistory(symbol string, daysBack int) ([]domain.PricePoint, error) {
	return nil, nil
}

func (f *fakeHistory) Search(query string) ([]domain.SymbolMatch, error) {
	return nil, nil
}

func setupPortfolioDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE stocks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL UNIQUE,
			company_name TEXT NOT NULL DEFAULT '',
			sector TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE TABLE transactions (
			id TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			portfolio_name TEXT NOT NULL DEFAULT 'My Investment Portfolio',
			stock_id INTEGER NOT NULL REFERENCES stocks(id),
			side TEXT NOT NULL CHECK(side IN ('BUY','SELL')),
			quantity REAL NOT NULL CHECK(quantity > 0),
			price_per_share REAL NOT NULL CHECK(price_per_share > 0),
			transaction_date TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
	`)
	require.NoError(t, err)

	return db
}

func setupHistoryDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
		CREATE TABLE stock_prices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			date TEXT NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			UNIQUE(symbol, date)
		)
	`)
	require.NoError(t, err)

	return db
}

func newTestServer(t *testing.T) *Server {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	portfolioDB := setupPortfolioDB(t)
	historyDB := setupHistoryDB(t)

	stockRepo := universe.NewStockRepository(portfolioDB, log)
	priceRepo := history.NewPriceRepository(historyDB, log)
	txRepo := ledger.NewTransactionRepository(portfolioDB, stockRepo, log)
	userRepo := auth.NewUserRepository(portfolioDB, log)

	marketSvc := marketdata.NewService(&fakeHistory{}, nil, stockRepo, priceRepo, log)

	authSvc := auth.NewService(userRepo, "test-secret", log)
	portfolioSvc := portfolio.NewService(txRepo, marketSvc, stockRepo, log)
	simulationSvc := simulation.NewService(priceRepo, nil, log)
	chartsSvc := charts.NewService(portfolioSvc, priceRepo, marketSvc, stockRepo, log)

	sched := scheduler.New(log)
	syncJob := scheduler.NewPriceSyncJob(txRepo, marketSvc, 30, log)

	return New(Config{
		Log:                log,
		Cfg:                &config.Config{Port: 0, DataDir: t.TempDir()},
		AuthService:        authSvc,
		AuthHandlers:       auth.NewHandlers(authSvc, log),
		LedgerHandlers:     ledger.NewHandlers(txRepo, log),
		PortfolioHandlers:  portfolio.NewHandlers(portfolioSvc, log),
		SimulationHandlers: simulation.NewHandlers(simulationSvc, log),
		ChartsHandlers:     charts.NewHandlers(chartsSvc, log),
		MarketHandlers:     marketdata.NewHandlers(marketSvc, txRepo, log),
		SystemHandlers:     NewSystemHandlers(t.TempDir(), map[string]*database.DB{}, log),
		AdminHandlers:      NewAdminHandlers(userRepo, sched, syncJob, nil, log),
	})
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, srv *Server, username string) string {
	rec := doJSON(t, srv, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/api/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{
		"/api/transactions",
		"/api/portfolio/dashboard",
		"/api/charts/sectors",
		"/api/market/search?q=apple",
	} {
		rec := doJSON(t, srv, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "alice")

	// Create
	rec := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]interface{}{
		"symbol":          "AAPL",
		"side":            "BUY",
		"quantity":        10,
		"price_per_share": 150,
		"date":            "2024-01-15",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	// List
	rec = doJSON(t, srv, http.MethodGet, "/api/transactions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "AAPL", listed[0].Symbol)

	// Summary reflects the buy
	rec = doJSON(t, srv, http.MethodGet, "/api/portfolio/summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary portfolio.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1500.0, summary.TotalInvested)
	assert.Equal(t, 1, summary.Companies)

	// Delete
	rec = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+created.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Another user cannot see or touch it
	other := registerUser(t, srv, "bob")
	rec = doJSON(t, srv, http.MethodGet, "/api/transactions", other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var empty []domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Empty(t, empty)
}

func TestAdminRoutesForbiddenForRegularUsers(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "alice")

	rec := doJSON(t, srv, http.MethodGet, "/api/admin/users", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/admin/sync", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSimulationEndpoint_ValidationError(t *testing.T) {
	srv := newTestServer(t)
	token := registerUser(t, srv, "alice")

	rec := doJSON(t, srv, http.MethodPost, "/api/simulation", token, map[string]interface{}{
		"symbols":            []string{},
		"start_date":         "2023-01-01",
		"end_date":           "2023-12-31",
		"initial_investment": 1000,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
