// Package ledger manages the buy/sell transaction records that every
// portfolio view is derived from.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
)

// ErrNotFound is returned when a transaction does not exist or belongs to
// another user.
var ErrNotFound = errors.New("transaction not found")

// StockResolver resolves symbols to stock rows, creating them on first use.
// Implemented by the universe repository.
type StockResolver interface {
	GetOrCreate(symbol string) (*domain.Stock, error)
}

// TransactionRepository handles transaction database operations
type TransactionRepository struct {
	db     *sql.DB // portfolio.db - transactions table
	stocks StockResolver
	log    zerolog.Logger
}

// transactionColumns joins the stocks table so every read carries the symbol
// and company name without a second query.
const transactionColumns = `t.id, t.user_id, t.portfolio_name, s.symbol, s.company_name,
	t.side, t.quantity, t.price_per_share, t.transaction_date, t.notes, t.created_at`

const transactionFrom = ` FROM transactions t JOIN stocks s ON s.id = t.stock_id `

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, stocks StockResolver, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		stocks: stocks,
		log:    log.With().Str("repo", "transaction").Logger(),
	}
}

// Create validates and inserts a transaction, assigning it a UUID.
func (r *TransactionRepository) Create(tx *domain.Transaction) error {
	tx.Symbol = strings.ToUpper(strings.TrimSpace(tx.Symbol))
	if err := tx.Validate(); err != nil {
		return err
	}

	stock, err := r.stocks.GetOrCreate(tx.Symbol)
	if err != nil {
		return fmt.Errorf("failed to resolve stock %s: %w", tx.Symbol, err)
	}

	if tx.PortfolioName == "" {
		tx.PortfolioName = domain.DefaultPortfolioName
	}
	tx.ID = uuid.NewString()
	tx.CreatedAt = time.Now()
	tx.CompanyName = stock.CompanyName

	_, err = r.db.Exec(`
		INSERT INTO transactions (id, user_id, portfolio_name, stock_id, side, quantity, price_per_share, transaction_date, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.PortfolioName, stock.ID, string(tx.Side),
		tx.Quantity, tx.PricePerShare, tx.Date, tx.Notes, tx.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	r.log.Info().
		Str("id", tx.ID).
		Str("symbol", tx.Symbol).
		Str("side", string(tx.Side)).
		Float64("quantity", tx.Quantity).
		Msg("Transaction recorded")

	return nil
}

// GetByID returns a transaction owned by the given user.
// Returns ErrNotFound when missing or owned by someone else.
func (r *TransactionRepository) GetByID(userID int64, id string) (*domain.Transaction, error) {
	query := "SELECT " + transactionColumns + transactionFrom + "WHERE t.id = ? AND t.user_id = ?"

	row := r.db.QueryRow(query, id, userID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &tx, nil
}

// ListByUser returns a user's transactions, newest first. An empty
// portfolioName returns transactions across all of the user's portfolios.
func (r *TransactionRepository) ListByUser(userID int64, portfolioName string) ([]domain.Transaction, error) {
	query := "SELECT " + transactionColumns + transactionFrom + "WHERE t.user_id = ?"
	args := []interface{}{userID}

	if portfolioName != "" {
		query += " AND t.portfolio_name = ?"
		args = append(args, portfolioName)
	}
	query += " ORDER BY t.transaction_date DESC, t.created_at DESC"

	return r.queryMany(query, args...)
}

// Recent returns a user's most recent transactions across all portfolios.
func (r *TransactionRepository) Recent(userID int64, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}

	query := "SELECT " + transactionColumns + transactionFrom +
		"WHERE t.user_id = ? ORDER BY t.transaction_date DESC, t.created_at DESC LIMIT ?"

	return r.queryMany(query, userID, limit)
}

// Update replaces the mutable fields of an existing transaction.
func (r *TransactionRepository) Update(tx *domain.Transaction) error {
	tx.Symbol = strings.ToUpper(strings.TrimSpace(tx.Symbol))
	if err := tx.Validate(); err != nil {
		return err
	}

	stock, err := r.stocks.GetOrCreate(tx.Symbol)
	if err != nil {
		return fmt.Errorf("failed to resolve stock %s: %w", tx.Symbol, err)
	}

	res, err := r.db.Exec(`
		UPDATE transactions
		SET portfolio_name = ?, stock_id = ?, side = ?, quantity = ?, price_per_share = ?, transaction_date = ?, notes = ?
		WHERE id = ? AND user_id = ?`,
		tx.PortfolioName, stock.ID, string(tx.Side), tx.Quantity, tx.PricePerShare,
		tx.Date, tx.Notes, tx.ID, tx.UserID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a transaction owned by the given user.
func (r *TransactionRepository) Delete(userID int64, id string) error {
	res, err := r.db.Exec("DELETE FROM transactions WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	r.log.Info().Str("id", id).Msg("Transaction deleted")
	return nil
}

// PortfolioNames returns the distinct portfolio names a user has recorded
// transactions under.
func (r *TransactionRepository) PortfolioNames(userID int64) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT DISTINCT portfolio_name FROM transactions WHERE user_id = ? ORDER BY portfolio_name",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolio names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio name: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

// SymbolsInUse returns every symbol referenced by at least one transaction,
// across all users. The daily price sync walks this list.
func (r *TransactionRepository) SymbolsInUse() ([]string, error) {
	return r.querySymbols(
		"SELECT DISTINCT s.symbol FROM transactions t JOIN stocks s ON s.id = t.stock_id ORDER BY s.symbol",
	)
}

// SymbolsForUser returns the distinct symbols in one user's ledger.
func (r *TransactionRepository) SymbolsForUser(userID int64) ([]string, error) {
	return r.querySymbols(
		"SELECT DISTINCT s.symbol FROM transactions t JOIN stocks s ON s.id = t.stock_id WHERE t.user_id = ? ORDER BY s.symbol",
		userID,
	)
}

func (r *TransactionRepository) querySymbols(query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols in use: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}

func (r *TransactionRepository) queryMany(query string, args ...interface{}) ([]domain.Transaction, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var tx domain.Transaction
	var side string
	var createdAt int64

	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.PortfolioName, &tx.Symbol, &tx.CompanyName,
		&side, &tx.Quantity, &tx.PricePerShare, &tx.Date, &tx.Notes, &createdAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx.Side = domain.Side(side)
	tx.CreatedAt = time.Unix(createdAt, 0)

	return tx, nil
}
